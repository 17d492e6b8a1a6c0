package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidNationalID(t *testing.T) {
	tests := []struct {
		name  string
		dni   string
		valid bool
	}{
		{name: "eight digits", dni: "12345678", valid: true},
		{name: "seven digits", dni: "1234567", valid: true},
		{name: "too short", dni: "123456", valid: false},
		{name: "too long", dni: "123456789", valid: false},
		{name: "with dots", dni: "12.345.678", valid: false},
		{name: "contains letters", dni: "1234a678", valid: false},
		{name: "empty string", dni: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidNationalID(tt.dni))
		})
	}
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{email: "test@example.com", valid: true},
		{email: "a.b+tag@mail.example.org", valid: true},
		{email: "no-at-sign", valid: false},
		{email: "user@localhost", valid: false},
		{email: "Name <user@example.com>", valid: false},
		{email: " user@example.com", valid: false},
		{email: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidEmail(tt.email))
		})
	}
}

func TestIsValidImage(t *testing.T) {
	assert.True(t, IsValidImage("image/png", 1024))
	assert.True(t, IsValidImage("IMAGE/JPEG", MaxImageSize))
	assert.False(t, IsValidImage("image/png", MaxImageSize+1))
	assert.False(t, IsValidImage("image/png", 0))
	assert.False(t, IsValidImage("application/pdf", 10))
}
