// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"strings"
	"unicode"
)

// MaxImageSize ограничивает размер загружаемого изображения события.
const MaxImageSize = 5 << 20

var imageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// IsValidNationalID проверяет номер DNI: 7 или 8 цифр без разделителей.
func IsValidNationalID(dni string) bool {
	if len(dni) < 7 || len(dni) > 8 {
		return false
	}

	for _, ch := range dni {
		if !unicode.IsDigit(ch) {
			return false
		}
	}

	return true
}

// IsValidEmail проверяет, что строка является одиночным адресом без отображаемого имени.
func IsValidEmail(email string) bool {
	if email == "" || strings.TrimSpace(email) != email {
		return false
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".")
}

// IsAllowedImageType сообщает, поддерживается ли MIME-тип изображения.
func IsAllowedImageType(mimeType string) bool {
	_, ok := imageTypes[strings.ToLower(mimeType)]
	return ok
}

// IsValidImage проверяет тип и размер изображения.
func IsValidImage(mimeType string, size int) bool {
	return size > 0 && size <= MaxImageSize && IsAllowedImageType(mimeType)
}
