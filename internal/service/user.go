package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/ticketing-system/internal/model"
	"github.com/mmeshcher/ticketing-system/internal/repository"
	"github.com/mmeshcher/ticketing-system/internal/validation"
)

const (
	minPasswordLen = 6
	// bcrypt не принимает пароли длиннее 72 байт.
	maxPasswordLen = 72
)

// PasswordHasher хеширует и проверяет пароли.
type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Verify(hash []byte, password string) bool
}

// BcryptHasher хеширует пароли с помощью bcrypt. Нулевое значение Cost означает bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

// Hash возвращает bcrypt-хеш пароля.
func (h BcryptHasher) Hash(password string) ([]byte, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}

// Verify сообщает, соответствует ли пароль хешу.
func (h BcryptHasher) Verify(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// UserManager отвечает за регистрацию, аутентификацию и профиль пользователя.
type UserManager struct {
	*deps
	hasher PasswordHasher
}

// RegisterUser регистрирует нового пользователя с нулевым балансом.
func (m *UserManager) RegisterUser(ctx context.Context, r model.Registration) (*model.User, error) {
	u := &model.User{
		Username:   strings.TrimSpace(r.Username),
		Email:      strings.ToLower(strings.TrimSpace(r.Email)),
		NationalID: strings.TrimSpace(r.NationalID),
		FirstName:  strings.TrimSpace(r.FirstName),
		LastName:   strings.TrimSpace(r.LastName),
	}

	switch {
	case u.Username == "":
		return nil, invalidInput("invalid_username", "username is required")
	case u.FirstName == "" || u.LastName == "":
		return nil, invalidInput("invalid_name", "first and last name are required")
	case !validation.IsValidEmail(u.Email):
		return nil, invalidInput("invalid_email", "invalid email")
	case !validation.IsValidNationalID(u.NationalID):
		return nil, invalidInput("invalid_dni", "DNI must contain 7 or 8 digits")
	case len(r.Password) < minPasswordLen || len(r.Password) > maxPasswordLen:
		return nil, invalidInput("invalid_password", "password must be between 6 and 72 characters")
	}

	hash, err := m.hasher.Hash(r.Password)
	if err != nil {
		return nil, wrap("hash password", err)
	}
	u.PasswordHash = hash

	created, err := m.repo.CreateUser(ctx, u)
	if err != nil {
		return nil, wrap("register user", err)
	}

	m.logger.Info("user registered", zap.Int64("user_id", created.ID))
	return created, nil
}

// AuthenticateUser проверяет email и пароль и возвращает пользователя.
func (m *UserManager) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := m.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, wrap("authenticate user", err)
	}

	if !m.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetProfile возвращает профиль активного пользователя.
func (m *UserManager) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	u, err := m.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, wrap("get profile", err)
	}
	return u, nil
}

// DeleteUser помечает пользователя удалённым. Покупки, участие и созданные события сохраняются.
func (m *UserManager) DeleteUser(ctx context.Context, userID int64) error {
	if err := m.repo.SoftDeleteUser(ctx, userID); err != nil {
		return wrap("delete user", err)
	}
	m.logger.Info("user deleted", zap.Int64("user_id", userID))
	return nil
}
