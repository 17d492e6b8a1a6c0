package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/ticketing-system/internal/model"
)

const userColumns = `id, username, email, national_id, first_name, last_name, password_hash, balance, created_at, deleted_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.NationalID, &u.FirstName, &u.LastName,
		&u.PasswordHash, &u.Balance, &u.CreatedAt, &u.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser создаёт нового пользователя с нулевым балансом.
func (q *Queries) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO users (username, email, national_id, first_name, last_name, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+userColumns,
		u.Username, u.Email, u.NationalID, u.FirstName, u.LastName, u.PasswordHash,
	)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, u.Username)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// GetUserByID возвращает активного (не удалённого) пользователя по идентификатору.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail возвращает активного пользователя по email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND deleted_at IS NULL`,
		email,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// SoftDeleteUser помечает пользователя удалённым. Строка пользователя не удаляется.
func (q *Queries) SoftDeleteUser(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE users SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreditBalance увеличивает баланс пользователя и возвращает новое значение.
// Зачисление проходит и для удалённых пользователей: возвраты не должны теряться.
func (q *Queries) CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.db.QueryRow(ctx,
		`UPDATE users SET balance = balance + $2
		 WHERE id = $1
		 RETURNING balance`,
		userID, amount,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("credit balance: %w", err)
	}
	return balance, nil
}

// TopUpBalance пополняет баланс активного пользователя, только если новый баланс остаётся меньше limit.
func (q *Queries) TopUpBalance(ctx context.Context, userID int64, amount, limit decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.db.QueryRow(ctx,
		`UPDATE users SET balance = balance + $2
		 WHERE id = $1 AND deleted_at IS NULL AND balance + $2 < $3
		 RETURNING balance`,
		userID, amount, limit,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("top up balance: %w", err)
	}

	if _, err := q.GetUserByID(ctx, userID); err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, ErrBalanceLimit
}

// DebitBalance атомарно уменьшает баланс, только если его хватает на списание.
// Условное уменьшение исключает уход в минус при параллельных списаниях.
func (q *Queries) DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.db.QueryRow(ctx,
		`UPDATE users SET balance = balance - $2
		 WHERE id = $1 AND deleted_at IS NULL AND balance >= $2
		 RETURNING balance`,
		userID, amount,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}

	if isCheckViolation(err, "users_balance_non_negative") {
		return decimal.Zero, ErrInsufficientBalance
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("debit balance: %w", err)
	}

	if _, err := q.GetUserByID(ctx, userID); err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, ErrInsufficientBalance
}
