// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrUserExists возвращается при нарушении уникальности имени пользователя, email или DNI.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден или удалён.
	ErrUserNotFound = errors.New("user not found")
	// ErrInsufficientBalance возвращается при попытке списания суммы, превышающей баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrBalanceLimit возвращается, если пополнение подняло бы баланс до установленного предела.
	ErrBalanceLimit = errors.New("balance limit exceeded")
	// ErrEventNotFound возвращается, если событие не найдено.
	ErrEventNotFound = errors.New("event not found")
	// ErrImageNotFound возвращается, если у события нет изображения.
	ErrImageNotFound = errors.New("event image not found")
	// ErrAttendanceExists возвращается при повторной записи участия для пары (пользователь, событие).
	ErrAttendanceExists = errors.New("attendance already exists")
	// ErrAttendanceNotFound возвращается, если участие не подтверждено.
	ErrAttendanceNotFound = errors.New("attendance not found")
	// ErrTxAborted возвращается, если транзакция не прошла после всех повторов из-за конфликтов сериализации.
	ErrTxAborted = errors.New("transaction aborted by concurrent update")
)

// LockMode задаёт тип блокировки строки события внутри транзакции.
type LockMode string

const (
	// LockShare не даёт параллельной транзакции изменить событие, но допускает других читателей.
	LockShare LockMode = "FOR SHARE"
	// LockUpdate даёт исключительную блокировку строки события.
	LockUpdate LockMode = "FOR UPDATE"
)

// querier реализуется и пулом соединений, и открытой транзакцией.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries выполняет запросы либо напрямую через пул, либо в рамках транзакции.
type Queries struct {
	db querier
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	*Queries
	pool        *pgxpool.Pool
	retryDelays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		Queries:     &Queries{db: pool},
		pool:        pool,
		retryDelays: []time.Duration{50 * time.Millisecond, 150 * time.Millisecond, 400 * time.Millisecond},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность базы данных.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// WithTx выполняет fn в транзакции READ COMMITTED. Транзакция фиксируется, если fn вернула nil,
// и откатывается в остальных случаях, включая панику. При конфликте сериализации или взаимной
// блокировке транзакция повторяется целиком.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(Ledger) error) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(&Queries{db: tx}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= len(r.retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) {
			return err
		}

		if i == len(r.retryDelays) {
			break
		}

		timer := time.NewTimer(r.retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w: %w", ErrTxAborted, err)
}

// isRetryable сообщает, гарантированно ли откатилась транзакция и можно ли её повторить.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isCheckViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation && pgErr.ConstraintName == constraint
}

// rowScanner реализуется pgx.Row и pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
