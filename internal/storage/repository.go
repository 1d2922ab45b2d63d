package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finance/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const timeLayout = time.RFC3339Nano

const selectTransaction = `
	SELECT t.id, t.amount_cents, t.description, t.create_at,
	       c.id, c.name,
	       u.id, u.name, u.email
	FROM transactions t
	JOIN categories c ON c.id = t.category_id
	JOIN users u ON u.id = t.user_id`

type SQLiteRepository struct {
	db *sql.DB
}

// DSN enables foreign keys on every pooled connection; without it sqlite
// ignores REFERENCES and ON DELETE CASCADE.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// FindCategoryByName implements ports.CategoryReader
func (r *SQLiteRepository) FindCategoryByName(ctx context.Context, name string) (*core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE name = ?`, name).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category by name %q: %w", name, err)
	}
	return &c, nil
}

// ListCategories implements ports.CategoryReader
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]core.Category, 0)
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateCategory implements ports.CategoryWriter
func (r *SQLiteRepository) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	c := core.Category{Name: name}
	err := r.db.QueryRowContext(ctx, `INSERT INTO categories (name) VALUES (?) RETURNING id`, name).Scan(&c.ID)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", translate(err))
	}
	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name)
	return c, nil
}

// CreateUser implements ports.UserWriter
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Password)
	if err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

// DeleteUser implements ports.UserWriter
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", translate(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

// FindUser implements ports.UserReader
func (r *SQLiteRepository) FindUser(ctx context.Context, id string) (*core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

// CreateTransaction implements ports.TransactionStore
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO transactions (amount_cents, description, create_at, category_id, user_id)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		t.Amount.Cents, t.Description, t.CreateAt.UTC().Format(timeLayout), t.Category.ID, t.User.ID).
		Scan(&id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", translate(err))
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"amount_cents", t.Amount.Cents,
		"category_id", t.Category.ID,
		"user_id", t.User.ID)

	return r.mustFind(ctx, id, t.User.ID)
}

// ListTransactionsByUser implements ports.TransactionStore
func (r *SQLiteRepository) ListTransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransaction+` WHERE t.user_id = ? ORDER BY t.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// FindTransaction implements ports.TransactionStore
func (r *SQLiteRepository) FindTransaction(ctx context.Context, id int64, userID string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransaction+` WHERE t.id = ? AND t.user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTransaction implements ports.TransactionStore. The owner is part of
// the WHERE clause, never of the SET list.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET amount_cents = ?, description = ?, create_at = ?, category_id = ?
		WHERE id = ? AND user_id = ?`,
		t.Amount.Cents, t.Description, t.CreateAt.UTC().Format(timeLayout), t.Category.ID, t.ID, t.User.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", translate(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return r.mustFind(ctx, t.ID, t.User.ID)
}

// DeleteTransaction implements ports.TransactionStore
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", translate(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrTransactionNotFound
	}
	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id, "user_id", userID)
	return nil
}

// RecordTransactionEvent implements ports.AuditWriter
func (r *SQLiteRepository) RecordTransactionEvent(ctx context.Context, e core.TransactionEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transaction_events (event_type, transaction_id, user_id, occurred_at)
		VALUES (?, ?, ?, ?)`,
		string(e.Type), e.TransactionID, e.UserID, e.OccurredAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record transaction event: %w", translate(err))
	}
	return nil
}

func (r *SQLiteRepository) mustFind(ctx context.Context, id int64, userID string) (core.Transaction, error) {
	t, err := r.FindTransaction(ctx, id, userID)
	if err != nil {
		return core.Transaction{}, err
	}
	if t == nil {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return *t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t        core.Transaction
		createAt string
	)
	err := s.Scan(
		&t.ID, &t.Amount.Cents, &t.Description, &createAt,
		&t.Category.ID, &t.Category.Name,
		&t.User.ID, &t.User.Name, &t.User.Email,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.CreateAt, err = time.Parse(timeLayout, createAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse create_at %q: %w", createAt, err)
	}
	return t, nil
}

// translate maps sqlite constraint failures (unique, foreign key, check,
// not null) onto core.ErrConstraintViolation, keeping the driver message.
func translate(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %s", core.ErrConstraintViolation, sqliteErr.Error())
	}
	return err
}
