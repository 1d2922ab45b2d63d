// Package postgres stores users, categories and transactions in PostgreSQL
// through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"finance/internal/core"
)

const selectTransaction = `
	SELECT t.id, t.amount_cents, t.description, t.create_at,
	       c.id, c.name,
	       u.id, u.name, u.email
	FROM transactions t
	JOIN categories c ON c.id = t.category_id
	JOIN users u ON u.id = t.user_id`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) FindCategoryByName(ctx context.Context, name string) (*core.Category, error) {
	var c core.Category
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM categories WHERE name = $1`, name).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category by name %q: %w", name, err)
	}
	return &c, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Category, error) {
		var c core.Category
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	return categories, nil
}

func (r *Repository) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	c := core.Category{Name: name}
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id`, name).Scan(&c.ID)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", translate(err))
	}
	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name)
	return c, nil
}

func (r *Repository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, password) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Name, u.Email, u.Password)
	if err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

func (r *Repository) FindUser(ctx context.Context, id string) (*core.User, error) {
	var u core.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Password)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO transactions (amount_cents, description, create_at, category_id, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		t.Amount.Cents, t.Description, t.CreateAt, t.Category.ID, t.User.ID).
		Scan(&id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", translate(err))
	}

	slog.InfoContext(ctx, "Transaction saved to Postgres",
		"id", id,
		"amount_cents", t.Amount.Cents,
		"category_id", t.Category.ID,
		"user_id", t.User.ID)

	return r.mustFind(ctx, id, t.User.ID)
}

func (r *Repository) ListTransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, selectTransaction+` WHERE t.user_id = $1 ORDER BY t.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	transactions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	return transactions, nil
}

func (r *Repository) FindTransaction(ctx context.Context, id int64, userID string) (*core.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, selectTransaction+` WHERE t.id = $1 AND t.user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET amount_cents = $1, description = $2, create_at = $3, category_id = $4
		WHERE id = $5 AND user_id = $6`,
		t.Amount.Cents, t.Description, t.CreateAt, t.Category.ID, t.ID, t.User.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return r.mustFind(ctx, t.ID, t.User.ID)
}

func (r *Repository) DeleteTransaction(ctx context.Context, id int64, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

func (r *Repository) RecordTransactionEvent(ctx context.Context, e core.TransactionEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transaction_events (event_type, transaction_id, user_id, occurred_at)
		VALUES ($1, $2, $3, $4)`,
		string(e.Type), e.TransactionID, e.UserID, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("record transaction event: %w", translate(err))
	}
	return nil
}

func (r *Repository) mustFind(ctx context.Context, id int64, userID string) (core.Transaction, error) {
	t, err := r.FindTransaction(ctx, id, userID)
	if err != nil {
		return core.Transaction{}, err
	}
	if t == nil {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return *t, nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var t core.Transaction
	err := row.Scan(
		&t.ID, &t.Amount.Cents, &t.Description, &t.CreateAt,
		&t.Category.ID, &t.Category.Name,
		&t.User.ID, &t.User.Name, &t.User.Email,
	)
	return t, err
}

// translate maps SQLSTATE class 23 (integrity constraint violation) onto
// core.ErrConstraintViolation.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
		msg := pgErr.Message
		if pgErr.Detail != "" {
			msg = pgErr.Detail
		}
		return fmt.Errorf("%w: %s", core.ErrConstraintViolation, msg)
	}
	return err
}
