package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finance/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "finance.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustUser(t *testing.T, repo *SQLiteRepository, id, email string) core.User {
	t.Helper()
	u := core.User{ID: id, Name: "user " + id, Email: email, Password: "hash"}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestMigrationsSeedCategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cats, err := repo.ListCategories(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) != 7 {
		t.Fatalf("expected 7 seeded categories, got %d", len(cats))
	}

	food, err := repo.FindCategoryByName(ctx, "Food")
	if err != nil || food == nil {
		t.Fatalf("expected Food category, got %v (err=%v)", food, err)
	}
	missing, err := repo.FindCategoryByName(ctx, "food")
	if err != nil || missing != nil {
		t.Fatalf("lookup must be exact, got %v (err=%v)", missing, err)
	}

	// Running migrations again is a no-op.
	if err := RunMigrations(DSN(filepath.Join(t.TempDir(), "again.db"))); err != nil {
		t.Fatalf("fresh migrations: %v", err)
	}
}

func TestTransactionCRUDAndOwnership(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := mustUser(t, repo, "a", "a@example.com")
	b := mustUser(t, repo, "b", "b@example.com")
	food, _ := repo.FindCategoryByName(ctx, "Food")
	transport, _ := repo.FindCategoryByName(ctx, "Transport")

	when := time.Date(2025, 5, 4, 13, 30, 0, 0, time.UTC)
	created, err := repo.CreateTransaction(ctx, core.Transaction{
		Amount:      core.Money{Cents: 5000},
		Description: "lunch",
		CreateAt:    when,
		Category:    *food,
		User:        a,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 || created.Category.Name != "Food" || created.User.ID != a.ID || !created.CreateAt.Equal(when) {
		t.Fatalf("unexpected created row: %+v", created)
	}

	if got, err := repo.FindTransaction(ctx, created.ID, b.ID); err != nil || got != nil {
		t.Fatalf("b must not see a's transaction: %v (err=%v)", got, err)
	}
	if list, _ := repo.ListTransactionsByUser(ctx, b.ID); len(list) != 0 {
		t.Fatalf("expected no transactions for b, got %d", len(list))
	}

	stolen := created
	stolen.User = b
	if _, err := repo.UpdateTransaction(ctx, stolen); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("expected not found updating as b, got %v", err)
	}

	created.Category = *transport
	created.Description = "bus"
	updated, err := repo.UpdateTransaction(ctx, created)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Category.Name != "Transport" || updated.Description != "bus" || updated.Amount.Cents != 5000 {
		t.Fatalf("unexpected updated row: %+v", updated)
	}

	if err := repo.DeleteTransaction(ctx, created.ID, b.ID); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("expected not found deleting as b, got %v", err)
	}
	if err := repo.DeleteTransaction(ctx, created.ID, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := repo.FindTransaction(ctx, created.ID, a.ID); got != nil {
		t.Fatalf("transaction still present after delete")
	}
}

func TestConstraintViolations(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := mustUser(t, repo, "a", "a@example.com")

	err := repo.CreateUser(ctx, core.User{ID: "c", Name: "dup", Email: "a@example.com", Password: "x"})
	if !errors.Is(err, core.ErrConstraintViolation) {
		t.Fatalf("expected unique email violation, got %v", err)
	}
	if _, err := repo.CreateCategory(ctx, "Food"); !errors.Is(err, core.ErrConstraintViolation) {
		t.Fatalf("expected unique category violation, got %v", err)
	}
	_, err = repo.CreateTransaction(ctx, core.Transaction{
		Amount:      core.Money{Cents: 1},
		Description: "x",
		CreateAt:    time.Now(),
		Category:    core.Category{ID: 999},
		User:        a,
	})
	if !errors.Is(err, core.ErrConstraintViolation) {
		t.Fatalf("expected foreign key violation, got %v", err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := mustUser(t, repo, "a", "a@example.com")
	food, _ := repo.FindCategoryByName(ctx, "Food")
	tx, err := repo.CreateTransaction(ctx, core.Transaction{
		Amount: core.Money{Cents: 1}, Description: "x", CreateAt: time.Now(), Category: *food, User: a,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.DeleteUser(ctx, a.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	var n int
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE id = ?`, tx.ID).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected cascade delete, %d rows left", n)
	}
	if err := repo.DeleteUser(ctx, a.ID); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRecordTransactionEvent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := core.TransactionEvent{Type: core.EventTransactionDeleted, TransactionID: 42, UserID: "a", OccurredAt: time.Now()}
	if err := repo.RecordTransactionEvent(ctx, e); err != nil {
		t.Fatalf("record: %v", err)
	}
	n, err := countTransactionEvents(ctx, repo, 42)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 event, got %d (err=%v)", n, err)
	}
}

func countTransactionEvents(ctx context.Context, r *SQLiteRepository, transactionID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transaction_events WHERE transaction_id = ?`, transactionID).Scan(&n)
	return n, err
}
