package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finance/internal/core"
	"finance/internal/ports"
)

// TransactionService orchestrates category lookup, the transaction store and
// event publishing. It holds no per-request state.
type TransactionService struct {
	categories *CategoryService
	store      ports.TransactionStore
	publisher  ports.EventPublisher
	now        func() time.Time
}

type Option func(*TransactionService)

// WithPublisher announces committed writes. Without one, events are skipped.
func WithPublisher(p ports.EventPublisher) Option {
	return func(s *TransactionService) { s.publisher = p }
}

// WithClock replaces time.Now for the default create_at.
func WithClock(now func() time.Time) Option {
	return func(s *TransactionService) { s.now = now }
}

func NewTransactionService(categories *CategoryService, store ports.TransactionStore, opts ...Option) *TransactionService {
	s := &TransactionService{
		categories: categories,
		store:      store,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create resolves the category before anything is written, then persists the
// transaction for user.
func (s *TransactionService) Create(ctx context.Context, in core.CreateTransactionInput, user core.User) (core.TransactionView, error) {
	if err := in.Validate(); err != nil {
		return core.TransactionView{}, err
	}

	category, err := s.categories.resolve(ctx, in.Category)
	if err != nil {
		return core.TransactionView{}, err
	}

	createAt := s.now()
	if in.CreateAt != nil {
		createAt = *in.CreateAt
	}

	created, err := s.store.CreateTransaction(ctx, core.Transaction{
		Amount:      in.Amount,
		Description: in.Description,
		CreateAt:    createAt,
		Category:    category,
		User:        user,
	})
	if err != nil {
		return core.TransactionView{}, fmt.Errorf("create transaction: %w", err)
	}

	s.publish(ctx, core.EventTransactionCreated, created.ID, user.ID)
	return created.View(), nil
}

func (s *TransactionService) FindAll(ctx context.Context, user core.User) ([]core.TransactionView, error) {
	ts, err := s.store.ListTransactionsByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return core.Views(ts), nil
}

func (s *TransactionService) FindOne(ctx context.Context, id int64, user core.User) (core.TransactionView, error) {
	t, err := s.findOwned(ctx, id, user)
	if err != nil {
		return core.TransactionView{}, err
	}
	return t.View(), nil
}

// Update applies the present patch fields to a transaction owned by user.
// A named category is resolved before the transaction is read.
func (s *TransactionService) Update(ctx context.Context, id int64, patch core.TransactionPatch, user core.User) (core.TransactionView, error) {
	if err := patch.Validate(); err != nil {
		return core.TransactionView{}, err
	}

	var category *core.Category
	if patch.Category != nil {
		c, err := s.categories.resolve(ctx, *patch.Category)
		if err != nil {
			return core.TransactionView{}, err
		}
		category = &c
	}

	current, err := s.findOwned(ctx, id, user)
	if err != nil {
		return core.TransactionView{}, err
	}
	if patch.IsEmpty() {
		return current.View(), nil
	}

	updated, err := s.store.UpdateTransaction(ctx, patch.Merge(current, category))
	if err != nil {
		return core.TransactionView{}, fmt.Errorf("update transaction %d: %w", id, err)
	}

	s.publish(ctx, core.EventTransactionUpdated, updated.ID, user.ID)
	return updated.View(), nil
}

func (s *TransactionService) Remove(ctx context.Context, id int64, user core.User) error {
	if _, err := s.findOwned(ctx, id, user); err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, id, user.ID); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	s.publish(ctx, core.EventTransactionDeleted, id, user.ID)
	return nil
}

func (s *TransactionService) findOwned(ctx context.Context, id int64, user core.User) (core.Transaction, error) {
	t, err := s.store.FindTransaction(ctx, id, user.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("find transaction %d: %w", id, err)
	}
	if t == nil {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, id)
	}
	return *t, nil
}

// publish never fails the request: the write is already durable.
func (s *TransactionService) publish(ctx context.Context, typ core.EventType, id int64, userID string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping event", "type", typ, "id", id)
		return
	}

	e := core.TransactionEvent{
		Type:          typ,
		TransactionID: id,
		UserID:        userID,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.publisher.PublishTransactionEvent(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"type", typ,
			"id", id,
			"error", err)
	}
}
