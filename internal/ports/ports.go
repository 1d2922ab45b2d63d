package ports

import (
	"context"

	"finance/internal/core"
)

// Ports for outbound adapters. Find* methods return (nil, nil) when the
// record is absent; callers decide which domain error that is.
type (
	CategoryReader interface {
		FindCategoryByName(ctx context.Context, name string) (*core.Category, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	CategoryWriter interface {
		CreateCategory(ctx context.Context, name string) (core.Category, error)
	}

	// TransactionStore persists transactions. Every lookup by id is scoped
	// to the owning user.
	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		ListTransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error)
		FindTransaction(ctx context.Context, id int64, userID string) (*core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id int64, userID string) error
	}

	UserReader interface {
		FindUser(ctx context.Context, id string) (*core.User, error)
	}

	// UserWriter backs the admin tool. Deleting a user cascades to its
	// transactions.
	UserWriter interface {
		CreateUser(ctx context.Context, u core.User) error
		DeleteUser(ctx context.Context, id string) error
	}

	// EventPublisher announces committed writes to other processes.
	EventPublisher interface {
		PublishTransactionEvent(ctx context.Context, e core.TransactionEvent) error
	}

	AuditWriter interface {
		RecordTransactionEvent(ctx context.Context, e core.TransactionEvent) error
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Store is the full surface a storage backend provides.
type Store interface {
	CategoryReader
	CategoryWriter
	TransactionStore
	UserReader
	UserWriter
	AuditWriter
	Pinger
	Close() error
}
