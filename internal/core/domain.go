package core

import (
	"errors"
	"strings"
	"time"
)

const maxDescriptionLen = 200

type (
	Money struct {
		Cents int64
	}

	User struct {
		ID       string
		Name     string
		Email    string
		Password string // bcrypt hash
	}

	Category struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	// Transaction is the persisted entity. Handlers never serialize it
	// directly; use View.
	Transaction struct {
		ID          int64
		Amount      Money
		Description string
		CreateAt    time.Time
		Category    Category
		User        User
	}

	CreateTransactionInput struct {
		Amount      Money
		Description string
		Category    string // category name
		CreateAt    *time.Time
	}

	// TransactionPatch carries only the fields present in an update request.
	TransactionPatch struct {
		Amount      *Money
		Description *string
		Category    *string // category name
		CreateAt    *time.Time
	}

	UserView struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	TransactionView struct {
		ID          int64     `json:"id"`
		Amount      Money     `json:"amount"`
		Description string    `json:"description"`
		CreateAt    time.Time `json:"create_at"`
		Category    Category  `json:"category"`
		User        UserView  `json:"user"`
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory       = errors.New("empty category")
	ErrInvalidCreateAt     = errors.New("invalid create_at")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrConstraintViolation = errors.New("constraint violation")
)

// ValidationError ties a validation failure to the offending request field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateDescription(d string) error {
	if len(strings.TrimSpace(d)) == 0 {
		return ErrEmptyDescription
	}
	if len(d) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (in CreateTransactionInput) Validate() error {
	if err := in.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if err := validateDescription(in.Description); err != nil {
		return invalid("description", err)
	}
	if strings.TrimSpace(in.Category) == "" {
		return invalid("category", ErrEmptyCategory)
	}
	if in.CreateAt != nil && in.CreateAt.IsZero() {
		return invalid("create_at", ErrInvalidCreateAt)
	}
	return nil
}

func (p TransactionPatch) Validate() error {
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return invalid("amount", err)
		}
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return invalid("description", err)
		}
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return invalid("category", ErrEmptyCategory)
	}
	if p.CreateAt != nil && p.CreateAt.IsZero() {
		return invalid("create_at", ErrInvalidCreateAt)
	}
	return nil
}

// IsEmpty reports whether the patch carries no fields at all.
func (p TransactionPatch) IsEmpty() bool {
	return p.Amount == nil && p.Description == nil && p.Category == nil && p.CreateAt == nil
}

// Merge returns a copy of t with the patch's present fields applied.
// category replaces the current one when non-nil; the owner never changes.
func (p TransactionPatch) Merge(t Transaction, category *Category) Transaction {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.CreateAt != nil {
		t.CreateAt = *p.CreateAt
	}
	if category != nil {
		t.Category = *category
	}
	return t
}

// View builds the response payload. The owner's email and password are not
// part of UserView, so they can't leak through it.
func (t Transaction) View() TransactionView {
	return TransactionView{
		ID:          t.ID,
		Amount:      t.Amount,
		Description: t.Description,
		CreateAt:    t.CreateAt,
		Category:    t.Category,
		User: UserView{
			ID:   t.User.ID,
			Name: t.User.Name,
		},
	}
}

func Views(ts []Transaction) []TransactionView {
	out := make([]TransactionView, len(ts))
	for i, t := range ts {
		out[i] = t.View()
	}
	return out
}
