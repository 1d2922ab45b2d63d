package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestCreateTransactionInputValidate(t *testing.T) {
	good := CreateTransactionInput{
		Amount:      Money{Cents: 5000},
		Description: "lunch",
		Category:    "Food",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zero := time.Time{}
	bads := []struct {
		in    CreateTransactionInput
		field string
	}{
		{CreateTransactionInput{Amount: Money{}, Description: "a", Category: "c"}, "amount"},
		{CreateTransactionInput{Amount: Money{Cents: 1}, Description: "  ", Category: "c"}, "description"},
		{CreateTransactionInput{Amount: Money{Cents: 1}, Description: strings.Repeat("x", 201), Category: "c"}, "description"},
		{CreateTransactionInput{Amount: Money{Cents: 1}, Description: "a", Category: ""}, "category"},
		{CreateTransactionInput{Amount: Money{Cents: 1}, Description: "a", Category: "c", CreateAt: &zero}, "create_at"},
	}
	for i, tc := range bads {
		err := tc.in.Validate()
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("case %d expected ValidationError, got %v", i, err)
		}
		if ve.Field != tc.field {
			t.Fatalf("case %d expected field %q, got %q", i, tc.field, ve.Field)
		}
	}
}

func TestTransactionPatchValidate(t *testing.T) {
	if err := (TransactionPatch{}).Validate(); err != nil {
		t.Fatalf("empty patch should be valid, got %v", err)
	}
	if !(TransactionPatch{}).IsEmpty() {
		t.Fatal("zero patch should report empty")
	}
	empty := ""
	if err := (TransactionPatch{Category: &empty}).Validate(); !errors.Is(err, ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
	desc := "dinner"
	if err := (TransactionPatch{Description: &desc}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestTransactionPatchMerge(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	orig := Transaction{
		ID:          7,
		Amount:      Money{Cents: 100},
		Description: "old",
		CreateAt:    created,
		Category:    Category{ID: 1, Name: "Food"},
		User:        User{ID: "u1", Name: "Ana", Email: "ana@example.com"},
	}

	desc := "new"
	merged := TransactionPatch{Description: &desc}.Merge(orig, nil)
	if merged.Description != "new" || merged.Amount.Cents != 100 || merged.Category.Name != "Food" {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
	if orig.Description != "old" {
		t.Fatalf("merge mutated the original")
	}

	cat := &Category{ID: 2, Name: "Transport"}
	merged = TransactionPatch{}.Merge(orig, cat)
	if merged.Category != *cat || merged.User.ID != "u1" {
		t.Fatalf("category not substituted or owner changed: %+v", merged)
	}
}

func TestTransactionViewOmitsEmail(t *testing.T) {
	tx := Transaction{
		ID:       1,
		Amount:   Money{Cents: 5000},
		Category: Category{ID: 1, Name: "Food"},
		User:     User{ID: "u1", Name: "Ana", Email: "ana@example.com", Password: "hash"},
	}
	v := tx.View()
	if v.User.ID != "u1" || v.User.Name != "Ana" {
		t.Fatalf("unexpected user view: %+v", v.User)
	}
	if tx.User.Email != "ana@example.com" {
		t.Fatalf("building the view must not touch the entity")
	}
}
