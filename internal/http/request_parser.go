package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finance/internal/apperror"
	"finance/internal/core"
)

const maxBodyBytes = 1 << 20

var (
	errEmptyBody     = errors.New("request body is empty")
	errTrailingData  = errors.New("request body must contain a single JSON object")
	errBodyTooLarge  = errors.New("request body too large")
	errUnknownField  = errors.New("unknown field")
	errMalformedJSON = errors.New("malformed JSON")
)

type createTransactionRequest struct {
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	CreateAt    *time.Time `json:"create_at"`
}

func (req createTransactionRequest) toInput() core.CreateTransactionInput {
	return core.CreateTransactionInput{
		Amount:      req.Amount,
		Description: sanitizeInput(req.Description),
		Category:    req.Category,
		CreateAt:    req.CreateAt,
	}
}

// patchTransactionRequest has no user field: unknown fields are rejected,
// so ownership cannot be patched.
type patchTransactionRequest struct {
	Amount      *core.Money `json:"amount"`
	Description *string     `json:"description"`
	Category    *string     `json:"category"`
	CreateAt    *time.Time  `json:"create_at"`
}

func (req patchTransactionRequest) toPatch() core.TransactionPatch {
	p := core.TransactionPatch{
		Amount:   req.Amount,
		Category: req.Category,
		CreateAt: req.CreateAt,
	}
	if req.Description != nil {
		d := sanitizeInput(*req.Description)
		p.Description = &d
	}
	return p
}

// decodeJSON reads exactly one JSON object into dst. Failures come back as
// *core.ValidationError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &core.ValidationError{Field: "body", Err: errTrailingData}
	}
	return nil
}

func bodyError(err error) error {
	var (
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
		sizeErr   *http.MaxBytesError
		timeErr   *time.ParseError
	)
	switch {
	case errors.Is(err, io.EOF):
		return &core.ValidationError{Field: "body", Err: errEmptyBody}
	case errors.As(err, &sizeErr):
		return &core.ValidationError{Field: "body", Err: errBodyTooLarge}
	case errors.Is(err, core.ErrInvalidAmount):
		return &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}
	case errors.As(err, &timeErr):
		return &core.ValidationError{Field: "create_at", Err: core.ErrInvalidCreateAt}
	case errors.As(err, &typeErr):
		return &core.ValidationError{Field: typeErr.Field, Err: fmt.Errorf("expected %s", typeErr.Type)}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &core.ValidationError{Field: "body", Err: errMalformedJSON}
	}

	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return &core.ValidationError{Field: strings.Trim(name, `"`), Err: errUnknownField}
	}
	return &core.ValidationError{Field: "body", Err: err}
}

// parseID accepts base-10 integers only, with an optional leading minus.
func parseID(raw string) (int64, error) {
	if strings.HasPrefix(raw, "+") {
		return 0, apperror.BadRequest("Validation failed (numeric string is expected)", errors.New("unexpected sign"))
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.BadRequest("Validation failed (numeric string is expected)", err)
	}
	return id, nil
}

// coerceID converts the way a numeric cast would: surrounding blanks are
// ignored and exponent or float notation is accepted when the value is
// whole. Anything else yields 0, which no transaction has.
func coerceID(raw string) int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 1 || f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}
