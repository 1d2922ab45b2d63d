package http

import (
	"context"
	"net/http"
	"time"

	"finance/internal/apperror"
	applog "finance/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}

	view, err := s.transactions.Create(r.Context(), req.toInput(), user)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		applog.NewFields().WithOperation(applog.OpCreate).WithTransaction(view.ID, user.ID).ToSlice()...)
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	views, err := s.transactions.FindAll(r.Context(), user)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		apperror.Write(w, r, err)
		return
	}

	view, err := s.transactions.FindOne(r.Context(), id, user)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleUpdateTransaction coerces the id leniently: anything that is not a
// whole number addresses no transaction.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := coerceID(r.PathValue("id"))

	var req patchTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}

	view, err := s.transactions.Update(r.Context(), id, req.toPatch(), user)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction updated",
		applog.NewFields().WithOperation(applog.OpUpdate).WithTransaction(view.ID, user.ID).ToSlice()...)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		apperror.Write(w, r, err)
		return
	}

	if err := s.transactions.Remove(r.Context(), id, user); err != nil {
		apperror.Write(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
		applog.NewFields().WithOperation(applog.OpDelete).WithTransaction(id, user.ID).ToSlice()...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.ListCategories(r.Context())
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

type healthResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	RequestsTotal int64  `json:"requests_total"`
	ActiveClients int    `json:"active_clients"`
	RateLimited   int64  `json:"rate_limited"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		RequestsTotal: s.tracer.Total(),
		ActiveClients: s.limiter.ActiveClients(),
		RateLimited:   s.limiter.Rejected(),
	})
}

// handleReady reports 503 until the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "store": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "store": "ok"})
}
