package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"finance/internal/amqp"
	"finance/internal/ports"
)

// AuditWorker appends every consumed transaction event to the audit trail.
type AuditWorker struct {
	audit     ports.AuditWriter
	processed atomic.Int64
	failed    atomic.Int64
}

func NewAuditWorker(audit ports.AuditWriter) *AuditWorker {
	return &AuditWorker{audit: audit}
}

// HandleTransactionEvent matches amqp.Handler. A returned error requeues
// the delivery, so storage failures are retried by the broker.
func (w *AuditWorker) HandleTransactionEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"type", msg.Type,
		"transaction_id", msg.TransactionID,
		"user_id", msg.UserID)

	if err := w.audit.RecordTransactionEvent(ctx, msg.Event()); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("record transaction event: %w", err)
	}

	w.processed.Add(1)
	return nil
}

// Stats reports how many events were recorded and how many failed.
func (w *AuditWorker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}
