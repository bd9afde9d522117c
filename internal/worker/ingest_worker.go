// Package worker consumes recognizer payloads from the ingest queue and
// archives them through the receipt handler.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"receipts/internal/amqp"
	"receipts/internal/handler"
)

// ReceiptHandler archives one raw payload. *handler.Handler satisfies it.
type ReceiptHandler interface {
	Handle(ctx context.Context, raw []byte) (handler.Response, error)
}

// IngestWorker maps handler outcomes to the queue's ack policy: rejected
// payloads are dropped (redelivery cannot fix bad input), archive failures
// are requeued.
type IngestWorker struct {
	handler ReceiptHandler
}

func NewIngestWorker(h ReceiptHandler) *IngestWorker {
	return &IngestWorker{handler: h}
}

// HandleDelivery processes one ingest payload.
func (w *IngestWorker) HandleDelivery(ctx context.Context, body []byte) error {
	resp, err := w.handler.Handle(ctx, body)
	if err != nil {
		return fmt.Errorf("handle ingest payload: %w", err)
	}

	if !resp.OK {
		slog.WarnContext(ctx, "Rejected ingest payload",
			"field", resp.Field,
			"reason", resp.Error)
		return fmt.Errorf("%w: %s", amqp.ErrReject, resp.Error)
	}

	slog.InfoContext(ctx, "Archived receipt from ingest queue",
		"receipt_id", resp.ReceiptID)
	return nil
}

// Run consumes the ingest queue until ctx is done.
func (w *IngestWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeIngest(ctx, w.HandleDelivery)
}
