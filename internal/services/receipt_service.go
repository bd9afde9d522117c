package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"receipts/internal/category"
	"receipts/internal/core"
	"receipts/internal/images"
	"receipts/internal/storage"
)

// EventPublisher is the outbound notification surface. *amqp.Client
// satisfies it; a nil publisher means events are disabled.
type EventPublisher interface {
	PublishArchived(ctx context.Context, id int64, vendor string, totalCents int64, currency string) error
	PublishDeleted(ctx context.Context, id int64) error
	Close() error
}

// ReceiptService orchestrates archiving across the SQLite store, the image
// store and the optional event publisher.
type ReceiptService struct {
	storage      *storage.SQLiteRepository
	images       *images.Store
	classifier   *category.Classifier
	events       EventPublisher
	homeCurrency string
}

func NewReceiptService(storage *storage.SQLiteRepository, imgs *images.Store, classifier *category.Classifier, events EventPublisher, homeCurrency string) *ReceiptService {
	return &ReceiptService{
		storage:      storage,
		images:       imgs,
		classifier:   classifier,
		events:       events,
		homeCurrency: homeCurrency,
	}
}

// Archive fills in derived fields and persists the receipt. imageSource, if
// not empty, is a local file copied into the image store; its digest becomes
// the dedup key. Missing currency falls back to the home currency, missing
// category is classified from vendor and item keywords.
func (s *ReceiptService) Archive(ctx context.Context, rec core.Receipt, imageSource string) (core.Receipt, error) {
	if imageSource != "" {
		path, digest, err := s.images.Save(imageSource)
		if err != nil {
			return core.Receipt{}, fmt.Errorf("store image: %w", err)
		}
		rec.ImagePath = path
		rec.ImageSHA = digest
	}

	if rec.Currency == "" {
		rec.Currency = s.homeCurrency
	}
	rec.Currency = strings.ToUpper(rec.Currency)

	if rec.Category == "" {
		rec.Category = s.classifier.Classify(rec.Vendor, rec.Items)
	}

	stored, err := s.storage.Create(ctx, rec)
	if err != nil {
		return core.Receipt{}, err
	}

	// Events are best effort. The receipt is archived locally either way.
	if err := s.publishArchived(ctx, stored); err != nil {
		slog.ErrorContext(ctx, "Failed to publish archived event",
			"receipt_id", stored.ID, "error", err)
	}

	return stored, nil
}

// Get returns one receipt by ID.
func (s *ReceiptService) Get(ctx context.Context, id int64) (core.Receipt, error) {
	return s.storage.Get(ctx, id)
}

// Delete removes a receipt, and its stored image when removeImage is set.
// Image removal is best effort; the database row is gone regardless.
func (s *ReceiptService) Delete(ctx context.Context, id int64, removeImage bool) error {
	rec, err := s.storage.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, id); err != nil {
		return err
	}

	if removeImage && rec.ImagePath != "" {
		if err := s.images.Remove(rec.ImagePath); err != nil {
			slog.WarnContext(ctx, "Failed to remove receipt image",
				"receipt_id", id, "path", rec.ImagePath, "error", err)
		}
	}

	if err := s.publishDeleted(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish deleted event",
			"receipt_id", id, "error", err)
	}

	return nil
}

func (s *ReceiptService) publishArchived(ctx context.Context, rec core.Receipt) error {
	if s.events == nil {
		return nil
	}
	return s.events.PublishArchived(ctx, rec.ID, rec.Vendor, rec.Total.Cents, rec.Currency)
}

func (s *ReceiptService) publishDeleted(ctx context.Context, id int64) error {
	if s.events == nil {
		return nil
	}
	return s.events.PublishDeleted(ctx, id)
}

// Close closes the storage and event publisher connections.
func (s *ReceiptService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close receipt service: %v", errs)
	}

	return nil
}
