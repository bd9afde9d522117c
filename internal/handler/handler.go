// Package handler accepts pre-extracted receipt JSON from an external
// recognition step and archives it. The same entry point serves the CLI
// handle command (stdin) and the AMQP ingest worker.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"receipts/internal/core"
	"receipts/internal/services"
)

// Payload is the inbound receipt document. Amounts arrive as JSON numbers
// or strings and are parsed to exact cents; floats never touch the totals.
type Payload struct {
	Vendor   string        `json:"vendor"`
	Date     string        `json:"date"`
	Total    json.Number   `json:"total"`
	Currency string        `json:"currency,omitempty"`
	Category string        `json:"category,omitempty"`
	Items    []ItemPayload `json:"items,omitempty"`
	Image    string        `json:"image,omitempty"`
}

type ItemPayload struct {
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
}

// Response reports the outcome back to the caller. A rejected payload has
// OK false with an error message, and Field set when one input field is to
// blame.
type Response struct {
	OK        bool   `json:"ok"`
	ReceiptID int64  `json:"receipt_id,omitempty"`
	Field     string `json:"field,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Handler struct {
	service *services.ReceiptService
}

func NewHandler(service *services.ReceiptService) *Handler {
	return &Handler{service: service}
}

// Handle parses and archives one payload. Bad input comes back as a
// rejected Response with a nil error; a non-nil error means the archive
// itself failed and the payload is worth retrying.
func (h *Handler) Handle(ctx context.Context, raw []byte) (Response, error) {
	var p Payload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return reject("", fmt.Sprintf("invalid JSON: %v", err)), nil
	}

	rec, resp, ok := h.toReceipt(p)
	if !ok {
		return resp, nil
	}

	stored, err := h.service.Archive(ctx, rec, p.Image)
	if err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			return reject(ve.Field, ve.Error()), nil
		}
		var dup *core.DuplicateImageError
		if errors.As(err, &dup) {
			return reject("image", dup.Error()), nil
		}
		return Response{}, fmt.Errorf("archive receipt: %w", err)
	}

	return Response{OK: true, ReceiptID: stored.ID}, nil
}

func (h *Handler) toReceipt(p Payload) (core.Receipt, Response, bool) {
	date, err := core.ParseDate(p.Date)
	if err != nil {
		return core.Receipt{}, reject("date", fmt.Sprintf("date must be YYYY-MM-DD: %q", p.Date)), false
	}

	cents, err := core.ParseDecimalToCents(p.Total.String())
	if err != nil {
		return core.Receipt{}, reject("total", fmt.Sprintf("total is not a valid amount: %q", p.Total)), false
	}

	rec := core.Receipt{
		Vendor:   p.Vendor,
		Date:     date,
		Total:    core.Money{Cents: cents},
		Currency: p.Currency,
		Category: p.Category,
	}

	for i, item := range p.Items {
		priceCents, err := core.ParseDecimalToCents(item.Price.String())
		if err != nil {
			return core.Receipt{}, reject("items", fmt.Sprintf("item %d price is not a valid amount: %q", i, item.Price)), false
		}
		rec.Items = append(rec.Items, core.Item{Name: item.Name, Price: core.Money{Cents: priceCents}})
	}

	return rec, Response{}, true
}

func reject(field, msg string) Response {
	return Response{OK: false, Field: field, Error: msg}
}

// ReceiptView is the JSON shape of a stored receipt for command output.
// Amounts are decimal strings so scripts never see float rounding.
type ReceiptView struct {
	ID        int64      `json:"id"`
	Vendor    string     `json:"vendor"`
	Date      string     `json:"date"`
	Total     string     `json:"total"`
	Currency  string     `json:"currency"`
	Category  string     `json:"category"`
	Items     []ItemView `json:"items,omitempty"`
	Image     string     `json:"image,omitempty"`
	CreatedAt string     `json:"created_at,omitempty"`
}

type ItemView struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

func NewReceiptView(r core.Receipt) ReceiptView {
	view := ReceiptView{
		ID:       r.ID,
		Vendor:   r.Vendor,
		Date:     r.Date.String(),
		Total:    r.Total.Decimal(),
		Currency: r.Currency,
		Category: r.Category,
		Image:    r.ImagePath,
	}
	if !r.CreatedAt.IsZero() {
		view.CreatedAt = r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	for _, item := range r.Items {
		view.Items = append(view.Items, ItemView{Name: item.Name, Price: item.Price.Decimal()})
	}
	return view
}
