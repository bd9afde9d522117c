package amqp

import (
	"encoding/json"
	"time"
)

// Event actions published on the events queue.
const (
	ActionArchived = "archived"
	ActionDeleted  = "deleted"
)

// ReceiptEvent is the lightweight notification published after a receipt is
// archived or deleted. Consumers that need the full record fetch it by ID.
type ReceiptEvent struct {
	Action     string    `json:"action"`
	ReceiptID  int64     `json:"receipt_id"`
	Vendor     string    `json:"vendor,omitempty"`
	TotalCents int64     `json:"total_cents,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewArchivedEvent(id int64, vendor string, totalCents int64, currency string) *ReceiptEvent {
	return &ReceiptEvent{
		Action:     ActionArchived,
		ReceiptID:  id,
		Vendor:     vendor,
		TotalCents: totalCents,
		Currency:   currency,
		Timestamp:  time.Now(),
	}
}

func NewDeletedEvent(id int64) *ReceiptEvent {
	return &ReceiptEvent{
		Action:    ActionDeleted,
		ReceiptID: id,
		Timestamp: time.Now(),
	}
}

func (e *ReceiptEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ReceiptEventFromJSON(data []byte) (*ReceiptEvent, error) {
	var e ReceiptEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
