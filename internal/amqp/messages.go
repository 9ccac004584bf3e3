package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types carried on the ledger queue.
const (
	EventPaymentToggled = "payment.toggled"
	EventRosterChanged  = "roster.changed"
)

// LedgerEvent tells consumers that ledger inputs changed. It carries ids
// only; consumers reload the collections they need.
type LedgerEvent struct {
	Type       string    `json:"type"`
	PaymentID  string    `json:"paymentId,omitempty"`
	StudentID  string    `json:"studentId,omitempty"`
	BatchID    string    `json:"batchId,omitempty"`
	Month      string    `json:"month,omitempty"`
	Year       string    `json:"year,omitempty"`
	Status     string    `json:"status,omitempty"`
	Collection string    `json:"collection,omitempty"` // roster.changed only
	Timestamp  time.Time `json:"timestamp"`
}

func NewPaymentToggled(paymentID, studentID, batchID, month, year, status string) *LedgerEvent {
	return &LedgerEvent{
		Type:      EventPaymentToggled,
		PaymentID: paymentID,
		StudentID: studentID,
		BatchID:   batchID,
		Month:     month,
		Year:      year,
		Status:    status,
		Timestamp: time.Now(),
	}
}

// NewRosterChanged reports a change to a JSON collection.
func NewRosterChanged(collection string) *LedgerEvent {
	return &LedgerEvent{
		Type:       EventRosterChanged,
		Collection: collection,
		Timestamp:  time.Now(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("ledger event without type")
	}
	return &msg, nil
}
