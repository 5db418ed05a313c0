package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a structural change in a user's spreadsheet.
type EventType string

const (
	// EventSheetProvisioned follows the creation of a month tab.
	EventSheetProvisioned EventType = "sheet.provisioned"
	// EventExpenseRecorded follows an appended expense row.
	EventExpenseRecorded EventType = "expense.recorded"
	// EventResyncRequested asks for a full Summary re-assert.
	EventResyncRequested EventType = "summary.resync_requested"
)

// Event is a lightweight notification. It carries identifiers only; the
// worker re-derives everything else from the cache and the spreadsheet.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    int64     `json:"user_id"`
	Year      int       `json:"year"`
	Month     string    `json:"month,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event with a fresh id.
func NewEvent(t EventType, userID int64, year int, month string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		UserID:    userID,
		Year:      year,
		Month:     month,
		Timestamp: time.Now().UTC(),
	}
}

func (e *Event) Validate() error {
	switch e.Type {
	case EventSheetProvisioned, EventExpenseRecorded, EventResyncRequested:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.UserID <= 0 {
		return errors.New("event without user id")
	}
	if e.Year == 0 {
		return errors.New("event without year")
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes and validates an event.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
