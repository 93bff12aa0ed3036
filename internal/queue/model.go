package queue

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PreparationType string

const (
	PreparationSandwich PreparationType = "sandwich"
	PreparationPizza    PreparationType = "pizza"
)

// PreparationTypes lists every type that owns a ticket sequence.
var PreparationTypes = []PreparationType{PreparationSandwich, PreparationPizza}

func (t PreparationType) Valid() bool {
	switch t {
	case PreparationSandwich, PreparationPizza:
		return true
	}
	return false
}

// ParsePreparationType accepts the lowercase wire value, ignoring surrounding spaces and case.
func ParsePreparationType(s string) (PreparationType, error) {
	t := PreparationType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidPreparationType
	}
	return t, nil
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
)

// ActiveStatuses is the active window: entries that still hold a ticket number.
var ActiveStatuses = []Status{StatusPending, StatusReady}

const (
	// MaxSimultaneous is the default number of units of one type prepared in parallel.
	MaxSimultaneous = 4
	// MaxQueueNumber is the last ticket number before the sequence wraps to 0.
	MaxQueueNumber = 999

	SandwichBaseTime = 270
	PizzaBaseTime    = 780
)

// Entry is one ticket of kitchen work for a single (order, preparation type) pair.
type Entry struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	QueueNumber     int             `json:"queue_number"`
	PreparationType PreparationType `json:"preparation_type"`
	EstimatedTime   int             `json:"estimated_time"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	ReadyAt         *time.Time      `json:"ready_at"`
	DeliveredAt     *time.Time      `json:"delivered_at"`
}

func (e *Entry) Active() bool {
	return e.Status == StatusPending || e.Status == StatusReady
}

// RemainingTime returns the seconds left on the estimate at now, never below zero.
func (e *Entry) RemainingTime(now time.Time) int {
	elapsed := int(now.Sub(e.CreatedAt) / time.Second)
	remaining := e.EstimatedTime - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

type EventType string

const (
	EventEnqueued   EventType = "queue.entry.enqueued"
	EventReady      EventType = "queue.entry.ready"
	EventDelivered  EventType = "queue.entry.delivered"
	EventRecomputed EventType = "queue.estimates.recomputed"
)

// Event describes a change in a preparation queue. EntryID is nil for
// type-wide events such as a recompute pass.
type Event struct {
	Type            EventType       `json:"type"`
	PreparationType PreparationType `json:"preparation_type"`
	EntryID         *uuid.UUID      `json:"entry_id,omitempty"`
	QueueNumber     *int            `json:"queue_number,omitempty"`
	Status          Status          `json:"status,omitempty"`
	Updated         int             `json:"updated,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}
