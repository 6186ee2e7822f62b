package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
)

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseCancelled PurchaseStatus = "cancelled"
	PurchaseRefunded  PurchaseStatus = "refunded"
)

type Event struct {
	ID     uuid.UUID
	Title  string
	Status EventStatus
	Starts time.Time
	Ends   time.Time
}

// TicketCategory is a ticket tier within an event. QuantityAvailable is the
// single contended counter; it is mutated only through the conditional
// decrement in the catalog repository and never goes negative.
type TicketCategory struct {
	ID                uuid.UUID
	EventID           uuid.UUID
	Category          string
	PriceCents        int64
	QuantityAvailable int64
}

type Purchase struct {
	ID         uuid.UUID
	BuyerID    uuid.UUID
	EventID    uuid.UUID
	TotalCents int64
	Status     PurchaseStatus
	TicketIDs  []uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PurchasePatch carries the administratively editable purchase fields.
// Nil means "leave unchanged".
type PurchasePatch struct {
	Status *PurchaseStatus
}

// CategoryPatch carries the editable ticket category fields. Nil means
// "leave unchanged".
type CategoryPatch struct {
	Category          *string
	PriceCents        *int64
	QuantityAvailable *int64
}

// TicketDraft is a ticket that has been minted but not yet persisted.
// Code and ValidationHash are freshly generated per draft; the database
// unique constraints are the backstop against collisions.
type TicketDraft struct {
	Code           string
	ValidationHash string
	EventID        uuid.UUID
	CategoryID     uuid.UUID
	Category       string
	PriceCents     int64
	BuyerID        uuid.UUID
	PurchaseID     uuid.UUID
}

type Ticket struct {
	ID             uuid.UUID
	Code           string
	ValidationHash string
	EventID        uuid.UUID
	CategoryID     uuid.UUID
	Category       string
	PriceCents     int64
	BuyerID        uuid.UUID
	PurchaseID     uuid.UUID
	IsValidated    bool
	ValidatedAt    *time.Time
	CreatedAt      time.Time
}

type PurchaseWithTickets struct {
	Purchase Purchase
	Tickets  []Ticket
}
