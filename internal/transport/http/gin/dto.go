package httpgin

import (
	"time"

	"github.com/entrada/entrada/internal/domain"
)

type CreatePurchaseRequest struct {
	EventID    string `json:"event_id" binding:"required,uuid"`
	CategoryID string `json:"category_id" binding:"required,uuid"`
	Quantity   int64  `json:"quantity" binding:"required,gt=0"`
}

type ValidateTicketRequest struct {
	Code string `json:"code" binding:"required"`
}

type ValidateTicketResponse struct {
	OK       bool   `json:"ok"`
	TicketID string `json:"ticket_id"`
}

type UpdatePurchaseRequest struct {
	Status *string `json:"status"`
}

type CreateCategoryRequest struct {
	Category          string `json:"category" binding:"required"`
	PriceCents        int64  `json:"price_cents" binding:"min=0"`
	QuantityAvailable int64  `json:"quantity_available" binding:"min=0"`
}

type UpdateCategoryRequest struct {
	Category          *string `json:"category"`
	PriceCents        *int64  `json:"price_cents"`
	QuantityAvailable *int64  `json:"quantity_available"`
}

// TicketResponse is the buyer-facing ticket shape. The validation hash is a
// door-side secret and never leaves the backend through this DTO.
type TicketResponse struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Category    string     `json:"category"`
	PriceCents  int64      `json:"price_cents"`
	IsValidated bool       `json:"is_validated"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
}

type PurchaseResponse struct {
	ID         string           `json:"id"`
	BuyerID    string           `json:"buyer_id"`
	EventID    string           `json:"event_id"`
	TotalCents int64            `json:"total_cents"`
	Status     string           `json:"status"`
	TicketIDs  []string         `json:"ticket_ids"`
	CreatedAt  time.Time        `json:"created_at"`
	Tickets    []TicketResponse `json:"tickets,omitempty"`
}

type AvailabilityResponse struct {
	EventID           string `json:"event_id"`
	CategoryID        string `json:"category_id"`
	Category          string `json:"category"`
	PriceCents        int64  `json:"price_cents"`
	QuantityAvailable int64  `json:"quantity_available"`
}

type CategoryResponse struct {
	ID                string `json:"id"`
	EventID           string `json:"event_id"`
	Category          string `json:"category"`
	PriceCents        int64  `json:"price_cents"`
	QuantityAvailable int64  `json:"quantity_available"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func toTicketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID.String(),
		Code:        t.Code,
		Category:    t.Category,
		PriceCents:  t.PriceCents,
		IsValidated: t.IsValidated,
		ValidatedAt: t.ValidatedAt,
	}
}

func toPurchaseResponse(p domain.Purchase, tickets []domain.Ticket) PurchaseResponse {
	ids := make([]string, len(p.TicketIDs))
	for i, id := range p.TicketIDs {
		ids[i] = id.String()
	}

	out := PurchaseResponse{
		ID:         p.ID.String(),
		BuyerID:    p.BuyerID.String(),
		EventID:    p.EventID.String(),
		TotalCents: p.TotalCents,
		Status:     string(p.Status),
		TicketIDs:  ids,
		CreatedAt:  p.CreatedAt,
	}

	for _, t := range tickets {
		out.Tickets = append(out.Tickets, toTicketResponse(t))
	}

	return out
}

func toCategoryResponse(tc domain.TicketCategory) CategoryResponse {
	return CategoryResponse{
		ID:                tc.ID.String(),
		EventID:           tc.EventID.String(),
		Category:          tc.Category,
		PriceCents:        tc.PriceCents,
		QuantityAvailable: tc.QuantityAvailable,
	}
}
