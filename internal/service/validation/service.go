package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/entrada/entrada/internal/domain"
	"github.com/entrada/entrada/internal/repository"
	redisrepo "github.com/entrada/entrada/internal/repository/redis"
)

type Tickets interface {
	MarkValidatedOnce(ctx context.Context, eventID uuid.UUID, code string) (*domain.Ticket, error)
	FindByCode(ctx context.Context, code string) (*domain.Ticket, error)
}

// Service handles door-side ticket scanning. It touches the ticket store
// only and is independent of the purchase path.
type Service struct {
	tickets Tickets
	pubsub  *redisrepo.PurchasesPubSub
}

func New(tickets Tickets, pubsub *redisrepo.PurchasesPubSub) *Service {
	return &Service{tickets: tickets, pubsub: pubsub}
}

// ValidateAtDoor flips a ticket to validated exactly once, scoped to the
// event being scanned. A failed attempt is terminal; the operator rescans
// or uses a different code.
//
// Returns:
//   - validation.ErrTicketInvalid on any no-match.
func (s *Service) ValidateAtDoor(ctx context.Context, eventID uuid.UUID, code string) (uuid.UUID, error) {
	const op = "service.validation.ValidateAtDoor"

	t, err := s.tickets.MarkValidatedOnce(ctx, eventID, code)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidOrUsed) {
			return uuid.Nil, fmt.Errorf("%s:%w", op, ErrTicketInvalid)
		}
		return uuid.Nil, fmt.Errorf("%s:%w", op, err)
	}

	if s.pubsub != nil {
		_ = s.pubsub.PublishTicketValidated(ctx, eventID, t.ID)
	}

	return t.ID, nil
}

// Peek returns a ticket by code without consuming its validation. Unlike
// the door path it reports a plain not-found, since it exists for display.
func (s *Service) Peek(ctx context.Context, code string) (*domain.Ticket, error) {
	const op = "service.validation.Peek"

	t, err := s.tickets.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTicketNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return t, nil
}
