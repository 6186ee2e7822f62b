package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/entrada/entrada/internal/domain"
	"github.com/entrada/entrada/internal/repository"
	postgresrepo "github.com/entrada/entrada/internal/repository/postgres"
	redisrepo "github.com/entrada/entrada/internal/repository/redis"
)

type Catalog interface {
	FindCategory(ctx context.Context, db postgresrepo.DB, eventID, categoryID uuid.UUID) (*domain.TicketCategory, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.TicketCategory, error)
}

type Tickets interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Ticket, error)
}

type Config struct {
	AvailabilityTTL time.Duration
}

// Service serves the read side: category availability (cached) and ticket
// lookups for staff tooling.
type Service struct {
	catalog Catalog
	tickets Tickets
	cache   *redisrepo.Cache
	cfg     Config
}

func New(catalog Catalog, tickets Tickets, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = 15 * time.Second
	}

	return &Service{
		catalog: catalog,
		tickets: tickets,
		cache:   cache,
		cfg:     cfg,
	}
}

// GetAvailability returns a category's current price and remaining stock,
// served from a short-lived cache that purchase and admin commits
// invalidate.
func (s *Service) GetAvailability(ctx context.Context, eventID, categoryID uuid.UUID) (*domain.TicketCategory, error) {
	const op = "service.query.GetAvailability"

	load := func(ctx context.Context) (domain.TicketCategory, error) {
		tc, err := s.catalog.FindCategory(ctx, nil, eventID, categoryID)
		if err != nil {
			return domain.TicketCategory{}, err
		}
		return *tc, nil
	}

	var (
		tc  domain.TicketCategory
		err error
	)
	if s.cache != nil {
		key := redisrepo.KeyCategoryAvailability(eventID, categoryID)
		tc, err = redisrepo.GetOrSetJSON(ctx, s.cache, key, s.cfg.AvailabilityTTL, load)
	} else {
		tc, err = load(ctx)
	}
	if err != nil {
		// Unpublished events are not browsable either.
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrEventNotPublished) {
			return nil, fmt.Errorf("%s:%w", op, ErrCategoryNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &tc, nil
}

func (s *Service) ListEventCategories(ctx context.Context, eventID uuid.UUID) ([]domain.TicketCategory, error) {
	const op = "service.query.ListEventCategories"

	out, err := s.catalog.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Service) GetTicket(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "service.query.GetTicket"

	t, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrTicketNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return t, nil
}

func (s *Service) ListEventTickets(ctx context.Context, eventID uuid.UUID) ([]domain.Ticket, error) {
	const op = "service.query.ListEventTickets"

	out, err := s.tickets.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
