package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/entrada/entrada/internal/domain"
	"github.com/entrada/entrada/internal/repository"
	postgresrepo "github.com/entrada/entrada/internal/repository/postgres"
	redisrepo "github.com/entrada/entrada/internal/repository/redis"
	"github.com/entrada/entrada/internal/uow"
)

type Catalog interface {
	CreateCategory(ctx context.Context, db postgresrepo.DB, eventID uuid.UUID, category string, priceCents, quantity int64) (*domain.TicketCategory, error)
	UpdateCategory(ctx context.Context, db postgresrepo.DB, eventID, categoryID uuid.UUID, patch domain.CategoryPatch) (*domain.TicketCategory, error)
	DeleteCategory(ctx context.Context, db postgresrepo.DB, eventID, categoryID uuid.UUID) error
}

type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error
}

// Service covers organizer-side category management. Edits never touch
// committed purchases: the purchase workflow snapshots price and label at
// buy time.
type Service struct {
	catalog Catalog
	cache   *redisrepo.Cache
	pubsub  *redisrepo.PurchasesPubSub
	uow     UnitOfWork
}

func New(catalog Catalog, cache *redisrepo.Cache, pubsub *redisrepo.PurchasesPubSub, u UnitOfWork) *Service {
	return &Service{
		catalog: catalog,
		cache:   cache,
		pubsub:  pubsub,
		uow:     u,
	}
}

func (s *Service) CreateCategory(
	ctx context.Context,
	eventID uuid.UUID,
	category string,
	priceCents, quantity int64,
) (*domain.TicketCategory, error) {
	const op = "service.admin.CreateCategory"

	if category == "" || priceCents < 0 || quantity < 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidCategory)
	}

	var tc *domain.TicketCategory

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		var err error
		tc, err = s.catalog.CreateCategory(ctx, tx, eventID, category, priceCents, quantity)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrCategoryConflict)
			}
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrEventNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateCategory(ctx, eventID, tc.ID)
			}
			if s.pubsub != nil {
				_ = s.pubsub.PublishCatalogChanged(ctx, eventID)
			}
		})

		return nil
	})

	return tc, err
}

func (s *Service) UpdateCategory(
	ctx context.Context,
	eventID, categoryID uuid.UUID,
	patch domain.CategoryPatch,
) (*domain.TicketCategory, error) {
	const op = "service.admin.UpdateCategory"

	if patch.PriceCents != nil && *patch.PriceCents < 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidCategory)
	}
	if patch.QuantityAvailable != nil && *patch.QuantityAvailable < 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidCategory)
	}

	var tc *domain.TicketCategory

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		var err error
		tc, err = s.catalog.UpdateCategory(ctx, tx, eventID, categoryID, patch)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrCategoryNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateCategory(ctx, eventID, categoryID)
			}
			if s.pubsub != nil {
				_ = s.pubsub.PublishCatalogChanged(ctx, eventID)
			}
		})

		return nil
	})

	return tc, err
}

func (s *Service) DeleteCategory(ctx context.Context, eventID, categoryID uuid.UUID) error {
	const op = "service.admin.DeleteCategory"

	return s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if err := s.catalog.DeleteCategory(ctx, tx, eventID, categoryID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrCategoryNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateCategory(ctx, eventID, categoryID)
			}
			if s.pubsub != nil {
				_ = s.pubsub.PublishCatalogChanged(ctx, eventID)
			}
		})

		return nil
	})
}
