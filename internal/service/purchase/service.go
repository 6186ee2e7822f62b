package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/entrada/entrada/internal/auth"
	"github.com/entrada/entrada/internal/domain"
	"github.com/entrada/entrada/internal/repository"
	postgresrepo "github.com/entrada/entrada/internal/repository/postgres"
	redisrepo "github.com/entrada/entrada/internal/repository/redis"
	"github.com/entrada/entrada/internal/uow"
)

// Catalog is the contract this workflow consumes from the event catalog:
// a category lookup and the atomic conditional stock decrement.
type Catalog interface {
	FindCategory(ctx context.Context, db postgresrepo.DB, eventID, categoryID uuid.UUID) (*domain.TicketCategory, error)
	DecrementStock(ctx context.Context, db postgresrepo.DB, eventID, categoryID uuid.UUID, qty int64) error
}

type Tickets interface {
	InsertBatch(ctx context.Context, db postgresrepo.DB, drafts []domain.TicketDraft) ([]domain.Ticket, error)
}

type Purchases interface {
	Create(ctx context.Context, db postgresrepo.DB, buyerID, eventID uuid.UUID, totalCents int64, status domain.PurchaseStatus) (*domain.Purchase, error)
	AttachTickets(ctx context.Context, db postgresrepo.DB, purchaseID uuid.UUID, ticketIDs []uuid.UUID) error
	FindByIDPopulated(ctx context.Context, db postgresrepo.DB, id uuid.UUID) (*domain.PurchaseWithTickets, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Purchase, error)
	ListAll(ctx context.Context) ([]domain.Purchase, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.PurchasePatch) (*domain.Purchase, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
}

type CodeGenerator interface {
	Code() (string, error)
	ValidationHash() (string, error)
}

type UnitOfWork interface {
	DoWithOpts(ctx context.Context, opts *pgx.TxOptions, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error
}

type Config struct {
	// MaxPerPurchase bounds how many tickets one request may buy.
	MaxPerPurchase int64
	// MintAttempts bounds how often the whole unit is retried when a
	// generated code or hash collides with an existing ticket.
	MintAttempts int
}

type Service struct {
	catalog   Catalog
	tickets   Tickets
	purchases Purchases
	gen       CodeGenerator
	uow       UnitOfWork
	cache     *redisrepo.Cache
	pubsub    *redisrepo.PurchasesPubSub
	limiter   *redisrepo.SlidingWindowLimiter
	cfg       Config
}

func New(
	catalog Catalog,
	tickets Tickets,
	purchases Purchases,
	gen CodeGenerator,
	u UnitOfWork,
	cache *redisrepo.Cache,
	pubsub *redisrepo.PurchasesPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
) *Service {
	if cfg.MaxPerPurchase <= 0 {
		cfg.MaxPerPurchase = 10
	}

	if cfg.MintAttempts <= 0 {
		cfg.MintAttempts = 3
	}

	return &Service{
		catalog:   catalog,
		tickets:   tickets,
		purchases: purchases,
		gen:       gen,
		uow:       u,
		cache:     cache,
		pubsub:    pubsub,
		limiter:   limiter,
		cfg:       cfg,
	}
}

// Purchase converts a buyer's request for quantity tickets of one category
// into a completed purchase plus quantity minted tickets. The stock
// decrement, purchase row, ticket batch, and ticket attachment commit or
// roll back as one transaction; on any failure the system looks as if the
// call never happened.
//
// Returns:
//   - purchase.InvalidQuantityError before any store is touched when
//     quantity is out of range.
//   - purchase.ErrEventNotFound / purchase.ErrEventNotPublished from the
//     category lookup.
//   - purchase.InsufficientStockError when the category cannot satisfy the
//     requested quantity, whether seen at the pre-check or at the
//     authoritative conditional decrement. The request is never retried;
//     resubmitting is the buyer's decision.
//   - purchase.ErrTicketConflict if identifier collisions persist through
//     every mint attempt.
func (s *Service) Purchase(
	ctx context.Context,
	buyerID, eventID, categoryID uuid.UUID,
	quantity int64,
	rlKey string,
) (*domain.PurchaseWithTickets, error) {
	const op = "service.purchase.Purchase"

	if quantity < 1 || quantity > s.cfg.MaxPerPurchase {
		return nil, fmt.Errorf("%s:%w", op, InvalidQuantityError{Quantity: quantity, Max: s.cfg.MaxPerPurchase})
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: rate limited, retry in %s", op, retry)
		}
	}

	var (
		purchaseID uuid.UUID
		err        error
	)

	// A unique-constraint hit on a freshly generated code or hash aborts
	// the transaction, so the retry re-runs the whole unit with new
	// identifiers. Deadlocks get the same bounded re-run. Stock conflicts
	// are never retried.
	for attempt := 0; attempt < s.cfg.MintAttempts; attempt++ {
		purchaseID, err = s.purchaseOnce(ctx, buyerID, eventID, categoryID, quantity)
		if err == nil || !(errors.Is(err, ErrTicketConflict) || postgresrepo.IsRetryable(err)) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	populated, err := s.purchases.FindByIDPopulated(ctx, nil, purchaseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrReadBack)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return populated, nil
}

func (s *Service) purchaseOnce(
	ctx context.Context,
	buyerID, eventID, categoryID uuid.UUID,
	quantity int64,
) (uuid.UUID, error) {
	const op = "service.purchase.purchaseOnce"

	var purchaseID uuid.UUID

	// Read committed, not serializable: when two purchases contend on the
	// same category row, the loser's conditional decrement re-evaluates its
	// predicate after the lock wait and reports insufficient stock, instead
	// of the whole transaction dying with a serialization failure.
	txOpts := &pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}

	err := s.uow.DoWithOpts(ctx, txOpts, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		cat, err := s.catalog.FindCategory(ctx, tx, eventID, categoryID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrEventNotFound)
			}
			if errors.Is(err, repository.ErrEventNotPublished) {
				return fmt.Errorf("%s:%w", op, ErrEventNotPublished)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		// Fast fail with the observed availability. The conditional
		// decrement below stays authoritative.
		if cat.QuantityAvailable < quantity {
			return fmt.Errorf("%s:%w", op, InsufficientStockError{Available: cat.QuantityAvailable})
		}

		if err := s.catalog.DecrementStock(ctx, tx, eventID, categoryID, quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				// Under read committed this re-read sees the committed
				// decrement that won the row, so the reported count is
				// current, not this transaction's stale pre-check.
				avail := cat.QuantityAvailable
				if fresh, ferr := s.catalog.FindCategory(ctx, tx, eventID, categoryID); ferr == nil {
					avail = fresh.QuantityAvailable
				}
				return fmt.Errorf("%s:%w", op, InsufficientStockError{Available: avail})
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		// Unit price snapshot: the charged amount is fixed here and a
		// concurrent price edit cannot change it.
		totalCents := cat.PriceCents * quantity

		p, err := s.purchases.Create(ctx, tx, buyerID, eventID, totalCents, domain.PurchaseCompleted)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		drafts := make([]domain.TicketDraft, 0, quantity)
		for i := int64(0); i < quantity; i++ {
			code, err := s.gen.Code()
			if err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			hash, err := s.gen.ValidationHash()
			if err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			drafts = append(drafts, domain.TicketDraft{
				Code:           code,
				ValidationHash: hash,
				EventID:        eventID,
				CategoryID:     cat.ID,
				Category:       cat.Category,
				PriceCents:     cat.PriceCents,
				BuyerID:        buyerID,
				PurchaseID:     p.ID,
			})
		}

		tickets, err := s.tickets.InsertBatch(ctx, tx, drafts)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrTicketConflict)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		ids := make([]uuid.UUID, len(tickets))
		for i, t := range tickets {
			ids[i] = t.ID
		}

		if err := s.purchases.AttachTickets(ctx, tx, p.ID, ids); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		purchaseID = p.ID

		after(func(ctx context.Context) {
			if s.cache != nil {
				_ = s.cache.InvalidateCategory(ctx, eventID, categoryID)
			}
			if s.pubsub != nil {
				_ = s.pubsub.PublishPurchaseCompleted(ctx, purchaseID, eventID)
			}
		})

		return nil
	})

	return purchaseID, err
}

// Get returns one purchase with its tickets. A buyer may only read their own
// purchases; staff and admin roles may read any.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*domain.PurchaseWithTickets, error) {
	const op = "service.purchase.Get"

	p, err := s.purchases.FindByIDPopulated(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrPurchaseNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if p.Purchase.BuyerID != actor.UserID && !actor.HasRole(auth.RoleStaff, auth.RoleAdmin) {
		return nil, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	return p, nil
}

func (s *Service) ListOwn(ctx context.Context, actor auth.Identity) ([]domain.Purchase, error) {
	const op = "service.purchase.ListOwn"

	out, err := s.purchases.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Service) ListAll(ctx context.Context) ([]domain.Purchase, error) {
	const op = "service.purchase.ListAll"

	out, err := s.purchases.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Update applies an administrative patch. Cancelling a completed purchase
// does not restore category stock.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch domain.PurchasePatch) (*domain.Purchase, error) {
	const op = "service.purchase.Update"

	if patch.Status != nil {
		switch *patch.Status {
		case domain.PurchasePending, domain.PurchaseCompleted, domain.PurchaseCancelled, domain.PurchaseRefunded:
		default:
			return nil, fmt.Errorf("%s:%w", op, ErrInvalidStatus)
		}
	}

	p, err := s.purchases.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrPurchaseNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "service.purchase.Delete"

	ok, err := s.purchases.SoftDelete(ctx, id)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if !ok {
		return fmt.Errorf("%s:%w", op, ErrPurchaseNotFound)
	}

	return nil
}
