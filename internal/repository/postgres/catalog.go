package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entrada/entrada/internal/domain"
	"github.com/entrada/entrada/internal/repository"
)

// CatalogRepo reads and mutates ticket categories. Purchase-path methods take
// an explicit DB handle so they can join a caller-owned transaction; passing
// nil runs them against the pool.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

func (r *CatalogRepo) handle(db DB) DB {
	if db != nil {
		return db
	}
	return r.pool
}

// FindCategory retrieves a ticket category together with its event state.
//
// Returns:
//   - repository.ErrNotFound if the event or category does not exist.
//   - repository.ErrEventNotPublished if the category exists but the event
//     is not open for purchase.
func (r *CatalogRepo) FindCategory(
	ctx context.Context,
	db DB,
	eventID, categoryID uuid.UUID,
) (*domain.TicketCategory, error) {
	const op = "postgres.CatalogRepo.FindCategory"

	var (
		tc     domain.TicketCategory
		status domain.EventStatus
	)
	err := r.handle(db).QueryRow(ctx,
		`SELECT c.id, c.event_id, c.category, c.price_cents, c.quantity_available, e.status
       	 FROM ticket_categories c
       	 JOIN events e ON e.id = c.event_id
      	 WHERE c.event_id = $1 AND c.id = $2`,
		eventID, categoryID,
	).Scan(&tc.ID, &tc.EventID, &tc.Category, &tc.PriceCents, &tc.QuantityAvailable, &status)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if status != domain.EventPublished {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrEventNotPublished)
	}

	return &tc, nil
}

// DecrementStock reduces quantity_available by qty in a single conditional
// update. The non-negativity guard is evaluated atomically with the write,
// so two concurrent purchases for the last tickets cannot both succeed.
//
// Returns:
//   - repository.ErrInsufficientStock when the guard rejects the write. The
//     caller is expected to have established category existence within the
//     same transaction, so a zero row count always means stock, not absence.
func (r *CatalogRepo) DecrementStock(
	ctx context.Context,
	db DB,
	eventID, categoryID uuid.UUID,
	qty int64,
) error {
	const op = "postgres.CatalogRepo.DecrementStock"

	tag, err := r.handle(db).Exec(ctx,
		`UPDATE ticket_categories
        	SET quantity_available = quantity_available - $3
      	 WHERE event_id = $1
        	AND id = $2
        	AND quantity_available >= $3`,
		eventID, categoryID, qty,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrInsufficientStock)
	}

	return nil
}

func (r *CatalogRepo) CreateCategory(
	ctx context.Context,
	db DB,
	eventID uuid.UUID,
	category string,
	priceCents, quantity int64,
) (*domain.TicketCategory, error) {
	const op = "postgres.CatalogRepo.CreateCategory"

	tc := domain.TicketCategory{
		EventID:           eventID,
		Category:          category,
		PriceCents:        priceCents,
		QuantityAvailable: quantity,
	}
	err := r.handle(db).QueryRow(ctx,
		`INSERT INTO ticket_categories(id, event_id, category, price_cents, quantity_available)
       	 VALUES ($1, $2, $3, $4, $5)
     	 RETURNING id`,
		uuid.New(), eventID, category, priceCents, quantity,
	).Scan(&tc.ID)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &tc, nil
}

// UpdateCategory applies a partial edit to a category. Price edits have no
// effect on already committed purchases: the workflow snapshots the unit
// price at purchase time.
func (r *CatalogRepo) UpdateCategory(
	ctx context.Context,
	db DB,
	eventID, categoryID uuid.UUID,
	patch domain.CategoryPatch,
) (*domain.TicketCategory, error) {
	const op = "postgres.CatalogRepo.UpdateCategory"

	set := make([]string, 0, 3)
	args := []any{eventID, categoryID}

	if patch.Category != nil {
		args = append(args, *patch.Category)
		set = append(set, fmt.Sprintf("category = $%d", len(args)))
	}
	if patch.PriceCents != nil {
		args = append(args, *patch.PriceCents)
		set = append(set, fmt.Sprintf("price_cents = $%d", len(args)))
	}
	if patch.QuantityAvailable != nil {
		args = append(args, *patch.QuantityAvailable)
		set = append(set, fmt.Sprintf("quantity_available = $%d", len(args)))
	}

	if len(set) == 0 {
		return r.getCategory(ctx, db, eventID, categoryID)
	}

	query := fmt.Sprintf(
		`UPDATE ticket_categories SET %s
      	 WHERE event_id = $1 AND id = $2
     	 RETURNING id, event_id, category, price_cents, quantity_available`,
		strings.Join(set, ", "),
	)

	var tc domain.TicketCategory
	err := r.handle(db).QueryRow(ctx, query, args...).
		Scan(&tc.ID, &tc.EventID, &tc.Category, &tc.PriceCents, &tc.QuantityAvailable)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &tc, nil
}

func (r *CatalogRepo) DeleteCategory(
	ctx context.Context,
	db DB,
	eventID, categoryID uuid.UUID,
) error {
	const op = "postgres.CatalogRepo.DeleteCategory"

	tag, err := r.handle(db).Exec(ctx,
		`DELETE FROM ticket_categories WHERE event_id = $1 AND id = $2`,
		eventID, categoryID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *CatalogRepo) ListByEvent(
	ctx context.Context,
	eventID uuid.UUID,
) ([]domain.TicketCategory, error) {
	const op = "postgres.CatalogRepo.ListByEvent"

	rows, err := r.pool.Query(ctx,
		`SELECT id, event_id, category, price_cents, quantity_available
       	 FROM ticket_categories
      	 WHERE event_id = $1
      	 ORDER BY category`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.TicketCategory
	for rows.Next() {
		var tc domain.TicketCategory
		if err := rows.Scan(&tc.ID, &tc.EventID, &tc.Category, &tc.PriceCents, &tc.QuantityAvailable); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *CatalogRepo) getCategory(
	ctx context.Context,
	db DB,
	eventID, categoryID uuid.UUID,
) (*domain.TicketCategory, error) {
	const op = "postgres.CatalogRepo.getCategory"

	var tc domain.TicketCategory
	err := r.handle(db).QueryRow(ctx,
		`SELECT id, event_id, category, price_cents, quantity_available
       	 FROM ticket_categories
      	 WHERE event_id = $1 AND id = $2`,
		eventID, categoryID,
	).Scan(&tc.ID, &tc.EventID, &tc.Category, &tc.PriceCents, &tc.QuantityAvailable)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &tc, nil
}
