package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entrada/entrada/internal/domain"
	"github.com/entrada/entrada/internal/repository"
)

const purchaseColumns = `id, buyer_id, event_id, total_cents, status, ticket_ids,
	created_at, updated_at`

// PurchaseRepo persists purchase records. Rows are soft deleted: deleted_at
// is stamped instead of removing the row, and every read excludes stamped
// rows.
type PurchaseRepo struct {
	pool *pgxpool.Pool
}

func (r *PurchaseRepo) handle(db DB) DB {
	if db != nil {
		return db
	}
	return r.pool
}

// Create inserts a purchase with no tickets attached yet. It runs on the
// caller's transaction so the row never becomes visible unless the whole
// purchase unit commits.
func (r *PurchaseRepo) Create(
	ctx context.Context,
	db DB,
	buyerID, eventID uuid.UUID,
	totalCents int64,
	status domain.PurchaseStatus,
) (*domain.Purchase, error) {
	const op = "postgres.PurchaseRepo.Create"

	p := domain.Purchase{
		BuyerID:    buyerID,
		EventID:    eventID,
		TotalCents: totalCents,
		Status:     status,
		TicketIDs:  []uuid.UUID{},
	}
	err := r.handle(db).QueryRow(ctx,
		`INSERT INTO purchases(id, buyer_id, event_id, total_cents, status, ticket_ids)
       	 VALUES ($1, $2, $3, $4, $5, '{}')
     	 RETURNING id, created_at, updated_at`,
		uuid.New(), buyerID, eventID, totalCents, status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}

// AttachTickets sets the ticket id list once, after all tickets for the
// purchase have been minted.
func (r *PurchaseRepo) AttachTickets(
	ctx context.Context,
	db DB,
	purchaseID uuid.UUID,
	ticketIDs []uuid.UUID,
) error {
	const op = "postgres.PurchaseRepo.AttachTickets"

	tag, err := r.handle(db).Exec(ctx,
		`UPDATE purchases
        	SET ticket_ids = $2, updated_at = now()
      	 WHERE id = $1 AND deleted_at IS NULL`,
		purchaseID, ticketIDs,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// FindByIDPopulated returns a purchase together with its tickets.
func (r *PurchaseRepo) FindByIDPopulated(
	ctx context.Context,
	db DB,
	id uuid.UUID,
) (*domain.PurchaseWithTickets, error) {
	const op = "postgres.PurchaseRepo.FindByIDPopulated"

	dbh := r.handle(db)

	var p domain.Purchase
	err := dbh.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases
      	 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	).Scan(&p.ID, &p.BuyerID, &p.EventID, &p.TotalCents, &p.Status, &p.TicketIDs,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err := dbh.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
      	 WHERE purchase_id = $1
      	 ORDER BY created_at`,
		id,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		tickets = append(tickets, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &domain.PurchaseWithTickets{Purchase: p, Tickets: tickets}, nil
}

func (r *PurchaseRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Purchase, error) {
	const op = "postgres.PurchaseRepo.ListByUser"

	return r.list(ctx, op,
		`SELECT `+purchaseColumns+` FROM purchases
      	 WHERE buyer_id = $1 AND deleted_at IS NULL
      	 ORDER BY created_at DESC`,
		userID,
	)
}

func (r *PurchaseRepo) ListAll(ctx context.Context) ([]domain.Purchase, error) {
	const op = "postgres.PurchaseRepo.ListAll"

	return r.list(ctx, op,
		`SELECT `+purchaseColumns+` FROM purchases
      	 WHERE deleted_at IS NULL
      	 ORDER BY created_at DESC`,
	)
}

// Update applies an administrative patch. Status transitions here do not
// restore category stock; a cancelled purchase keeps its tickets and the
// stock it consumed.
func (r *PurchaseRepo) Update(
	ctx context.Context,
	id uuid.UUID,
	patch domain.PurchasePatch,
) (*domain.Purchase, error) {
	const op = "postgres.PurchaseRepo.Update"

	if patch.Status == nil {
		return r.get(ctx, id)
	}

	var p domain.Purchase
	err := r.pool.QueryRow(ctx,
		`UPDATE purchases
        	SET status = $2, updated_at = now()
      	 WHERE id = $1 AND deleted_at IS NULL
     	 RETURNING `+purchaseColumns,
		id, *patch.Status,
	).Scan(&p.ID, &p.BuyerID, &p.EventID, &p.TotalCents, &p.Status, &p.TicketIDs,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}

// SoftDelete stamps deleted_at and reports whether a live row was hit.
func (r *PurchaseRepo) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "postgres.PurchaseRepo.SoftDelete"

	tag, err := r.pool.Exec(ctx,
		`UPDATE purchases
        	SET deleted_at = now(), updated_at = now()
      	 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *PurchaseRepo) get(ctx context.Context, id uuid.UUID) (*domain.Purchase, error) {
	const op = "postgres.PurchaseRepo.get"

	var p domain.Purchase
	err := r.pool.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases
      	 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	).Scan(&p.ID, &p.BuyerID, &p.EventID, &p.TotalCents, &p.Status, &p.TicketIDs,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}

func (r *PurchaseRepo) list(ctx context.Context, op, query string, args ...any) ([]domain.Purchase, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.BuyerID, &p.EventID, &p.TotalCents, &p.Status,
			&p.TicketIDs, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
