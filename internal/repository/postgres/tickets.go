package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entrada/entrada/internal/domain"
	"github.com/entrada/entrada/internal/repository"
)

const ticketColumns = `id, code, validation_hash, event_id, category_id, category,
	price_cents, buyer_id, purchase_id, is_validated, validated_at, created_at`

// TicketRepo persists individual ticket instances. The code and
// validation_hash columns carry unique constraints; a violation surfaces as
// repository.ErrConflict so the workflow can re-mint and retry.
type TicketRepo struct {
	pool *pgxpool.Pool
}

func (r *TicketRepo) handle(db DB) DB {
	if db != nil {
		return db
	}
	return r.pool
}

// InsertBatch inserts all drafts as one batch on the given handle. Callers
// run it inside the purchase transaction so the batch commits or rolls back
// together with the stock decrement and the purchase row.
//
// Returns:
//   - repository.ErrConflict if any code or validation hash collides with an
//     existing ticket.
func (r *TicketRepo) InsertBatch(
	ctx context.Context,
	db DB,
	drafts []domain.TicketDraft,
) ([]domain.Ticket, error) {
	const op = "postgres.TicketRepo.InsertBatch"

	batch := &pgx.Batch{}
	for _, d := range drafts {
		batch.Queue(
			`INSERT INTO tickets(id, code, validation_hash, event_id, category_id,
				category, price_cents, buyer_id, purchase_id, is_validated)
         	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)
         	 RETURNING id, created_at`,
			uuid.New(), d.Code, d.ValidationHash, d.EventID, d.CategoryID,
			d.Category, d.PriceCents, d.BuyerID, d.PurchaseID,
		)
	}

	br := r.handle(db).SendBatch(ctx, batch)

	out := make([]domain.Ticket, 0, len(drafts))
	for _, d := range drafts {
		t := domain.Ticket{
			Code:           d.Code,
			ValidationHash: d.ValidationHash,
			EventID:        d.EventID,
			CategoryID:     d.CategoryID,
			Category:       d.Category,
			PriceCents:     d.PriceCents,
			BuyerID:        d.BuyerID,
			PurchaseID:     d.PurchaseID,
		}
		if err := br.QueryRow().Scan(&t.ID, &t.CreatedAt); err != nil {
			_ = br.Close()
			return nil, wrapDBErr(op, err)
		}
		out = append(out, t)
	}

	if err := br.Close(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// FindByCode retrieves a ticket by its public code.
//
// Returns:
//   - repository.ErrNotFound if no ticket carries the code.
func (r *TicketRepo) FindByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.FindByCode"

	row := r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE code = $1`,
		code,
	)

	t, err := scanTicket(row)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.FindByID"

	row := r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`,
		id,
	)

	t, err := scanTicket(row)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Ticket, error) {
	const op = "postgres.TicketRepo.ListByEvent"

	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets
      	 WHERE event_id = $1
      	 ORDER BY created_at DESC`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// MarkValidatedOnce flips a ticket from unvalidated to validated. The check
// and the write are a single conditional update, so concurrent attempts on
// the same code yield exactly one success.
//
// Returns:
//   - repository.ErrInvalidOrUsed when no row matches. An unknown code, a
//     ticket scoped to a different event, and an already validated ticket
//     are indistinguishable here on purpose: the door path must not leak
//     which codes exist.
func (r *TicketRepo) MarkValidatedOnce(
	ctx context.Context,
	eventID uuid.UUID,
	code string,
) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.MarkValidatedOnce"

	row := r.pool.QueryRow(ctx,
		`UPDATE tickets
        	SET is_validated = TRUE, validated_at = now()
      	 WHERE event_id = $1
        	AND code = $2
        	AND is_validated = FALSE
     	 RETURNING `+ticketColumns,
		eventID, code,
	)

	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrInvalidOrUsed)
		}
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID, &t.Code, &t.ValidationHash, &t.EventID, &t.CategoryID, &t.Category,
		&t.PriceCents, &t.BuyerID, &t.PurchaseID, &t.IsValidated, &t.ValidatedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
