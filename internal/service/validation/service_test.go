package validation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrada/entrada/internal/domain"
	"github.com/entrada/entrada/internal/repository"
	"github.com/entrada/entrada/internal/service/validation"
)

type fakeTickets struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket // by code
}

func newFakeTickets(tickets ...*domain.Ticket) *fakeTickets {
	f := &fakeTickets{tickets: make(map[string]*domain.Ticket)}
	for _, t := range tickets {
		f.tickets[t.Code] = t
	}
	return f
}

func (f *fakeTickets) MarkValidatedOnce(_ context.Context, eventID uuid.UUID, code string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tickets[code]
	if !ok || t.EventID != eventID || t.IsValidated {
		return nil, repository.ErrInvalidOrUsed
	}

	now := time.Now()
	t.IsValidated = true
	t.ValidatedAt = &now

	cp := *t
	return &cp, nil
}

func (f *fakeTickets) FindByCode(_ context.Context, code string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tickets[code]
	if !ok {
		return nil, repository.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

func ticketFor(eventID uuid.UUID, code string) *domain.Ticket {
	return &domain.Ticket{
		ID:      uuid.New(),
		Code:    code,
		EventID: eventID,
	}
}

func TestValidateAtDoor_FirstScanWins(t *testing.T) {
	eventID := uuid.New()
	tk := ticketFor(eventID, "AB12CD34")
	svc := validation.New(newFakeTickets(tk), nil)

	id, err := svc.ValidateAtDoor(context.Background(), eventID, "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, tk.ID, id)

	_, err = svc.ValidateAtDoor(context.Background(), eventID, "AB12CD34")
	assert.ErrorIs(t, err, validation.ErrTicketInvalid)
}

func TestValidateAtDoor_ScopedToEvent(t *testing.T) {
	eventID := uuid.New()
	tk := ticketFor(eventID, "AB12CD34")
	store := newFakeTickets(tk)
	svc := validation.New(store, nil)

	// Same code scanned at a different event must not consume the ticket.
	_, err := svc.ValidateAtDoor(context.Background(), uuid.New(), "AB12CD34")
	assert.ErrorIs(t, err, validation.ErrTicketInvalid)

	id, err := svc.ValidateAtDoor(context.Background(), eventID, "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, tk.ID, id)
}

func TestValidateAtDoor_UnknownCode(t *testing.T) {
	svc := validation.New(newFakeTickets(), nil)

	_, err := svc.ValidateAtDoor(context.Background(), uuid.New(), "ZZZZZZZZ")
	assert.ErrorIs(t, err, validation.ErrTicketInvalid)
}

func TestValidateAtDoor_ConcurrentScansExactlyOnce(t *testing.T) {
	eventID := uuid.New()
	tk := ticketFor(eventID, "AB12CD34")
	svc := validation.New(newFakeTickets(tk), nil)

	const scans = 50

	var wg sync.WaitGroup
	errs := make([]error, scans)

	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ValidateAtDoor(context.Background(), eventID, "AB12CD34")
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, validation.ErrTicketInvalid)
		}
	}

	assert.Equal(t, 1, ok)
}

func TestPeek(t *testing.T) {
	eventID := uuid.New()
	tk := ticketFor(eventID, "AB12CD34")
	svc := validation.New(newFakeTickets(tk), nil)

	got, err := svc.Peek(context.Background(), "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, tk.ID, got.ID)
	assert.False(t, got.IsValidated)

	// Peeking does not consume the validation.
	got, err = svc.Peek(context.Background(), "AB12CD34")
	require.NoError(t, err)
	assert.False(t, got.IsValidated)

	_, err = svc.Peek(context.Background(), "ZZZZZZZZ")
	assert.ErrorIs(t, err, validation.ErrTicketNotFound)
}
