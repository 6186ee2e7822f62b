package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PurchasesPubSub broadcasts purchase-side changes (purchases completed,
// tickets validated, catalog edits) for availability dashboards and similar
// listeners. Delivery is best effort; publishers ignore failures.
type PurchasesPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewPurchasesPubSub(rdb *redis.Client) *PurchasesPubSub {
	return &PurchasesPubSub{
		rdb:     rdb,
		channel: ChannelPurchases(),
	}
}

type changeMsg struct {
	Type       string    `json:"type"`
	EventID    uuid.UUID `json:"event_id"`
	PurchaseID uuid.UUID `json:"purchase_id,omitempty"`
	TicketID   uuid.UUID `json:"ticket_id,omitempty"`
	TsUnix     int64     `json:"ts_unix"`
}

func (p *PurchasesPubSub) PublishPurchaseCompleted(ctx context.Context, purchaseID, eventID uuid.UUID) error {
	return p.publish(ctx, changeMsg{
		Type:       "purchase_completed",
		EventID:    eventID,
		PurchaseID: purchaseID,
	})
}

func (p *PurchasesPubSub) PublishTicketValidated(ctx context.Context, eventID, ticketID uuid.UUID) error {
	return p.publish(ctx, changeMsg{
		Type:     "ticket_validated",
		EventID:  eventID,
		TicketID: ticketID,
	})
}

func (p *PurchasesPubSub) PublishCatalogChanged(ctx context.Context, eventID uuid.UUID) error {
	return p.publish(ctx, changeMsg{
		Type:    "catalog_changed",
		EventID: eventID,
	})
}

func (p *PurchasesPubSub) publish(ctx context.Context, msg changeMsg) error {
	msg.TsUnix = time.Now().Unix()

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *PurchasesPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, eventID uuid.UUID)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev changeMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.EventID != uuid.Nil {
				handler(ctx, ev.EventID)
			}
		}
	}
}
