package service

import (
	postgres "github.com/entrada/entrada/internal/repository/postgres"
	redis "github.com/entrada/entrada/internal/repository/redis"
	"github.com/entrada/entrada/internal/service/admin"
	"github.com/entrada/entrada/internal/service/purchase"
	"github.com/entrada/entrada/internal/service/query"
	"github.com/entrada/entrada/internal/service/validation"
	"github.com/entrada/entrada/internal/ticketcode"
	"github.com/entrada/entrada/internal/uow"
)

type Services struct {
	Purchase   *purchase.Service
	Validation *validation.Service
	Query      *query.Service
	Admin      *admin.Service
}

type Config struct {
	Purchase purchase.Config
	Query    query.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redis.PurchasesPubSub,
	limiter *redis.SlidingWindowLimiter,
	cfg Config,
) *Services {
	u := uow.NewUoW(store)
	gen := ticketcode.NewGenerator()

	return &Services{
		Purchase:   purchase.New(store.Catalog(), store.Tickets(), store.Purchases(), gen, u, cache, pubsub, limiter, cfg.Purchase),
		Validation: validation.New(store.Tickets(), pubsub),
		Query:      query.New(store.Catalog(), store.Tickets(), cache, cfg.Query),
		Admin:      admin.New(store.Catalog(), cache, pubsub, u),
	}
}
