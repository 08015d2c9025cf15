package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// Signer authorizes outbound exchange requests. The EIP-712 wire-signing
// scheme itself is out of scope (spec §1); this interface is the boundary
// the REST/WS clients call through.
type Signer interface {
	Address() string
	Sign(action interface{}, nonce int64) (r, s, v string, err error)
}

// BookLevel is one resting order returned by OpenOrders.
type BookLevel struct {
	OID   int64
	Side  Side
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Balances is the subset of spot_user_state this engine needs: the
// allocated token and quote balances.
type Balances struct {
	TokenBalance decimal.Decimal
	QuoteBalance decimal.Decimal
}

// RateLimitSnapshot mirrors Hyperliquid's user_rate_limit response.
type RateLimitSnapshot struct {
	CumVlm       decimal.Decimal
	NRequests    int64
	NRequestsCap int64
}

// BatchResult is one bulk call's per-item outcome, in request order.
type BatchResult struct {
	OID    int64
	Status string // "resting", "filled", "error"
	Error  string
}

// ExchangeClient is the REST+WS surface the orchestrator and emitter depend
// on. internal/hyperliquid provides the concrete implementation; tests use a
// fake.
type ExchangeClient interface {
	// REST reads, used at startup and during periodic reconciliation.
	SpotMeta(ctx context.Context, coin string) (szDecimals int32, err error)
	OpenOrders(ctx context.Context, coin string) ([]BookLevel, error)
	SpotUserState(ctx context.Context) (Balances, error)
	UserRateLimit(ctx context.Context) (RateLimitSnapshot, error)

	// Batch mutation calls. Each returns per-item results in request order.
	// The emitter adds no retry of its own and relies on the next tick to
	// reconcile a failed batch; the concrete client's REST transport retries
	// a request up to 3 times on a transport error, 5xx or 429.
	BulkCancel(ctx context.Context, coin string, oids []int64) ([]BatchResult, error)
	BulkModify(ctx context.Context, coin string, mods []Modification) ([]BatchResult, error)
	BulkOrders(ctx context.Context, coin string, orders []DesiredOrder) ([]BatchResult, error)

	// WS subscriptions. The handler is invoked on the client's own read-pump
	// goroutine; callers must marshal onto their own event loop.
	SubscribeOrderUpdates(ctx context.Context, coin string, handler func(OrderUpdate)) error
	SubscribeUserFills(ctx context.Context, coin string, handler func(Fill)) error
	SubscribeAllMids(ctx context.Context, handler func(coin string, mid decimal.Decimal)) error
	SubscribeWebData2(ctx context.Context, handler func(Balances)) error

	Close() error
}

// OrderUpdate is one orderUpdates WS message.
type OrderUpdate struct {
	OID    int64
	Side   Side
	Price  decimal.Decimal
	Size   decimal.Decimal
	Status string
}

// Fill is one userFills WS message.
type Fill struct {
	TID      int64
	OID      int64
	Side     Side
	Price    decimal.Decimal
	Size     decimal.Decimal
}
