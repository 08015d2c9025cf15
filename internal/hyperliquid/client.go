package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"hyperliquidity-mm/internal/core"
	"hyperliquidity-mm/pkg/concurrency"
	"hyperliquidity-mm/pkg/errs"
	hlhttp "hyperliquidity-mm/pkg/http"
	hlws "hyperliquidity-mm/pkg/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client implements core.ExchangeClient against one coin on one Hyperliquid
// deployment (mainnet or testnet, per transport.rest_base_url/ws_url).
type Client struct {
	coin   string
	asset  int32
	signer core.Signer
	logger core.Logger

	rest *hlhttp.Client
	ws   *hlws.Client
	pool *concurrency.WorkerPool

	mu             sync.Mutex
	orderHandler   func(core.OrderUpdate)
	fillHandler    func(core.Fill)
	midsHandler    func(string, decimal.Decimal)
	balanceHandler func(core.Balances)

	wsStart sync.Once
}

// Config is the transport-level configuration the bootstrap layer hands to
// New; strategy/allocation parameters live in the orchestrator, not here.
type Config struct {
	Coin             string
	Asset            int32
	RestBaseURL      string
	WsURL            string
	RequestTimeout   time.Duration
	WsHeartbeatTimeout time.Duration
}

// New constructs a Client. It does not connect the WebSocket until the
// first Subscribe* call, matching core.ExchangeClient's contract that
// subscriptions are opened explicitly after REST-based seeding completes.
func New(cfg Config, signer core.Signer, logger core.Logger) *Client {
	rest := hlhttp.NewClient(cfg.RestBaseURL, cfg.RequestTimeout, nil)

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "hyperliquid-rest",
		MaxWorkers:  4,
		MaxCapacity: 64,
	}, logger)

	c := &Client{
		coin:   cfg.Coin,
		asset:  cfg.Asset,
		signer: signer,
		logger: logger.With("component", "hyperliquid-client", "coin", cfg.Coin),
		rest:   rest,
		pool:   pool,
	}

	ws := hlws.NewClient(cfg.WsURL, c.onMessage, logger)
	ws.SetHeartbeatTimeout(cfg.WsHeartbeatTimeout)
	ws.SetOnConnected(c.resubscribeAll)
	c.ws = ws

	return c
}

// SpotMeta returns szDecimals for coin, used to round the price grid.
func (c *Client) SpotMeta(ctx context.Context, coin string) (int32, error) {
	body, err := c.rest.Post(ctx, "/info", infoRequest{Type: "spotMeta"})
	if err != nil {
		return 0, fmt.Errorf("spotMeta: %w", err)
	}

	var resp spotMetaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("spotMeta: decode: %w", err)
	}

	for _, u := range resp.Universe {
		if u.Name == coin {
			return u.SzDecimals, nil
		}
	}
	return 0, fmt.Errorf("spotMeta: coin %q not found", coin)
}

// OpenOrders returns the user's resting orders for coin.
func (c *Client) OpenOrders(ctx context.Context, coin string) ([]core.BookLevel, error) {
	body, err := c.rest.Post(ctx, "/info", infoRequest{Type: "openOrders", User: c.signer.Address()})
	if err != nil {
		return nil, fmt.Errorf("openOrders: %w", err)
	}

	var wire []openOrderWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("openOrders: decode: %w", err)
	}

	out := make([]core.BookLevel, 0, len(wire))
	for _, o := range wire {
		if o.Coin != coin {
			continue
		}
		side := core.Buy
		if !sideFromWire(o.Side) {
			side = core.Sell
		}
		out = append(out, core.BookLevel{OID: o.OID, Side: side, Price: o.LimitPx, Size: o.Sz})
	}
	return out, nil
}

// SpotUserState returns the token/USDC balances for c.coin.
func (c *Client) SpotUserState(ctx context.Context) (core.Balances, error) {
	body, err := c.rest.Post(ctx, "/info", infoRequest{Type: "spotClearinghouseState", User: c.signer.Address()})
	if err != nil {
		return core.Balances{}, fmt.Errorf("spotClearinghouseState: %w", err)
	}

	var resp spotClearinghouseStateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Balances{}, fmt.Errorf("spotClearinghouseState: decode: %w", err)
	}

	var bal core.Balances
	for _, b := range resp.Balances {
		switch b.Coin {
		case c.coin:
			bal.TokenBalance = b.Total.Sub(b.Hold)
		case "USDC":
			bal.QuoteBalance = b.Total.Sub(b.Hold)
		}
	}
	return bal, nil
}

// UserRateLimit returns the current cum_vlm/n_requests snapshot.
func (c *Client) UserRateLimit(ctx context.Context) (core.RateLimitSnapshot, error) {
	body, err := c.rest.Post(ctx, "/info", infoRequest{Type: "userRateLimit", User: c.signer.Address()})
	if err != nil {
		return core.RateLimitSnapshot{}, fmt.Errorf("userRateLimit: %w", err)
	}

	var resp userRateLimitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.RateLimitSnapshot{}, fmt.Errorf("userRateLimit: decode: %w", err)
	}

	return core.RateLimitSnapshot{CumVlm: resp.CumVlm, NRequests: resp.NRequestsUsed, NRequestsCap: resp.NRequestsCap}, nil
}

// BulkCancel cancels oids in one signed /exchange call.
func (c *Client) BulkCancel(ctx context.Context, coin string, oids []int64) ([]core.BatchResult, error) {
	cancels := make([]cancelWire, len(oids))
	for i, oid := range oids {
		cancels[i] = cancelWire{Asset: c.asset, OID: oid}
	}
	action := cancelAction{Type: "cancel", Cancels: cancels}

	statuses, err := c.sendSignedAction(ctx, action)
	if err != nil {
		return nil, err
	}
	return toBatchResults(oids, statuses), nil
}

// BulkModify modifies mods in one signed /exchange call. ALO is implied for
// every leg, matching spec §4.7.
func (c *Client) BulkModify(ctx context.Context, coin string, mods []core.Modification) ([]core.BatchResult, error) {
	modifies := make([]modifyWire, len(mods))
	oids := make([]int64, len(mods))
	for i, m := range mods {
		modifies[i] = modifyWire{OID: m.OID, Order: c.toOrderWire(m.Desired)}
		oids[i] = m.OID
	}
	action := modifyAction{Type: "batchModify", Modifies: modifies}

	statuses, err := c.sendSignedAction(ctx, action)
	if err != nil {
		return nil, err
	}
	return toBatchResults(oids, statuses), nil
}

// BulkOrders places orders in one signed /exchange call.
func (c *Client) BulkOrders(ctx context.Context, coin string, orders []core.DesiredOrder) ([]core.BatchResult, error) {
	wireOrders := make([]orderWire, len(orders))
	for i, o := range orders {
		wireOrders[i] = c.toOrderWire(o)
	}
	action := orderAction{Type: "order", Orders: wireOrders, Grouping: "na"}

	statuses, err := c.sendSignedAction(ctx, action)
	if err != nil {
		return nil, err
	}
	// Placements have no prior OID to echo back; index-align with 0.
	placeholders := make([]int64, len(orders))
	return toBatchResults(placeholders, statuses), nil
}

func (c *Client) toOrderWire(o core.DesiredOrder) orderWire {
	return orderWire{
		Asset:     c.asset,
		IsBuy:     o.Side == core.Buy,
		Price:     o.Price.String(),
		Size:      o.Size.String(),
		OrderType: orderTypeWire{Limit: limitTifWire{Tif: "Alo"}},
		Cloid:     newClientOrderID(),
	}
}

func (c *Client) sendSignedAction(ctx context.Context, action interface{}) ([]batchStatusWire, error) {
	nonce := time.Now().UnixMilli()
	r, s, v, err := c.signer.Sign(action, nonce)
	if err != nil {
		return nil, fmt.Errorf("sign action: %w", err)
	}

	var vInt int32
	fmt.Sscanf(v, "%d", &vInt)

	// The signed POST runs on the worker pool; SubmitAndWait blocks the
	// calling goroutine (the orchestrator's event loop, via the emitter) until
	// the round-trip completes, so the emitter observes one synchronous call.
	var body []byte
	var postErr error
	c.pool.SubmitAndWait(func() {
		body, postErr = c.rest.Post(ctx, "/exchange", exchangeAction{
			Action:    action,
			Nonce:     nonce,
			Signature: signatureWire{R: r, S: s, V: vInt},
		})
	})
	if postErr != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTransport, postErr)
	}

	var resp exchangeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("exchange response: decode: %w", err)
	}
	return resp.Response.Data.Statuses, nil
}

func toBatchResults(oids []int64, statuses []batchStatusWire) []core.BatchResult {
	out := make([]core.BatchResult, len(statuses))
	for i, st := range statuses {
		oid := int64(0)
		if i < len(oids) {
			oid = oids[i]
		}
		switch {
		case st.Resting != nil:
			out[i] = core.BatchResult{OID: st.Resting.OID, Status: "resting"}
		case st.Filled != nil:
			out[i] = core.BatchResult{OID: st.Filled.OID, Status: "filled"}
		default:
			out[i] = core.BatchResult{OID: oid, Status: "error", Error: st.Error}
		}
	}
	return out
}

// SubscribeOrderUpdates registers handler and opens the WS connection if not
// already open.
func (c *Client) SubscribeOrderUpdates(ctx context.Context, coin string, handler func(core.OrderUpdate)) error {
	c.mu.Lock()
	c.orderHandler = handler
	c.mu.Unlock()
	return c.ensureStartedAndSubscribe(wsSubscriptionWire{Type: "orderUpdates", User: c.signer.Address()})
}

// SubscribeUserFills registers handler and opens the WS connection if not
// already open.
func (c *Client) SubscribeUserFills(ctx context.Context, coin string, handler func(core.Fill)) error {
	c.mu.Lock()
	c.fillHandler = handler
	c.mu.Unlock()
	return c.ensureStartedAndSubscribe(wsSubscriptionWire{Type: "userFills", User: c.signer.Address()})
}

// SubscribeAllMids registers handler and opens the WS connection if not
// already open. No engine component subscribes to it; the core pricing
// algorithm has no oracle dependency (spec §1).
func (c *Client) SubscribeAllMids(ctx context.Context, handler func(string, decimal.Decimal)) error {
	c.mu.Lock()
	c.midsHandler = handler
	c.mu.Unlock()
	return c.ensureStartedAndSubscribe(wsSubscriptionWire{Type: "allMids"})
}

// SubscribeWebData2 registers handler and opens the WS connection if not
// already open. webData2{user} pushes live spot balance snapshots, giving
// Inventory a balance update between fills and the periodic REST-based
// reconcile() poll (spec §4.8/§6).
func (c *Client) SubscribeWebData2(ctx context.Context, handler func(core.Balances)) error {
	c.mu.Lock()
	c.balanceHandler = handler
	c.mu.Unlock()
	return c.ensureStartedAndSubscribe(wsSubscriptionWire{Type: "webData2", User: c.signer.Address()})
}

// ensureStartedAndSubscribe starts the WS client at most once and sends the
// subscribe message if a connection is already open. If the connection is
// still being established, resubscribeAll (the onConnected callback) sends
// it once the connection opens, so a "not connected yet" error here is
// expected and not returned to the caller.
func (c *Client) ensureStartedAndSubscribe(sub wsSubscriptionWire) error {
	c.wsStart.Do(c.ws.Start)
	if err := c.ws.Send(wsSubscribeMessage{Method: "subscribe", Subscription: sub}); err != nil {
		c.logger.Debug("subscribe deferred until connect", "type", sub.Type, "error", err.Error())
	}
	return nil
}

// resubscribeAll re-sends every active subscription; wired as the WS
// client's onConnected callback so a reconnect (whether from the silence
// watchdog or a dropped TCP connection) re-establishes all feeds without
// orchestrator involvement.
func (c *Client) resubscribeAll() {
	c.mu.Lock()
	hasOrders := c.orderHandler != nil
	hasFills := c.fillHandler != nil
	hasMids := c.midsHandler != nil
	hasBalances := c.balanceHandler != nil
	c.mu.Unlock()

	if hasOrders {
		_ = c.ws.Send(wsSubscribeMessage{Method: "subscribe", Subscription: wsSubscriptionWire{Type: "orderUpdates", User: c.signer.Address()}})
	}
	if hasFills {
		_ = c.ws.Send(wsSubscribeMessage{Method: "subscribe", Subscription: wsSubscriptionWire{Type: "userFills", User: c.signer.Address()}})
	}
	if hasMids {
		_ = c.ws.Send(wsSubscribeMessage{Method: "subscribe", Subscription: wsSubscriptionWire{Type: "allMids"}})
	}
	if hasBalances {
		_ = c.ws.Send(wsSubscribeMessage{Method: "subscribe", Subscription: wsSubscriptionWire{Type: "webData2", User: c.signer.Address()}})
	}
}

func (c *Client) onMessage(raw []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn("ws message decode failed", "error", err.Error())
		return
	}

	switch env.Channel {
	case "orderUpdates":
		c.dispatchOrderUpdates(env.Data)
	case "userFills":
		c.dispatchFills(env.Data)
	case "allMids":
		c.dispatchMids(env.Data)
	case "webData2":
		c.dispatchWebData2(env.Data)
	}
}

func (c *Client) dispatchOrderUpdates(data []byte) {
	c.mu.Lock()
	handler := c.orderHandler
	c.mu.Unlock()
	if handler == nil {
		return
	}

	var updates []wsOrderUpdate
	if err := json.Unmarshal(data, &updates); err != nil {
		c.logger.Warn("orderUpdates decode failed", "error", err.Error())
		return
	}
	for _, u := range updates {
		if u.Order.Coin != c.coin {
			continue
		}
		side := core.Buy
		if !sideFromWire(u.Order.Side) {
			side = core.Sell
		}
		handler(core.OrderUpdate{OID: u.Order.OID, Side: side, Price: u.Order.LimitPx, Size: u.Order.Sz, Status: u.Status})
	}
}

func (c *Client) dispatchFills(data []byte) {
	c.mu.Lock()
	handler := c.fillHandler
	c.mu.Unlock()
	if handler == nil {
		return
	}

	var fills []wsFill
	if err := json.Unmarshal(data, &fills); err != nil {
		c.logger.Warn("userFills decode failed", "error", err.Error())
		return
	}
	for _, f := range fills {
		if f.Coin != c.coin {
			continue
		}
		side := core.Buy
		if !sideFromWire(f.Side) {
			side = core.Sell
		}
		handler(core.Fill{TID: f.TID, OID: f.OID, Side: side, Price: f.Price, Size: f.Size})
	}
}

func (c *Client) dispatchMids(data []byte) {
	c.mu.Lock()
	handler := c.midsHandler
	c.mu.Unlock()
	if handler == nil {
		return
	}

	var mids map[string]decimal.Decimal
	if err := json.Unmarshal(data, &mids); err != nil {
		c.logger.Warn("allMids decode failed", "error", err.Error())
		return
	}
	for coin, mid := range mids {
		handler(coin, mid)
	}
}

func (c *Client) dispatchWebData2(data []byte) {
	c.mu.Lock()
	handler := c.balanceHandler
	c.mu.Unlock()
	if handler == nil {
		return
	}

	var wd wsWebData2
	if err := json.Unmarshal(data, &wd); err != nil {
		c.logger.Warn("webData2 decode failed", "error", err.Error())
		return
	}

	var bal core.Balances
	for _, b := range wd.SpotState.Balances {
		switch b.Coin {
		case c.coin:
			bal.TokenBalance = b.Total.Sub(b.Hold)
		case "USDC":
			bal.QuoteBalance = b.Total.Sub(b.Hold)
		}
	}
	handler(bal)
}

// Close stops the WebSocket client. REST calls need no explicit close.
func (c *Client) Close() error {
	c.ws.Stop()
	c.pool.Stop()
	return nil
}

// newClientOrderID returns a fresh UUID; toOrderWire sets it as the Cloid
// idempotency key on every order leg it builds.
func newClientOrderID() string {
	return uuid.NewString()
}
