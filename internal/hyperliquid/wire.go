// Package hyperliquid implements core.ExchangeClient against Hyperliquid's
// REST info/exchange endpoints and its WebSocket feed.
package hyperliquid

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// infoRequest is the shared envelope for every POST /info call.
type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
	Coin string `json:"coin,omitempty"`
}

type spotMetaUniverseEntry struct {
	Name       string `json:"name"`
	Index      int    `json:"index"`
	SzDecimals int32  `json:"szDecimals"`
}

type spotMetaResponse struct {
	Universe []spotMetaUniverseEntry `json:"universe"`
	Tokens   []struct {
		Name  string `json:"name"`
		Index int    `json:"index"`
	} `json:"tokens"`
}

type openOrderWire struct {
	OID   int64           `json:"oid"`
	Coin  string          `json:"coin"`
	Side  string          `json:"side"` // "B" or "A"
	LimitPx decimal.Decimal `json:"limitPx"`
	Sz    decimal.Decimal `json:"sz"`
}

type spotBalanceWire struct {
	Coin  string          `json:"coin"`
	Total decimal.Decimal `json:"total"`
	Hold  decimal.Decimal `json:"hold"`
}

type spotClearinghouseStateResponse struct {
	Balances []spotBalanceWire `json:"balances"`
}

type userRateLimitResponse struct {
	CumVlm       decimal.Decimal `json:"cumVlm"`
	NRequestsUsed int64          `json:"nRequestsUsed"`
	NRequestsCap  int64          `json:"nRequestsCap"`
}

// exchangeAction is the signed envelope for POST /exchange.
type exchangeAction struct {
	Action       interface{} `json:"action"`
	Nonce        int64       `json:"nonce"`
	Signature    signatureWire `json:"signature"`
	VaultAddress *string     `json:"vaultAddress,omitempty"`
}

type signatureWire struct {
	R string `json:"r"`
	S string `json:"s"`
	V int32  `json:"v"`
}

// orderWire is one order leg of a batch "order" action. TIF is always ALO
// per spec §1/§4.7 — Hyperliquidity never crosses the book.
type orderWire struct {
	Asset      int32           `json:"a"`
	IsBuy      bool            `json:"b"`
	Price      string          `json:"p"`
	Size       string          `json:"s"`
	ReduceOnly bool            `json:"r"`
	OrderType  orderTypeWire   `json:"t"`
	Cloid      string          `json:"c,omitempty"`
}

type orderTypeWire struct {
	Limit limitTifWire `json:"limit"`
}

type limitTifWire struct {
	Tif string `json:"tif"`
}

type orderAction struct {
	Type     string      `json:"type"` // "order"
	Orders   []orderWire `json:"orders"`
	Grouping string      `json:"grouping"` // "na"
}

type cancelAction struct {
	Type    string        `json:"type"` // "cancel"
	Cancels []cancelWire  `json:"cancels"`
}

type cancelWire struct {
	Asset int32 `json:"a"`
	OID   int64 `json:"o"`
}

type modifyAction struct {
	Type     string       `json:"type"` // "batchModify"
	Modifies []modifyWire `json:"modifies"`
}

type modifyWire struct {
	OID   int64     `json:"oid"`
	Order orderWire `json:"order"`
}

// batchStatusWire is one entry of an exchange batch response's
// "statuses" array. Exactly one of the pointer fields is populated.
type batchStatusWire struct {
	Resting *struct {
		OID int64 `json:"oid"`
	} `json:"resting,omitempty"`
	Filled *struct {
		OID int64 `json:"oid"`
	} `json:"filled,omitempty"`
	Error string `json:"error,omitempty"`
}

type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []batchStatusWire `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

// wsEnvelope is the outer shape of every message on the WS feed: a channel
// name and a channel-specific payload, decoded once the channel is known.
type wsEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type wsOrderUpdate struct {
	Order  openOrderWire `json:"order"`
	Status string        `json:"status"`
}

type wsFill struct {
	Coin  string          `json:"coin"`
	Side  string          `json:"side"`
	Price decimal.Decimal `json:"px"`
	Size  decimal.Decimal `json:"sz"`
	OID   int64           `json:"oid"`
	TID   int64           `json:"tid"`
}

// wsWebData2 is the subset of the webData2{user} push this client reads:
// the same spot balance list as spotClearinghouseStateResponse, nested
// under spotState, giving live balance updates between reconcile() polls.
type wsWebData2 struct {
	SpotState spotClearinghouseStateResponse `json:"spotState"`
}

type wsSubscribeMessage struct {
	Method       string            `json:"method"`
	Subscription wsSubscriptionWire `json:"subscription"`
}

type wsSubscriptionWire struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
	Coin string `json:"coin,omitempty"`
}

func sideFromWire(s string) (isBuy bool) {
	return s == "B"
}
