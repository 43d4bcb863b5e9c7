package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order intents accepted by POST /orders.
const (
	KindMarket      = "market"
	KindLimit       = "limit"
	KindHiddenLimit = "hidden_limit"
	KindRiskManaged = "risk_managed"
	KindBracket     = "bracket"
	KindProportion  = "proportion"
)

type PlaceOrderRequest struct {
	ClientOrderID string `json:"client_order_id,omitempty"` // for deduplicate
	Kind          string `json:"kind" binding:"required"`
	Exchange      string `json:"exchange" binding:"required"`

	// market, limit, hidden_limit, risk_managed, bracket
	Pair    string          `json:"pair,omitempty"`
	Side    string          `json:"side,omitempty"`
	Type    string          `json:"type,omitempty"` // entry type for risk_managed and bracket
	Price   decimal.Decimal `json:"price,omitempty"`
	Size    decimal.Decimal `json:"size,omitempty"`
	DownPct decimal.Decimal `json:"down_pct,omitempty"`
	UpPct   decimal.Decimal `json:"up_pct,omitempty"`
	Start   *int64          `json:"start,omitempty"`
	End     *int64          `json:"end,omitempty"`

	// proportion
	Source     string  `json:"source,omitempty"`
	Target     string  `json:"target,omitempty"`
	Proportion float64 `json:"proportion,omitempty"`
}

type PlaceOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

type CancelOrderResponse struct {
	OrderID   string `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message,omitempty"`
}

type GetOrderResponse struct {
	Order Order `json:"order"`
}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

type ListFillsResponse struct {
	Fills []Fill `json:"fills"`
}

type PortfolioResponse struct {
	Step           int64           `json:"step"`
	BaseInstrument string          `json:"base_instrument"`
	NetWorth       decimal.Decimal `json:"net_worth"`
	Wallets        []Wallet        `json:"wallets"`
	Timestamp      time.Time       `json:"timestamp"`
}

type InfoResponse struct {
	Info []Info `json:"info"`
}

type SnapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
	Step       int64  `json:"step"`
	Message    string `json:"message,omitempty"`
}

type RestoreRequest struct {
	SnapshotID string `json:"snapshot_id" binding:"required"`
}

type RestoreResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type Order struct {
	ID         string          `json:"id"`
	ParentID   string          `json:"parent_id,omitempty"`
	Step       int64           `json:"step"`
	Exchange   string          `json:"exchange"`
	Pair       string          `json:"pair"`
	Side       string          `json:"side"`
	Type       string          `json:"type"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Instrument string          `json:"instrument"`
	Criteria   string          `json:"criteria"`
	Start      *int64          `json:"start,omitempty"`
	End        *int64          `json:"end,omitempty"`
	OCOGroup   string          `json:"oco_group,omitempty"`
	Specs      int             `json:"specs"`
	Status     string          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Fill struct {
	ID       string          `json:"id"`
	OrderID  string          `json:"order_id"`
	Step     int64           `json:"step"`
	Exchange string          `json:"exchange"`
	Pair     string          `json:"pair"`
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Spent    string          `json:"spent"`
	Received string          `json:"received"`
	Time     time.Time       `json:"timestamp"`
}

type Wallet struct {
	Exchange   string          `json:"exchange"`
	Instrument string          `json:"instrument"`
	Balance    decimal.Decimal `json:"balance"`
	Locked     decimal.Decimal `json:"locked"`
	Available  decimal.Decimal `json:"available"`
}

type Info struct {
	Step     int64           `json:"step"`
	NetWorth decimal.Decimal `json:"net_worth"`
}
