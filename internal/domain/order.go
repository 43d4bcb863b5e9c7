package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string
type OrderType string
type OrderStatus string

const (
	Buy       Side        = "BUY"
	Sell      Side        = "SELL"
	Limit     OrderType   = "LIMIT"
	Market    OrderType   = "MARKET"
	Pending   OrderStatus = "PENDING"
	Open      OrderStatus = "OPEN"
	Filled    OrderStatus = "FILLED"
	Cancelled OrderStatus = "CANCELLED"
	Expired   OrderStatus = "EXPIRED"
)

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(s)) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("invalid side: %q", s)
}

func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(strings.ToUpper(s)) {
	case Market:
		return Market, nil
	case Limit:
		return Limit, nil
	}
	return "", fmt.Errorf("invalid order type: %q", s)
}

// Instrument returns the instrument an order on pair spends, which is also
// the instrument its quantity is denominated in: the base for BUY, the quote
// for SELL.
func (s Side) Instrument(pair TradingPair) Instrument {
	if s == Buy {
		return pair.Base
	}
	return pair.Quote
}

// Acquires returns the instrument an order on pair receives.
func (s Side) Acquires(pair TradingPair) Instrument {
	if s == Buy {
		return pair.Quote
	}
	return pair.Base
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s OrderStatus) IsTerminal() bool {
	return s == Filled || s == Cancelled || s == Expired
}

// OrderRecord is the persisted form of an order.
type OrderRecord struct {
	ID         string          `json:"id"`
	ParentID   string          `json:"parent_id,omitempty"`
	PathID     string          `json:"path_id"`
	Step       int64           `json:"step"`
	Exchange   string          `json:"exchange"`
	Pair       string          `json:"pair"`
	Side       Side            `json:"side"`
	Type       OrderType       `json:"type"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Instrument string          `json:"instrument"`
	Criteria   *CriteriaNode   `json:"criteria,omitempty"`
	Start      *int64          `json:"start,omitempty"`
	End        *int64          `json:"end,omitempty"`
	OCOGroup   string          `json:"oco_group,omitempty"`
	Locked     bool            `json:"locked"`
	Specs      []SpecRecord    `json:"specs,omitempty"`
	Status     OrderStatus     `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// SpecRecord is the persisted form of a follow-up order template.
type SpecRecord struct {
	Exchange string        `json:"exchange"`
	Pair     string        `json:"pair"`
	Side     Side          `json:"side"`
	Type     OrderType     `json:"type"`
	Criteria *CriteriaNode `json:"criteria,omitempty"`
	Start    *int64        `json:"start,omitempty"`
	End      *int64        `json:"end,omitempty"`
	OCOGroup string        `json:"oco_group,omitempty"`
}

// CriteriaNode is a serialized criteria tree.
type CriteriaNode struct {
	Kind      string          `json:"kind"`
	Price     decimal.Decimal `json:"price,omitempty"`
	Direction string          `json:"direction,omitempty"`
	Percent   decimal.Decimal `json:"percent,omitempty"`
	Args      []CriteriaNode  `json:"args,omitempty"`
}
