package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill records one executed order.
type Fill struct {
	ID                 string          `json:"id"`
	OrderID            string          `json:"order_id"`
	Step               int64           `json:"step"`
	Exchange           string          `json:"exchange"`
	Pair               string          `json:"pair"`
	Side               Side            `json:"side"`
	Price              decimal.Decimal `json:"price"`
	Spent              decimal.Decimal `json:"spent"`
	SpentInstrument    string          `json:"spent_instrument"`
	Received           decimal.Decimal `json:"received"`
	ReceivedInstrument string          `json:"received_instrument"`
	Timestamp          time.Time       `json:"timestamp"`
}

// OHLCV is one price bar.
type OHLCV struct {
	Step   int64           `json:"step"`
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}
