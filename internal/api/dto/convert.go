package dto

import (
	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/criteria"
	"github.com/olyamironova/oms-engine/internal/domain"
)

func FromOrder(o domain.OrderRecord) Order {
	out := Order{
		ID:         o.ID,
		ParentID:   o.ParentID,
		Step:       o.Step,
		Exchange:   o.Exchange,
		Pair:       o.Pair,
		Side:       string(o.Side),
		Type:       string(o.Type),
		Price:      o.Price,
		Quantity:   o.Quantity,
		Instrument: o.Instrument,
		Start:      o.Start,
		End:        o.End,
		OCOGroup:   o.OCOGroup,
		Specs:      len(o.Specs),
		Status:     string(o.Status),
		Reason:     o.Reason,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
	if c, err := criteria.Decode(o.Criteria); err == nil && c != nil {
		out.Criteria = c.String()
	}
	return out
}

func FromOrders(orders []domain.OrderRecord) []Order {
	res := make([]Order, len(orders))
	for i, o := range orders {
		res[i] = FromOrder(o)
	}
	return res
}

func FromFill(f domain.Fill) Fill {
	return Fill{
		ID:       f.ID,
		OrderID:  f.OrderID,
		Step:     f.Step,
		Exchange: f.Exchange,
		Pair:     f.Pair,
		Side:     string(f.Side),
		Price:    f.Price,
		Spent:    f.Spent.String() + " " + f.SpentInstrument,
		Received: f.Received.String() + " " + f.ReceivedInstrument,
		Time:     f.Timestamp,
	}
}

func FromFills(fills []domain.Fill) []Fill {
	res := make([]Fill, len(fills))
	for i, f := range fills {
		res[i] = FromFill(f)
	}
	return res
}

func FromView(v *domain.PortfolioView) PortfolioResponse {
	out := PortfolioResponse{
		Step:           v.Step,
		BaseInstrument: v.BaseInstrument,
		NetWorth:       v.NetWorth,
		Wallets:        make([]Wallet, 0, len(v.Wallets)),
		Timestamp:      v.Timestamp,
	}
	for _, w := range v.Wallets {
		locked := decimal.Zero
		for _, amount := range w.Locked {
			locked = locked.Add(amount)
		}
		out.Wallets = append(out.Wallets, Wallet{
			Exchange:   w.Exchange,
			Instrument: w.Instrument,
			Balance:    w.Balance,
			Locked:     locked,
			Available:  w.Balance.Sub(locked),
		})
	}
	return out
}

func FromInfo(info []domain.Info) []Info {
	res := make([]Info, len(info))
	for i, in := range info {
		res[i] = Info{Step: in.Step, NetWorth: in.NetWorth}
	}
	return res
}
