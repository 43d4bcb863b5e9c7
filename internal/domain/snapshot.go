package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type WalletRecord struct {
	Exchange   string                     `json:"exchange"`
	Instrument string                     `json:"instrument"`
	Balance    decimal.Decimal            `json:"balance"`
	Locked     map[string]decimal.Decimal `json:"locked,omitempty"`
}

// Snapshot holds enough state to resume an episode: wallets and every order
// that has not reached a terminal status.
type Snapshot struct {
	ID             string         `json:"id"`
	Step           int64          `json:"step"`
	BaseInstrument string         `json:"base_instrument"`
	Wallets        []WalletRecord `json:"wallets"`
	Orders         []OrderRecord  `json:"orders"`
	Timestamp      time.Time      `json:"timestamp"`
}

// PortfolioView is the read model served to informers.
type PortfolioView struct {
	Step           int64           `json:"step"`
	BaseInstrument string          `json:"base_instrument"`
	NetWorth       decimal.Decimal `json:"net_worth"`
	Wallets        []WalletRecord  `json:"wallets"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Info is the per-step informer record.
type Info struct {
	Step     int64           `json:"step"`
	NetWorth decimal.Decimal `json:"net_worth"`
}

func (s *Snapshot) DeepCopy() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Wallets = make([]WalletRecord, len(s.Wallets))
	for i, w := range s.Wallets {
		out.Wallets[i] = w
		if w.Locked != nil {
			out.Wallets[i].Locked = make(map[string]decimal.Decimal, len(w.Locked))
			for k, v := range w.Locked {
				out.Wallets[i].Locked[k] = v
			}
		}
	}
	out.Orders = make([]OrderRecord, len(s.Orders))
	for i, o := range s.Orders {
		out.Orders[i] = o
		out.Orders[i].Specs = append([]SpecRecord(nil), o.Specs...)
	}
	return &out
}
