package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/port"
)

type walletKey struct {
	exchange   string
	instrument string
}

// Portfolio is the set of wallets of one simulation, valued in its base
// instrument.
type Portfolio struct {
	base      domain.Instrument
	clock     *domain.Clock
	wallets   map[walletKey]*Wallet
	keys      []walletKey
	exchanges map[string]port.Exchange
}

func NewPortfolio(base domain.Instrument, clock *domain.Clock, wallets ...*Wallet) *Portfolio {
	p := &Portfolio{
		base:      base,
		clock:     clock,
		wallets:   make(map[walletKey]*Wallet),
		exchanges: make(map[string]port.Exchange),
	}
	for _, w := range wallets {
		p.AddWallet(w)
	}
	return p
}

func (p *Portfolio) BaseInstrument() domain.Instrument { return p.base }

func (p *Portfolio) Clock() *domain.Clock { return p.clock }

// AddWallet registers w, replacing any wallet for the same exchange and instrument.
func (p *Portfolio) AddWallet(w *Wallet) {
	k := walletKey{exchange: w.Exchange().Name(), instrument: w.Instrument().Symbol}
	if _, ok := p.wallets[k]; !ok {
		p.keys = append(p.keys, k)
	}
	p.wallets[k] = w
	p.exchanges[k.exchange] = w.Exchange()
}

// AddExchange makes ex known to the portfolio before any wallet uses it.
func (p *Portfolio) AddExchange(ex port.Exchange) { p.exchanges[ex.Name()] = ex }

func (p *Portfolio) Exchange(name string) (port.Exchange, error) {
	ex, ok := p.exchanges[name]
	if !ok {
		return nil, fmt.Errorf("%w: exchange %q", domain.ErrInstrumentOrPairNotFound, name)
	}
	return ex, nil
}

func (p *Portfolio) Exchanges() []port.Exchange {
	out := make([]port.Exchange, 0, len(p.exchanges))
	seen := make(map[string]bool, len(p.exchanges))
	for _, k := range p.keys {
		if !seen[k.exchange] {
			seen[k.exchange] = true
			out = append(out, p.exchanges[k.exchange])
		}
	}
	for name, ex := range p.exchanges {
		if !seen[name] {
			out = append(out, ex)
		}
	}
	return out
}

func (p *Portfolio) Wallet(exchange string, inst domain.Instrument) (*Wallet, error) {
	w, ok := p.wallets[walletKey{exchange: exchange, instrument: inst.Symbol}]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", domain.ErrWalletNotFound, exchange, inst)
	}
	return w, nil
}

// OpenWallet returns the wallet for inst on the named exchange, creating an
// empty one if needed.
func (p *Portfolio) OpenWallet(exchange string, inst domain.Instrument) (*Wallet, error) {
	ex, err := p.Exchange(exchange)
	if err != nil {
		return nil, err
	}
	return p.walletFor(ex, inst), nil
}

// walletFor returns the wallet for inst on ex, creating an empty one if needed.
func (p *Portfolio) walletFor(ex port.Exchange, inst domain.Instrument) *Wallet {
	if w, err := p.Wallet(ex.Name(), inst); err == nil {
		return w
	}
	w := NewWallet(ex, domain.Zero(inst))
	p.AddWallet(w)
	return w
}

// Wallets returns wallets in registration order.
func (p *Portfolio) Wallets() []*Wallet {
	out := make([]*Wallet, 0, len(p.keys))
	for _, k := range p.keys {
		out = append(out, p.wallets[k])
	}
	return out
}

// NetWorth sums every wallet's balance priced into the base instrument.
// Wallets whose pair cannot be quoted are left out.
func (p *Portfolio) NetWorth() decimal.Decimal {
	total := decimal.Zero
	for _, w := range p.Wallets() {
		v, ok := p.value(w)
		if ok {
			total = total.Add(v)
		}
	}
	return total.Truncate(p.base.Precision)
}

func (p *Portfolio) value(w *Wallet) (decimal.Decimal, bool) {
	if w.Instrument().Equal(p.base) {
		return w.balance, true
	}
	if w.balance.IsZero() {
		return decimal.Zero, true
	}
	pair, err := domain.NewPair(p.base, w.Instrument())
	if err != nil {
		return decimal.Zero, false
	}
	price := NewExchangePair(w.Exchange(), pair).Price()
	if price.IsInf() {
		return decimal.Zero, false
	}
	return w.balance.Mul(price.Decimal()), true
}

// View builds the informer read model.
func (p *Portfolio) View() *domain.PortfolioView {
	view := &domain.PortfolioView{
		Step:           p.clock.Step(),
		BaseInstrument: p.base.Symbol,
		NetWorth:       p.NetWorth(),
		Timestamp:      time.Now(),
	}
	for _, w := range p.Wallets() {
		view.Wallets = append(view.Wallets, w.Record())
	}
	return view
}

func (p *Portfolio) Records() []domain.WalletRecord {
	out := make([]domain.WalletRecord, 0, len(p.keys))
	for _, w := range p.Wallets() {
		out = append(out, w.Record())
	}
	return out
}

// Restore replaces every wallet with the given records. Exchanges must
// already be known to the portfolio.
func (p *Portfolio) Restore(records []domain.WalletRecord) error {
	wallets := make([]*Wallet, 0, len(records))
	for _, rec := range records {
		ex, err := p.Exchange(rec.Exchange)
		if err != nil {
			return err
		}
		inst, err := domain.InstrumentBySymbol(rec.Instrument)
		if err != nil {
			return err
		}
		w := NewWallet(ex, domain.Quantity{Instrument: inst, Amount: rec.Balance})
		for path, amount := range rec.Locked {
			w.locked[path] = amount
		}
		if err := w.Validate(); err != nil {
			return fmt.Errorf("restore wallet %s:%s: %w", rec.Exchange, rec.Instrument, err)
		}
		wallets = append(wallets, w)
	}
	p.wallets = make(map[walletKey]*Wallet, len(wallets))
	p.keys = nil
	for _, w := range wallets {
		p.AddWallet(w)
	}
	return nil
}
