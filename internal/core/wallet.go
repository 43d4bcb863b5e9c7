package core

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/port"
)

// Wallet is the ledger of one instrument on one exchange. Locked funds are
// tracked per path id; Available = Balance - Locked.
//
// A Wallet is owned by a single simulation and is not safe for concurrent use.
type Wallet struct {
	exchange   port.Exchange
	instrument domain.Instrument
	balance    decimal.Decimal
	locked     map[string]decimal.Decimal
}

func NewWallet(ex port.Exchange, balance domain.Quantity) *Wallet {
	return &Wallet{
		exchange:   ex,
		instrument: balance.Instrument,
		balance:    balance.Quantize().Amount,
		locked:     make(map[string]decimal.Decimal),
	}
}

func (w *Wallet) Exchange() port.Exchange { return w.exchange }

func (w *Wallet) Instrument() domain.Instrument { return w.instrument }

func (w *Wallet) Balance() domain.Quantity {
	return domain.Quantity{Instrument: w.instrument, Amount: w.balance}
}

func (w *Wallet) Locked() domain.Quantity {
	total := decimal.Zero
	for _, v := range w.locked {
		total = total.Add(v)
	}
	return domain.Quantity{Instrument: w.instrument, Amount: total}
}

func (w *Wallet) LockedFor(pathID string) domain.Quantity {
	return domain.Quantity{Instrument: w.instrument, Amount: w.locked[pathID], PathID: pathID}
}

func (w *Wallet) Available() domain.Quantity {
	return domain.Quantity{Instrument: w.instrument, Amount: w.balance.Sub(w.Locked().Amount)}
}

func (w *Wallet) Credit(q domain.Quantity) error {
	q, err := w.check(q)
	if err != nil {
		return err
	}
	w.balance = w.balance.Add(q.Amount)
	return nil
}

// Debit withdraws unlocked funds.
func (w *Wallet) Debit(q domain.Quantity) error {
	q, err := w.check(q)
	if err != nil {
		return err
	}
	if q.Amount.GreaterThan(w.Available().Amount) {
		return fmt.Errorf("%w: debit %s, available %s", domain.ErrInsufficientFunds, q, w.Available())
	}
	w.balance = w.balance.Sub(q.Amount)
	return nil
}

// Lock reserves available funds under q.PathID.
func (w *Wallet) Lock(q domain.Quantity) error {
	q, err := w.check(q)
	if err != nil {
		return err
	}
	if q.Amount.GreaterThan(w.Available().Amount) {
		return fmt.Errorf("%w: lock %s, available %s", domain.ErrInsufficientFunds, q, w.Available())
	}
	w.locked[q.PathID] = w.locked[q.PathID].Add(q.Amount)
	return nil
}

// Release unlocks up to q under q.PathID and returns what was released.
func (w *Wallet) Release(q domain.Quantity) (domain.Quantity, error) {
	q, err := w.check(q)
	if err != nil {
		return domain.Quantity{}, err
	}
	held := w.locked[q.PathID]
	amount := decimal.Min(held, q.Amount)
	w.setLocked(q.PathID, held.Sub(amount))
	return domain.Quantity{Instrument: w.instrument, Amount: amount, PathID: q.PathID}, nil
}

// DebitLocked withdraws funds previously locked under q.PathID.
func (w *Wallet) DebitLocked(q domain.Quantity) error {
	q, err := w.check(q)
	if err != nil {
		return err
	}
	held := w.locked[q.PathID]
	if q.Amount.GreaterThan(held) {
		return fmt.Errorf("%w: debit %s, locked under %q %s", domain.ErrInsufficientFunds, q, q.PathID, held)
	}
	w.setLocked(q.PathID, held.Sub(q.Amount))
	w.balance = w.balance.Sub(q.Amount)
	return nil
}

// restoreLocked reverses a successful DebitLocked.
func (w *Wallet) restoreLocked(q domain.Quantity) {
	q = q.Quantize()
	w.balance = w.balance.Add(q.Amount)
	w.locked[q.PathID] = w.locked[q.PathID].Add(q.Amount)
}

// revokeCredit reverses a successful Credit.
func (w *Wallet) revokeCredit(q domain.Quantity) {
	w.balance = w.balance.Sub(q.Quantize().Amount)
}

// Validate checks the ledger invariants.
func (w *Wallet) Validate() error {
	if w.balance.IsNegative() {
		return fmt.Errorf("negative balance: %s", w.Balance())
	}
	for path, v := range w.locked {
		if v.IsNegative() {
			return fmt.Errorf("negative locked amount under %q: %s", path, v)
		}
	}
	if w.Available().Amount.IsNegative() {
		return fmt.Errorf("locked %s exceeds balance %s", w.Locked(), w.Balance())
	}
	return nil
}

func (w *Wallet) Record() domain.WalletRecord {
	rec := domain.WalletRecord{
		Exchange:   w.exchange.Name(),
		Instrument: w.instrument.Symbol,
		Balance:    w.balance,
	}
	if len(w.locked) > 0 {
		rec.Locked = make(map[string]decimal.Decimal, len(w.locked))
		for k, v := range w.locked {
			rec.Locked[k] = v
		}
	}
	return rec
}

func (w *Wallet) String() string {
	return fmt.Sprintf("%s:%s balance=%s locked=%s", w.exchange.Name(), w.instrument, w.Balance(), w.Locked())
}

func (w *Wallet) setLocked(pathID string, v decimal.Decimal) {
	if v.IsZero() {
		delete(w.locked, pathID)
		return
	}
	w.locked[pathID] = v
}

func (w *Wallet) check(q domain.Quantity) (domain.Quantity, error) {
	if !q.Instrument.Equal(w.instrument) {
		return domain.Quantity{}, fmt.Errorf("%w: %s into %s wallet", domain.ErrInstrumentMismatch, q.Instrument, w.instrument)
	}
	q = q.Quantize()
	if q.Amount.IsNegative() {
		return domain.Quantity{}, fmt.Errorf("%w: %s", domain.ErrNegativeQuantity, q)
	}
	return q, nil
}
