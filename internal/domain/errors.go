package domain

import "errors"

// Sentinel errors shared by the order management packages.
var (
	// ErrInstrumentMismatch is returned when two quantities, or a quantity and a
	// wallet, are combined across different instruments.
	ErrInstrumentMismatch = errors.New("instrument mismatch")
	// ErrInsufficientFunds is returned when a debit or lock exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidProportion is returned when a proportion falls outside (0, 1].
	ErrInvalidProportion = errors.New("proportion must be in (0, 1]")
	// ErrPriceUnavailable is returned by exchanges that cannot quote a pair.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrInstrumentOrPairNotFound is returned when a conversion cannot be routed.
	ErrInstrumentOrPairNotFound = errors.New("instrument or pair not found")
	ErrNegativeQuantity         = errors.New("negative quantity")
	ErrInvalidQuantity          = errors.New("invalid quantity")
	ErrInvalidPair              = errors.New("invalid trading pair")
	ErrInvalidCriteria          = errors.New("invalid criteria")
	ErrInvalidTransition        = errors.New("invalid order status transition")
	ErrOrderNotFound            = errors.New("order not found")
	ErrWalletNotFound           = errors.New("wallet not found")
	ErrSnapshotNotFound         = errors.New("snapshot not found")
)
