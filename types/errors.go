package types

import "github.com/pkg/errors"

// Engine errors. Every failure a boundary operation can report maps onto one
// of these sentinels; Classify places each into the coarse taxonomy callers
// branch on.
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidMarketID     = errors.New("invalid market for order")
	ErrInvalidSize         = errors.New("invalid order size")
	ErrInvalidPrice        = errors.New("invalid order price")
	ErrInvalidTriggerPrice = errors.New("invalid trigger price")
	ErrInvalidSide         = errors.New("invalid order side")
	ErrInvalidType         = errors.New("invalid order type")
	ErrInvalidMargin       = errors.New("invalid order margin")
	ErrInvalidSubaccountID = errors.New("invalid subaccount id")
	ErrInvalidFeeRecipient = errors.New("invalid fee recipient")
	ErrMissingCid          = errors.New("missing client order id")

	ErrInsufficientBalance          = errors.New("insufficient balance")
	ErrInsufficientAvailableBalance = errors.New("insufficient available balance")
	ErrInsufficientReservedBalance  = errors.New("insufficient reserved balance")
	ErrInsufficientMargin           = errors.New("insufficient margin")
	ErrMarginUnderflow              = errors.New("margin decrease exceeds position margin")

	ErrMarketNotFound   = errors.New("market not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrPositionNotFound = errors.New("position not found")
	ErrDepositNotFound  = errors.New("deposit not found")

	ErrPostOnlyCrossing = errors.New("post-only order would cross the book")
	ErrDuplicateCid     = errors.New("client order id already in use")
	ErrMarketExists     = errors.New("market already exists")
)

// Kind is the coarse error taxonomy: callers only need to know whether an
// operation was malformed, short on funds, referenced something unknown, or
// conflicted with existing state. No state was mutated in any of these cases.
type Kind int8

const (
	KindUnspecified Kind = iota
	KindValidation
	KindInsufficientResource
	KindNotFound
	KindConflict
)

// Classify maps an engine error onto its Kind.
func Classify(err error) Kind {
	switch errors.Cause(err) {
	case ErrInvalidAmount, ErrInvalidMarketID, ErrInvalidSize, ErrInvalidPrice,
		ErrInvalidTriggerPrice, ErrInvalidSide, ErrInvalidType, ErrInvalidMargin,
		ErrInvalidSubaccountID, ErrInvalidFeeRecipient, ErrMissingCid,
		ErrInvalidID, ErrInvalidAddress:
		return KindValidation
	case ErrInsufficientBalance, ErrInsufficientAvailableBalance,
		ErrInsufficientReservedBalance, ErrInsufficientMargin, ErrMarginUnderflow:
		return KindInsufficientResource
	case ErrMarketNotFound, ErrOrderNotFound, ErrPositionNotFound, ErrDepositNotFound:
		return KindNotFound
	case ErrPostOnlyCrossing, ErrDuplicateCid, ErrMarketExists:
		return KindConflict
	}
	return KindUnspecified
}
