package types

import "code.meridianprotocol.io/meridian/types/num"

// MarketClass splits spot markets from derivative markets.
type MarketClass int8

const (
	MarketClassUnspecified MarketClass = iota
	MarketClassSpot
	MarketClassDerivative
)

func (c MarketClass) String() string {
	switch c {
	case MarketClassSpot:
		return "spot"
	case MarketClassDerivative:
		return "derivative"
	default:
		return "unspecified"
	}
}

// Market is the static definition of a tradable market. Spot markets settle
// base against quote; derivative markets settle margin and PnL in quote only.
type Market struct {
	ID         MarketID
	Class      MarketClass
	BaseDenom  string
	QuoteDenom string

	TakerFeeRate num.Decimal
	MakerFeeRate num.Decimal

	// InitialMarginRatio is the minimum order margin relative to notional
	// required on derivative orders.
	InitialMarginRatio num.Decimal
}

// IsSpot reports whether the market is a spot market.
func (m Market) IsSpot() bool {
	return m.Class == MarketClassSpot
}

// IsDerivative reports whether the market is a derivative market.
func (m Market) IsDerivative() bool {
	return m.Class == MarketClassDerivative
}
