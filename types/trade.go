package types

import "code.meridianprotocol.io/meridian/types/num"

// Trade is a single fill between an aggressive and a passive order, priced
// at the passive (maker) order's price.
type Trade struct {
	ID        string
	MarketID  MarketID
	Price     *num.Uint
	Size      uint64
	Buyer     SubaccountID
	Seller    SubaccountID
	BuyOrder  OrderID
	SellOrder OrderID
	Aggressor Side
	// Fee paid by the aggressor, already deducted from their proceeds.
	Fee          *num.Uint
	FeeRecipient Address
}

// Notional returns price x size for the trade.
func (t Trade) Notional() *num.Uint {
	return num.UintZero().Mul(t.Price, num.NewUint(t.Size))
}
