package types

import (
	"fmt"

	"code.meridianprotocol.io/meridian/types/num"
)

// Position is one subaccount's open derivative exposure in one market.
// The record exists only while Quantity > 0.
type Position struct {
	SubaccountID           SubaccountID
	MarketID               MarketID
	IsLong                 bool
	Quantity               uint64
	EntryPrice             *num.Uint
	Margin                 *num.Uint
	CumulativeFundingEntry num.Decimal
}

// Clone returns a deep copy of the position.
func (p Position) Clone() *Position {
	cpy := p
	cpy.EntryPrice = p.EntryPrice.Clone()
	cpy.Margin = p.Margin.Clone()
	return &cpy
}

func (p Position) String() string {
	side := "short"
	if p.IsLong {
		side = "long"
	}
	return fmt.Sprintf("subaccount:%s market:%s %s quantity:%d entry:%s margin:%s",
		p.SubaccountID, p.MarketID, side, p.Quantity, p.EntryPrice, p.Margin)
}
