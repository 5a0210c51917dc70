package matching

import (
	"code.meridianprotocol.io/meridian/idgeneration"
	"code.meridianprotocol.io/meridian/types"
)

// newTrade builds the trade for a fill of the given size between the
// aggressive order and a passive order. Trades happen at the passive order
// price. The fee fields are filled in later at settlement.
func newTrade(agg, pass *types.Order, size uint64, idgen *idgeneration.Generator) *types.Trade {
	trade := &types.Trade{
		MarketID:  agg.MarketID,
		Price:     pass.Price.Clone(),
		Size:      size,
		Aggressor: agg.Side,
	}
	if idgen != nil {
		trade.ID = idgen.NextID()
	}

	if agg.Side == types.SideBuy {
		trade.Buyer = agg.SubaccountID
		trade.Seller = pass.SubaccountID
		trade.BuyOrder = agg.ID
		trade.SellOrder = pass.ID
	} else {
		trade.Buyer = pass.SubaccountID
		trade.Seller = agg.SubaccountID
		trade.BuyOrder = pass.ID
		trade.SellOrder = agg.ID
	}
	return trade
}
