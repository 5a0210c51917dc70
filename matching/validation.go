package matching

import (
	"code.meridianprotocol.io/meridian/types"

	"github.com/pkg/errors"
)

func (b *OrderBook) validateOrder(o *types.Order) error {
	if o.MarketID != b.marketID {
		return errors.Wrapf(types.ErrInvalidMarketID,
			"order market %s, book market %s", o.MarketID, b.marketID)
	}
	if o.SubaccountID.IsZero() {
		return types.ErrInvalidSubaccountID
	}
	if o.Side != types.SideBuy && o.Side != types.SideSell {
		return types.ErrInvalidSide
	}
	if o.Type != types.OrderTypeLimit && o.Type != types.OrderTypeMarket {
		return types.ErrInvalidType
	}
	if o.Size == 0 || o.Remaining == 0 || o.Remaining > o.Size {
		return types.ErrInvalidSize
	}
	if o.Type == types.OrderTypeLimit && (o.Price == nil || o.Price.IsZero()) {
		return types.ErrInvalidPrice
	}
	if o.PostOnly && o.Type != types.OrderTypeLimit {
		return errors.Wrap(types.ErrInvalidType, "post only requires a limit order")
	}
	if o.IsConditional() && o.TriggerPrice.IsZero() {
		return types.ErrInvalidTriggerPrice
	}
	return nil
}
