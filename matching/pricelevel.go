package matching

import (
	"code.meridianprotocol.io/meridian/idgeneration"
	"code.meridianprotocol.io/meridian/types"
	"code.meridianprotocol.io/meridian/types/num"
)

// PriceLevel holds the resting orders at one price, oldest first. Orders at
// the same price fill strictly in order of arrival.
type PriceLevel struct {
	price  *num.Uint
	orders []*types.Order
	volume uint64
}

// NewPriceLevel returns an empty level at the given price.
func NewPriceLevel(price *num.Uint) *PriceLevel {
	return &PriceLevel{
		price:  price.Clone(),
		orders: []*types.Order{},
	}
}

func (l *PriceLevel) addOrder(o *types.Order) {
	l.orders = append(l.orders, o)
	l.volume += o.Remaining
}

func (l *PriceLevel) removeOrder(index int) {
	l.volume -= l.orders[index].Remaining
	copy(l.orders[index:], l.orders[index+1:])
	l.orders[len(l.orders)-1] = nil
	l.orders = l.orders[:len(l.orders)-1]
}

func (l *PriceLevel) reduceVolume(reduceBy uint64) {
	l.volume -= reduceBy
}

// uncross fills the aggressive order against this level, front to back.
// It returns whether the aggressive order was fully filled, the trades made
// and the passive orders they impacted. Fully filled passive orders are
// removed from the level.
func (l *PriceLevel) uncross(agg *types.Order, idgen *idgeneration.Generator) (bool, []*types.Trade, []*types.Order) {
	var (
		trades   []*types.Trade
		impacted []*types.Order
		toRemove int
	)

	for _, order := range l.orders {
		if agg.Remaining == 0 {
			break
		}
		size := min(agg.Remaining, order.Remaining)

		trade := newTrade(agg, order, size, idgen)
		agg.Remaining -= size
		order.Remaining -= size
		l.volume -= size

		if order.Remaining == 0 {
			order.Status = types.OrderStatusFilled
			toRemove++
		} else {
			order.Status = types.OrderStatusPartiallyFilled
		}

		trades = append(trades, trade)
		impacted = append(impacted, order)
	}

	for toRemove > 0 {
		toRemove--
		// filled orders sit at the front, volume was already adjusted
		copy(l.orders, l.orders[1:])
		l.orders[len(l.orders)-1] = nil
		l.orders = l.orders[:len(l.orders)-1]
	}

	return agg.Remaining == 0, trades, impacted
}

// fakeUncross walks the level the way uncross would, without mutating
// anything. remaining is the aggressive volume left over, the trades carry
// no IDs.
func (l *PriceLevel) fakeUncross(agg *types.Order, remaining uint64) (uint64, []*types.Trade) {
	var trades []*types.Trade
	for _, order := range l.orders {
		if remaining == 0 {
			break
		}
		size := min(remaining, order.Remaining)
		trades = append(trades, newTrade(agg, order, size, nil))
		remaining -= size
	}
	return remaining, trades
}

func min(x, y uint64) uint64 {
	if y < x {
		return y
	}
	return x
}
