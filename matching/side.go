package matching

import (
	"sort"

	"code.meridianprotocol.io/meridian/idgeneration"
	"code.meridianprotocol.io/meridian/logging"
	"code.meridianprotocol.io/meridian/types"
	"code.meridianprotocol.io/meridian/types/num"

	"github.com/pkg/errors"
)

var (
	// ErrPriceNotFound signals that a price was not found on the book side.
	ErrPriceNotFound = errors.New("price-volume pair not found")
	// ErrEmptySide signals a best price query against a side with no orders.
	ErrEmptySide = errors.New("no orders on the book side")
)

// OrderBookSide represents one side of the book, either buy or sell. Levels
// are kept with the best price at the end of the slice, so uncrossing
// consumes levels from the back.
type OrderBookSide struct {
	side   types.Side
	log    *logging.Logger
	levels []*PriceLevel
}

func (s *OrderBookSide) addOrder(o *types.Order) {
	s.getPriceLevel(o.Price).addOrder(o)
}

// BestPriceAndVolume returns the top of book price and its volume.
// It returns an error if the side is empty.
func (s *OrderBookSide) BestPriceAndVolume() (*num.Uint, uint64, error) {
	if len(s.levels) <= 0 {
		return nil, 0, ErrEmptySide
	}
	last := len(s.levels) - 1
	return s.levels[last].price.Clone(), s.levels[last].volume, nil
}

// RemoveOrder takes an order off the side, dropping its level when emptied.
func (s *OrderBookSide) RemoveOrder(o *types.Order) (*types.Order, error) {
	// first we try to find the price level of the order
	var i int
	if o.Side == types.SideBuy {
		i = sort.Search(len(s.levels), func(i int) bool { return s.levels[i].price.GTE(o.Price) })
	} else {
		i = sort.Search(len(s.levels), func(i int) bool { return s.levels[i].price.LTE(o.Price) })
	}
	// we did not find the level, then the order is not on the side
	if i >= len(s.levels) || !s.levels[i].price.EQ(o.Price) {
		return nil, types.ErrOrderNotFound
	}

	oidx := -1
	for index, order := range s.levels[i].orders {
		if order.ID == o.ID {
			oidx = index
			break
		}
	}
	if oidx == -1 {
		return nil, types.ErrOrderNotFound
	}

	order := s.levels[i].orders[oidx]
	s.levels[i].removeOrder(oidx)

	if len(s.levels[i].orders) <= 0 {
		s.levels = s.levels[:i+copy(s.levels[i:], s.levels[i+1:])]
	}

	return order, nil
}

func (s *OrderBookSide) getPriceLevelIfExists(price *num.Uint) *PriceLevel {
	i := s.levelIndex(price)
	if i < len(s.levels) && s.levels[i].price.EQ(price) {
		return s.levels[i]
	}
	return nil
}

func (s *OrderBookSide) getPriceLevel(price *num.Uint) *PriceLevel {
	i := s.levelIndex(price)
	if i < len(s.levels) && s.levels[i].price.EQ(price) {
		return s.levels[i]
	}

	// append new elem first to make sure we have enough place
	// this would reallocate sufficiently then
	level := NewPriceLevel(price)
	s.levels = append(s.levels, nil)
	copy(s.levels[i+1:], s.levels[i:])
	s.levels[i] = level
	return level
}

func (s *OrderBookSide) levelIndex(price *num.Uint) int {
	if s.side == types.SideBuy {
		// buy side levels are ordered in ascending, best bid last
		return sort.Search(len(s.levels), func(i int) bool { return s.levels[i].price.GTE(price) })
	}
	// sell side levels are ordered in descending, best offer last
	return sort.Search(len(s.levels), func(i int) bool { return s.levels[i].price.LTE(price) })
}

// GetVolume returns the volume at the given price level.
func (s *OrderBookSide) GetVolume(price *num.Uint) (uint64, error) {
	priceLevel := s.getPriceLevelIfExists(price)
	if priceLevel == nil {
		return 0, ErrPriceNotFound
	}
	return priceLevel.volume, nil
}

// crosses reports whether an aggressive order with the given limit price
// would trade against this side right now.
func (s *OrderBookSide) crosses(price *num.Uint) bool {
	if len(s.levels) <= 0 {
		return false
	}
	best := s.levels[len(s.levels)-1].price
	if s.side == types.SideBuy {
		// a sell at price trades when the best bid reaches it
		return best.GTE(price)
	}
	return best.LTE(price)
}

// fakeUncross returns the trades the aggressive order would make against
// this side, without touching the book. The returned trades carry no IDs.
func (s *OrderBookSide) fakeUncross(agg *types.Order) []*types.Trade {
	var (
		trades     []*types.Trade
		remaining  = agg.Remaining
		idx        = len(s.levels) - 1
		checkPrice = s.stopPrice(agg)
	)

	for idx >= 0 && remaining > 0 {
		if agg.Type != types.OrderTypeMarket && checkPrice(s.levels[idx].price) {
			break
		}
		var ntrades []*types.Trade
		remaining, ntrades = s.levels[idx].fakeUncross(agg, remaining)
		trades = append(trades, ntrades...)
		idx--
	}

	return trades
}

// uncross fills the aggressive order against this side, best level first.
// It returns the trades made, the impacted passive orders and the last
// traded price. Emptied levels are removed.
func (s *OrderBookSide) uncross(agg *types.Order, idgen *idgeneration.Generator) ([]*types.Trade, []*types.Order, *num.Uint) {
	var (
		trades          []*types.Trade
		impactedOrders  []*types.Order
		lastTradedPrice *num.Uint
		checkPrice      = s.stopPrice(agg)
	)

	// iterate from the end, removing emptied price levels from the back of
	// the slice is cheaper than from the front
	var (
		idx     = len(s.levels) - 1
		filled  bool
		ntrades []*types.Trade
		nimpact []*types.Order
	)
	for !filled && idx >= 0 {
		if agg.Type != types.OrderTypeMarket && checkPrice(s.levels[idx].price) {
			break
		}
		filled, ntrades, nimpact = s.levels[idx].uncross(agg, idgen)
		trades = append(trades, ntrades...)
		impactedOrders = append(impactedOrders, nimpact...)
		if len(s.levels[idx].orders) <= 0 {
			idx--
		}
	}

	// now resize the slice over the levels that were emptied out
	if idx < 0 || len(s.levels[idx].orders) > 0 {
		idx++
	}
	if idx < len(s.levels) {
		for i := idx; i < len(s.levels); i++ {
			s.levels[i] = nil
		}
		s.levels = s.levels[:idx]
	}

	if len(trades) > 0 {
		lastTradedPrice = trades[len(trades)-1].Price.Clone()
		if s.log.GetLevel() == logging.DebugLevel {
			s.log.Debug("uncrossed aggressive order",
				logging.Order(agg),
				logging.Int("trades", len(trades)),
				logging.BigUint("last-traded-price", lastTradedPrice))
		}
	}
	return trades, impactedOrders, lastTradedPrice
}

// stopPrice returns the predicate deciding when a level is beyond the limit
// price of the aggressive order.
func (s *OrderBookSide) stopPrice(agg *types.Order) func(*num.Uint) bool {
	if agg.Side == types.SideBuy {
		// buying against the sell side, stop once levels cost more than the limit
		return func(levelPrice *num.Uint) bool { return levelPrice.GT(agg.Price) }
	}
	return func(levelPrice *num.Uint) bool { return levelPrice.LT(agg.Price) }
}

func (s *OrderBookSide) getOrderCount() int64 {
	var orderCount int64
	for _, level := range s.levels {
		orderCount += int64(len(level.orders))
	}
	return orderCount
}

func (s *OrderBookSide) getTotalVolume() int64 {
	var volume int64
	for _, level := range s.levels {
		volume += int64(level.volume)
	}
	return volume
}
