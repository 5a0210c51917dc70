package matching

import (
	"encoding/binary"
	"sort"
	"sync"

	"code.meridianprotocol.io/meridian/crypto"
	"code.meridianprotocol.io/meridian/idgeneration"
	"code.meridianprotocol.io/meridian/logging"
	"code.meridianprotocol.io/meridian/metrics"
	"code.meridianprotocol.io/meridian/types"
	"code.meridianprotocol.io/meridian/types/num"

	"github.com/pkg/errors"
)

type cidKey struct {
	subaccount types.SubaccountID
	cid        string
}

// OrderBook is the matching core of one market. It keeps the two sides of
// resting limit orders, the pool of conditional orders waiting on their
// trigger, and the lookup tables that make cancellation by hash or cid
// cheap. It knows nothing about balances, the callers settle the trades it
// returns.
type OrderBook struct {
	log *logging.Logger
	Config

	cfgMu    sync.Mutex
	marketID types.MarketID
	buy      *OrderBookSide
	sell     *OrderBookSide
	triggers *TriggerPool

	lastTradedPrice *num.Uint
	markPrice       *num.Uint

	ordersByID  map[types.OrderID]*types.Order
	ordersByCid map[cidKey]types.OrderID

	// seq is the acceptance counter, the time component of price-time priority
	seq uint64
}

// NewOrderBook create an order book with a given market ID.
func NewOrderBook(log *logging.Logger, config Config, marketID types.MarketID) *OrderBook {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &OrderBook{
		log:         log,
		Config:      config,
		marketID:    marketID,
		buy:         &OrderBookSide{side: types.SideBuy, log: log},
		sell:        &OrderBookSide{side: types.SideSell, log: log},
		triggers:    NewTriggerPool(),
		ordersByID:  map[types.OrderID]*types.Order{},
		ordersByCid: map[cidKey]types.OrderID{},
	}
}

// ReloadConf updates the internal configuration of the order book.
func (b *OrderBook) ReloadConf(cfg Config) {
	b.log.Info("reloading configuration")
	if b.log.GetLevel() != cfg.Level.Get() {
		b.log.Info("updating log level",
			logging.String("old", b.log.GetLevel().String()),
			logging.String("new", cfg.Level.String()),
		)
		b.log.SetLevel(cfg.Level.Get())
	}

	b.cfgMu.Lock()
	b.Config = cfg
	b.cfgMu.Unlock()
}

// MarketID returns the market this book matches.
func (b *OrderBook) MarketID() types.MarketID {
	return b.marketID
}

// SubmitOrder validates and processes an incoming order. Conditional orders
// park in the trigger pool, regular orders uncross against the opposite side
// and rest whatever limit remainder is left. The assigned order hash is on
// the returned confirmation.
func (b *OrderBook) SubmitOrder(o *types.Order) (*types.OrderConfirmation, error) {
	timer := metrics.NewTimeCounter(b.marketID.String(), "matching", "OrderBook.SubmitOrder")
	defer timer.EngineTimeCounterAdd()

	if err := b.validateOrder(o); err != nil {
		o.Status = types.OrderStatusRejected
		return nil, err
	}
	if o.Cid != "" {
		k := cidKey{o.SubaccountID, o.Cid}
		if _, ok := b.ordersByCid[k]; ok {
			o.Status = types.OrderStatusRejected
			return nil, errors.Wrapf(types.ErrDuplicateCid, "%q", o.Cid)
		}
	}
	if o.PostOnly && b.oppositeSide(o.Side).crosses(o.Price) {
		o.Status = types.OrderStatusRejected
		return nil, types.ErrPostOnlyCrossing
	}

	b.seq++
	o.Seq = b.seq
	if o.ID.IsZero() {
		// triggered conditional orders come back with the hash they were
		// assigned when parked, time priority restarts either way
		copy(o.ID[:], b.orderHash(o))
	}

	if o.IsConditional() {
		o.Status = types.OrderStatusTriggerPending
		b.triggers.Insert(o, b.currentMarkPrice())
		b.index(o)
		return &types.OrderConfirmation{Order: o}, nil
	}

	idgen := idgeneration.NewFromBytes(o.ID[:])
	trades, impacted, lastTradedPrice := b.oppositeSide(o.Side).uncross(o, idgen)
	if lastTradedPrice != nil {
		b.lastTradedPrice = lastTradedPrice
	}

	for _, impact := range impacted {
		if impact.Remaining == 0 {
			b.unindex(impact)
			if b.LogRemovedOrdersDebug {
				b.log.Debug("passive order fully filled and removed",
					logging.Order(impact))
			}
		}
	}

	switch {
	case o.Remaining == 0:
		o.Status = types.OrderStatusFilled
	case o.Type == types.OrderTypeMarket:
		// market orders never rest, the unfilled remainder is cancelled
		o.Status = types.OrderStatusCancelled
	case len(trades) > 0:
		o.Status = types.OrderStatusPartiallyFilled
		b.sideFor(o.Side).addOrder(o)
		b.index(o)
	default:
		o.Status = types.OrderStatusActive
		b.sideFor(o.Side).addOrder(o)
		b.index(o)
	}

	metrics.OrderCounterInc(b.marketID.String(), o.Status.String())
	metrics.TradeCounterAdd(b.marketID.String(), len(trades))

	if b.LogPriceLevelsDebug {
		b.log.Debug("book state after submission",
			logging.MarketID(b.marketID),
			logging.Int64("buy-levels", int64(len(b.buy.levels))),
			logging.Int64("sell-levels", int64(len(b.sell.levels))))
	}

	return &types.OrderConfirmation{
		Order:          o,
		Trades:         trades,
		ImpactedOrders: impacted,
	}, nil
}

// GetIndicativeTrades returns the trades the order would make if submitted
// right now, leaving the book untouched.
func (b *OrderBook) GetIndicativeTrades(o *types.Order) []*types.Trade {
	return b.oppositeSide(o.Side).fakeUncross(o)
}

// CancelOrder removes the order with the given hash from the book or the
// trigger pool.
func (b *OrderBook) CancelOrder(id types.OrderID) (*types.Order, error) {
	o, ok := b.ordersByID[id]
	if !ok {
		return nil, errors.Wrapf(types.ErrOrderNotFound, "%s", id)
	}
	return b.cancel(o)
}

// CancelByOrderData resolves the cancellation target either by order hash or
// by cid under the subaccount. The mask narrows cid lookups only, a hash
// already names one exact order.
func (b *OrderBook) CancelByOrderData(d types.OrderData) (*types.Order, error) {
	id := d.OrderHash
	byCid := id.IsZero()
	if byCid {
		var ok bool
		if id, ok = b.ordersByCid[cidKey{d.SubaccountID, d.Cid}]; !ok {
			return nil, errors.Wrapf(types.ErrOrderNotFound, "cid %q", d.Cid)
		}
	}
	o, ok := b.ordersByID[id]
	if !ok || o.SubaccountID != d.SubaccountID {
		return nil, errors.Wrapf(types.ErrOrderNotFound, "%s", id)
	}
	if byCid && !d.OrderMask.Matches(o) {
		return nil, errors.Wrapf(types.ErrOrderNotFound, "%s outside mask", id)
	}
	return b.cancel(o)
}

// CancelAllBySubaccount removes every live order of the subaccount matching
// the mask, in acceptance order.
func (b *OrderBook) CancelAllBySubaccount(subaccount types.SubaccountID, mask types.OrderMask) []*types.Order {
	var targets []*types.Order
	for _, o := range b.ordersByID {
		if o.SubaccountID == subaccount && mask.Matches(o) {
			targets = append(targets, o)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Seq < targets[j].Seq })

	cancelled := make([]*types.Order, 0, len(targets))
	for _, o := range targets {
		c, err := b.cancel(o)
		if err != nil {
			// the index and the sides disagree, this must never happen
			b.log.Panic("order in lookup table but not on the book",
				logging.Order(o), logging.Error(err))
		}
		cancelled = append(cancelled, c)
	}
	return cancelled
}

func (b *OrderBook) cancel(o *types.Order) (*types.Order, error) {
	if o.Status == types.OrderStatusTriggerPending {
		if _, err := b.triggers.Remove(o.ID); err != nil {
			return nil, err
		}
	} else if _, err := b.sideFor(o.Side).RemoveOrder(o); err != nil {
		return nil, err
	}
	b.unindex(o)
	o.Status = types.OrderStatusCancelled
	metrics.OrderCounterInc(b.marketID.String(), o.Status.String())
	return o, nil
}

// GetOrderByID returns a copy of a live order by its hash.
func (b *OrderBook) GetOrderByID(id types.OrderID) (*types.Order, error) {
	o, ok := b.ordersByID[id]
	if !ok {
		return nil, errors.Wrapf(types.ErrOrderNotFound, "%s", id)
	}
	return o.Clone(), nil
}

// GetOrdersByHashes returns copies of the live orders among the given
// hashes, unknown hashes are skipped.
func (b *OrderBook) GetOrdersByHashes(ids []types.OrderID) []*types.Order {
	out := make([]*types.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := b.ordersByID[id]; ok {
			out = append(out, o.Clone())
		}
	}
	return out
}

// BestBid returns the highest resting buy price and its volume.
func (b *OrderBook) BestBid() (*num.Uint, uint64, error) {
	return b.buy.BestPriceAndVolume()
}

// BestOffer returns the lowest resting sell price and its volume.
func (b *OrderBook) BestOffer() (*num.Uint, uint64, error) {
	return b.sell.BestPriceAndVolume()
}

// LastTradedPrice returns the price of the most recent trade, nil before
// the first one.
func (b *OrderBook) LastTradedPrice() *num.Uint {
	if b.lastTradedPrice == nil {
		return nil
	}
	return b.lastTradedPrice.Clone()
}

// SetMarkPrice records a new mark price and pops the conditional orders it
// triggers. The returned orders are no longer tracked by the book, the
// caller re-submits them as regular orders.
func (b *OrderBook) SetMarkPrice(price *num.Uint) []*types.Order {
	b.markPrice = price.Clone()
	triggered := b.triggers.Triggered(price)
	for _, o := range triggered {
		b.unindex(o)
	}
	if len(triggered) > 0 && b.log.GetLevel() == logging.DebugLevel {
		b.log.Debug("conditional orders triggered",
			logging.MarketID(b.marketID),
			logging.BigUint("mark-price", price),
			logging.Int("count", len(triggered)))
	}
	return triggered
}

// currentMarkPrice is the reference price conditional orders are parked
// against, falling back to the last traded price early in a market's life.
func (b *OrderBook) currentMarkPrice() *num.Uint {
	if b.markPrice != nil {
		return b.markPrice
	}
	return b.lastTradedPrice
}

func (b *OrderBook) sideFor(side types.Side) *OrderBookSide {
	if side == types.SideBuy {
		return b.buy
	}
	return b.sell
}

func (b *OrderBook) oppositeSide(side types.Side) *OrderBookSide {
	if side == types.SideBuy {
		return b.sell
	}
	return b.buy
}

func (b *OrderBook) index(o *types.Order) {
	b.ordersByID[o.ID] = o
	if o.Cid != "" {
		b.ordersByCid[cidKey{o.SubaccountID, o.Cid}] = o.ID
	}
}

func (b *OrderBook) unindex(o *types.Order) {
	delete(b.ordersByID, o.ID)
	if o.Cid != "" {
		delete(b.ordersByCid, cidKey{o.SubaccountID, o.Cid})
	}
}

// orderHash derives the deterministic order hash from the order content and
// its acceptance sequence number.
func (b *OrderBook) orderHash(o *types.Order) []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, o.MarketID[:]...)
	buf = append(buf, o.SubaccountID[:]...)
	buf = append(buf, byte(o.Side), byte(o.Type))
	price := o.Price.Bytes()
	buf = append(buf, price[:]...)
	buf = binary.BigEndian.AppendUint64(buf, o.Size)
	if o.TriggerPrice != nil {
		trigger := o.TriggerPrice.Bytes()
		buf = append(buf, trigger[:]...)
	}
	buf = append(buf, o.Cid...)
	buf = binary.BigEndian.AppendUint64(buf, o.Seq)
	return crypto.Hash(buf)
}

// GetTotalNumberOfOrders is the total number of orders resting on the book.
func (b *OrderBook) GetTotalNumberOfOrders() int64 {
	return b.buy.getOrderCount() + b.sell.getOrderCount()
}

// GetVolumeAtPrice returns the resting volume at a price on the given side.
func (b *OrderBook) GetVolumeAtPrice(side types.Side, price *num.Uint) (uint64, error) {
	return b.sideFor(side).GetVolume(price)
}

// GetPendingConditionalOrders is the number of orders waiting on a trigger.
func (b *OrderBook) GetPendingConditionalOrders() int {
	return b.triggers.Len()
}
