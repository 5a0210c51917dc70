package matching_test

import (
	"fmt"
	"testing"

	"code.meridianprotocol.io/meridian/crypto"
	"code.meridianprotocol.io/meridian/logging"
	"code.meridianprotocol.io/meridian/matching"
	"code.meridianprotocol.io/meridian/types"
	"code.meridianprotocol.io/meridian/types/num"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMarketID = func() types.MarketID {
	var id types.MarketID
	copy(id[:], crypto.Hash([]byte("spot-market")))
	return id
}()

func getTestBook(t *testing.T) *matching.OrderBook {
	t.Helper()
	return matching.NewOrderBook(logging.NewTestLogger(), matching.NewDefaultConfig(), testMarketID)
}

func testSubaccount(t *testing.T, nonce uint64) types.SubaccountID {
	t.Helper()
	owner, err := types.AddressFromString("0x727aee334987c52fa7b567b2662bdbb68614e48c")
	require.NoError(t, err)
	return types.NewSubaccountID(owner, nonce)
}

func limitOrder(sub types.SubaccountID, side types.Side, price, size uint64) *types.Order {
	return &types.Order{
		MarketID:     testMarketID,
		SubaccountID: sub,
		Side:         side,
		Type:         types.OrderTypeLimit,
		Price:        num.NewUint(price),
		Size:         size,
		Remaining:    size,
	}
}

func marketOrder(sub types.SubaccountID, side types.Side, size uint64) *types.Order {
	return &types.Order{
		MarketID:     testMarketID,
		SubaccountID: sub,
		Side:         side,
		Type:         types.OrderTypeMarket,
		Price:        num.UintZero(),
		Size:         size,
		Remaining:    size,
	}
}

func TestOrderBook_limitOrderRests(t *testing.T) {
	book := getTestBook(t)
	sub := testSubaccount(t, 0)

	conf, err := book.SubmitOrder(limitOrder(sub, types.SideSell, 100, 10))
	require.NoError(t, err)
	assert.False(t, conf.Order.ID.IsZero())
	assert.Equal(t, types.OrderStatusActive, conf.Order.Status)
	assert.Empty(t, conf.Trades)

	price, volume, err := book.BestOffer()
	require.NoError(t, err)
	assert.True(t, price.EQUint64(100))
	assert.EqualValues(t, 10, volume)

	_, _, err = book.BestBid()
	assert.Error(t, err)
}

func TestOrderBook_validationRejects(t *testing.T) {
	book := getTestBook(t)
	sub := testSubaccount(t, 0)

	o := limitOrder(sub, types.SideSell, 100, 10)
	o.Price = num.UintZero()
	_, err := book.SubmitOrder(o)
	assert.ErrorIs(t, err, types.ErrInvalidPrice)
	assert.Equal(t, types.OrderStatusRejected, o.Status)

	o = limitOrder(sub, types.SideSell, 100, 0)
	_, err = book.SubmitOrder(o)
	assert.ErrorIs(t, err, types.ErrInvalidSize)

	o = marketOrder(sub, types.SideBuy, 10)
	o.PostOnly = true
	_, err = book.SubmitOrder(o)
	assert.ErrorIs(t, err, types.ErrInvalidType)
}

func TestOrderBook_marketBuyFillsAtMakerPrice(t *testing.T) {
	book := getTestBook(t)
	maker := testSubaccount(t, 0)
	taker := testSubaccount(t, 1)

	_, err := book.SubmitOrder(limitOrder(maker, types.SideSell, 50, 10))
	require.NoError(t, err)

	conf, err := book.SubmitOrder(marketOrder(taker, types.SideBuy, 10))
	require.NoError(t, err)
	require.Len(t, conf.Trades, 1)

	trade := conf.Trades[0]
	assert.True(t, trade.Price.EQUint64(50))
	assert.EqualValues(t, 10, trade.Size)
	assert.Equal(t, taker, trade.Buyer)
	assert.Equal(t, maker, trade.Seller)
	assert.Equal(t, types.SideBuy, trade.Aggressor)
	assert.NotEmpty(t, trade.ID)
	assert.Equal(t, types.OrderStatusFilled, conf.Order.Status)

	// the maker order is gone from the book
	_, _, err = book.BestOffer()
	assert.Error(t, err)
	assert.EqualValues(t, 0, book.GetTotalNumberOfOrders())
}

func TestOrderBook_marketOrderRemainderCancelled(t *testing.T) {
	book := getTestBook(t)
	maker := testSubaccount(t, 0)
	taker := testSubaccount(t, 1)

	_, err := book.SubmitOrder(limitOrder(maker, types.SideSell, 50, 6))
	require.NoError(t, err)

	conf, err := book.SubmitOrder(marketOrder(taker, types.SideBuy, 10))
	require.NoError(t, err)
	require.Len(t, conf.Trades, 1)
	assert.EqualValues(t, 6, conf.Trades[0].Size)
	assert.Equal(t, types.OrderStatusCancelled, conf.Order.Status)
	assert.EqualValues(t, 4, conf.Order.Remaining)
}

func TestOrderBook_limitRemainderRests(t *testing.T) {
	book := getTestBook(t)
	maker := testSubaccount(t, 0)
	taker := testSubaccount(t, 1)

	_, err := book.SubmitOrder(limitOrder(maker, types.SideSell, 100, 4))
	require.NoError(t, err)

	conf, err := book.SubmitOrder(limitOrder(taker, types.SideBuy, 110, 10))
	require.NoError(t, err)
	require.Len(t, conf.Trades, 1)
	assert.True(t, conf.Trades[0].Price.EQUint64(100))
	assert.Equal(t, types.OrderStatusPartiallyFilled, conf.Order.Status)

	// the leftover 6 rest at the limit price, not at the traded price
	price, volume, err := book.BestBid()
	require.NoError(t, err)
	assert.True(t, price.EQUint64(110))
	assert.EqualValues(t, 6, volume)
}

func TestOrderBook_priceTimePriority(t *testing.T) {
	book := getTestBook(t)
	first := testSubaccount(t, 0)
	second := testSubaccount(t, 1)
	third := testSubaccount(t, 2)
	taker := testSubaccount(t, 3)

	// two at the same price, one better, submitted out of price order
	_, err := book.SubmitOrder(limitOrder(first, types.SideSell, 100, 5))
	require.NoError(t, err)
	_, err = book.SubmitOrder(limitOrder(second, types.SideSell, 100, 5))
	require.NoError(t, err)
	_, err = book.SubmitOrder(limitOrder(third, types.SideSell, 99, 5))
	require.NoError(t, err)

	conf, err := book.SubmitOrder(marketOrder(taker, types.SideBuy, 12))
	require.NoError(t, err)
	require.Len(t, conf.Trades, 3)

	// best price first, then FIFO within the level
	assert.True(t, conf.Trades[0].Price.EQUint64(99))
	assert.Equal(t, third, conf.Trades[0].Seller)
	assert.Equal(t, first, conf.Trades[1].Seller)
	assert.EqualValues(t, 5, conf.Trades[1].Size)
	assert.Equal(t, second, conf.Trades[2].Seller)
	assert.EqualValues(t, 2, conf.Trades[2].Size)
}

func TestOrderBook_limitPriceBoundsUncross(t *testing.T) {
	book := getTestBook(t)
	maker := testSubaccount(t, 0)
	taker := testSubaccount(t, 1)

	_, err := book.SubmitOrder(limitOrder(maker, types.SideSell, 100, 5))
	require.NoError(t, err)
	_, err = book.SubmitOrder(limitOrder(maker, types.SideSell, 105, 5))
	require.NoError(t, err)

	// willing to pay 100 at most, the 105 level stays untouched
	conf, err := book.SubmitOrder(limitOrder(taker, types.SideBuy, 100, 10))
	require.NoError(t, err)
	require.Len(t, conf.Trades, 1)
	assert.True(t, conf.Trades[0].Price.EQUint64(100))

	volume, err := book.GetVolumeAtPrice(types.SideSell, num.NewUint(105))
	require.NoError(t, err)
	assert.EqualValues(t, 5, volume)
}

func TestOrderBook_postOnlyCrossingRejected(t *testing.T) {
	book := getTestBook(t)
	maker := testSubaccount(t, 0)
	poster := testSubaccount(t, 1)

	_, err := book.SubmitOrder(limitOrder(maker, types.SideSell, 100, 5))
	require.NoError(t, err)

	o := limitOrder(poster, types.SideBuy, 100, 5)
	o.PostOnly = true
	_, err = book.SubmitOrder(o)
	assert.ErrorIs(t, err, types.ErrPostOnlyCrossing)
	assert.Equal(t, types.OrderStatusRejected, o.Status)

	// below the best offer it rests fine
	o = limitOrder(poster, types.SideBuy, 99, 5)
	o.PostOnly = true
	conf, err := book.SubmitOrder(o)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusActive, conf.Order.Status)
}

func TestOrderBook_cancelOrder(t *testing.T) {
	book := getTestBook(t)
	sub := testSubaccount(t, 0)

	conf, err := book.SubmitOrder(limitOrder(sub, types.SideBuy, 90, 5))
	require.NoError(t, err)

	cancelled, err := book.CancelOrder(conf.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCancelled, cancelled.Status)
	assert.EqualValues(t, 0, book.GetTotalNumberOfOrders())

	// a second cancel finds nothing
	_, err = book.CancelOrder(conf.Order.ID)
	assert.ErrorIs(t, err, types.ErrOrderNotFound)
	assert.Equal(t, types.KindNotFound, types.Classify(err))
}

func TestOrderBook_cancelByCidAndMask(t *testing.T) {
	book := getTestBook(t)
	sub := testSubaccount(t, 0)

	o := limitOrder(sub, types.SideBuy, 90, 5)
	o.Cid = "my-order-1"
	_, err := book.SubmitOrder(o)
	require.NoError(t, err)

	// a sell-only mask does not reach a buy order
	_, err = book.CancelByOrderData(types.OrderData{
		MarketID:     testMarketID,
		SubaccountID: sub,
		Cid:          "my-order-1",
		OrderMask:    types.OrderMaskSellOrLower,
	})
	assert.ErrorIs(t, err, types.ErrOrderNotFound)

	cancelled, err := book.CancelByOrderData(types.OrderData{
		MarketID:     testMarketID,
		SubaccountID: sub,
		Cid:          "my-order-1",
		OrderMask:    types.OrderMaskBuyOrHigher,
	})
	require.NoError(t, err)
	assert.Equal(t, "my-order-1", cancelled.Cid)
}

func TestOrderBook_cancelByHashIgnoresMask(t *testing.T) {
	book := getTestBook(t)
	sub := testSubaccount(t, 0)

	conf, err := book.SubmitOrder(limitOrder(sub, types.SideBuy, 90, 5))
	require.NoError(t, err)

	// the hash names one exact order, a mismatched mask does not get in the way
	cancelled, err := book.CancelByOrderData(types.OrderData{
		MarketID:     testMarketID,
		SubaccountID: sub,
		OrderHash:    conf.Order.ID,
		OrderMask:    types.OrderMaskSellOrLower,
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCancelled, cancelled.Status)
	assert.EqualValues(t, 0, book.GetTotalNumberOfOrders())
}

func TestOrderBook_cancelAllBySubaccount(t *testing.T) {
	book := getTestBook(t)
	mine := testSubaccount(t, 0)
	other := testSubaccount(t, 1)

	for i := uint64(0); i < 3; i++ {
		_, err := book.SubmitOrder(limitOrder(mine, types.SideBuy, 90+i, 5))
		require.NoError(t, err)
	}
	_, err := book.SubmitOrder(limitOrder(other, types.SideBuy, 95, 5))
	require.NoError(t, err)

	cancelled := book.CancelAllBySubaccount(mine, types.OrderMaskAny)
	require.Len(t, cancelled, 3)
	// oldest first
	assert.True(t, cancelled[0].Seq < cancelled[1].Seq)
	assert.True(t, cancelled[1].Seq < cancelled[2].Seq)

	// the other subaccount's order still rests
	assert.EqualValues(t, 1, book.GetTotalNumberOfOrders())
}

func TestOrderBook_duplicateCidRejected(t *testing.T) {
	book := getTestBook(t)
	sub := testSubaccount(t, 0)

	o := limitOrder(sub, types.SideBuy, 90, 5)
	o.Cid = "dup"
	_, err := book.SubmitOrder(o)
	require.NoError(t, err)

	o2 := limitOrder(sub, types.SideBuy, 91, 5)
	o2.Cid = "dup"
	_, err = book.SubmitOrder(o2)
	assert.ErrorIs(t, err, types.ErrDuplicateCid)
	assert.Equal(t, types.KindConflict, types.Classify(err))

	// once the first order is gone the cid is free again
	_, err = book.CancelByOrderData(types.OrderData{
		SubaccountID: sub,
		Cid:          "dup",
	})
	require.NoError(t, err)
	o3 := limitOrder(sub, types.SideBuy, 92, 5)
	o3.Cid = "dup"
	_, err = book.SubmitOrder(o3)
	assert.NoError(t, err)
}

func TestOrderBook_indicativeTradesLeaveBookUntouched(t *testing.T) {
	book := getTestBook(t)
	maker := testSubaccount(t, 0)
	taker := testSubaccount(t, 1)

	_, err := book.SubmitOrder(limitOrder(maker, types.SideSell, 100, 5))
	require.NoError(t, err)
	_, err = book.SubmitOrder(limitOrder(maker, types.SideSell, 101, 5))
	require.NoError(t, err)

	trades := book.GetIndicativeTrades(marketOrder(taker, types.SideBuy, 8))
	require.Len(t, trades, 2)
	assert.True(t, trades[0].Price.EQUint64(100))
	assert.EqualValues(t, 5, trades[0].Size)
	assert.True(t, trades[1].Price.EQUint64(101))
	assert.EqualValues(t, 3, trades[1].Size)

	assert.EqualValues(t, 2, book.GetTotalNumberOfOrders())
	volume, err := book.GetVolumeAtPrice(types.SideSell, num.NewUint(100))
	require.NoError(t, err)
	assert.EqualValues(t, 5, volume)
}

func TestOrderBook_conditionalOrderParksUntilTriggered(t *testing.T) {
	book := getTestBook(t)
	sub := testSubaccount(t, 0)

	book.SetMarkPrice(num.NewUint(100))

	// trigger above the mark, activates when the mark rises to it
	stop := limitOrder(sub, types.SideBuy, 120, 5)
	stop.TriggerPrice = num.NewUint(110)
	conf, err := book.SubmitOrder(stop)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusTriggerPending, conf.Order.Status)
	assert.Empty(t, conf.Trades)
	assert.Equal(t, 1, book.GetPendingConditionalOrders())
	assert.EqualValues(t, 0, book.GetTotalNumberOfOrders())

	triggered := book.SetMarkPrice(num.NewUint(105))
	assert.Empty(t, triggered)

	triggered = book.SetMarkPrice(num.NewUint(110))
	require.Len(t, triggered, 1)
	assert.Equal(t, conf.Order.ID, triggered[0].ID)
	assert.Equal(t, 0, book.GetPendingConditionalOrders())
}

func TestOrderBook_conditionalTriggeredOnFallingMark(t *testing.T) {
	book := getTestBook(t)
	sub := testSubaccount(t, 0)

	book.SetMarkPrice(num.NewUint(100))

	stop := limitOrder(sub, types.SideSell, 80, 5)
	stop.TriggerPrice = num.NewUint(90)
	_, err := book.SubmitOrder(stop)
	require.NoError(t, err)

	assert.Empty(t, book.SetMarkPrice(num.NewUint(95)))
	triggered := book.SetMarkPrice(num.NewUint(90))
	require.Len(t, triggered, 1)
	assert.EqualValues(t, 5, triggered[0].Remaining)
}

func TestOrderBook_conditionalCancellable(t *testing.T) {
	book := getTestBook(t)
	sub := testSubaccount(t, 0)

	book.SetMarkPrice(num.NewUint(100))

	stop := limitOrder(sub, types.SideSell, 80, 5)
	stop.TriggerPrice = num.NewUint(90)
	stop.Cid = "stop-1"
	conf, err := book.SubmitOrder(stop)
	require.NoError(t, err)

	// a regular-only mask does not reach it
	_, err = book.CancelByOrderData(types.OrderData{
		SubaccountID: sub,
		Cid:          "stop-1",
		OrderMask:    types.OrderMaskRegular,
	})
	assert.ErrorIs(t, err, types.ErrOrderNotFound)

	cancelled, err := book.CancelOrder(conf.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 0, book.GetPendingConditionalOrders())
	assert.Empty(t, book.SetMarkPrice(num.NewUint(90)))
}

func TestOrderBook_orderHashesAreUnique(t *testing.T) {
	book := getTestBook(t)
	sub := testSubaccount(t, 0)

	seen := map[types.OrderID]bool{}
	for i := 0; i < 5; i++ {
		o := limitOrder(sub, types.SideBuy, 90, 5)
		o.Cid = fmt.Sprintf("order-%d", i)
		conf, err := book.SubmitOrder(o)
		require.NoError(t, err)
		assert.False(t, seen[conf.Order.ID])
		seen[conf.Order.ID] = true
	}
}
