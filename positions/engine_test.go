package positions_test

import (
	"testing"

	"code.meridianprotocol.io/meridian/crypto"
	"code.meridianprotocol.io/meridian/ledger"
	"code.meridianprotocol.io/meridian/logging"
	"code.meridianprotocol.io/meridian/positions"
	"code.meridianprotocol.io/meridian/types"
	"code.meridianprotocol.io/meridian/types/num"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quoteDenom = "usdt"

type testEngine struct {
	*positions.Engine
	ledger *ledger.Engine
}

func getTestEngine(t *testing.T) *testEngine {
	t.Helper()
	log := logging.NewTestLogger()
	var marketID types.MarketID
	copy(marketID[:], crypto.Hash([]byte("perp-market")))
	l := ledger.New(log, ledger.NewDefaultConfig())
	return &testEngine{
		Engine: positions.New(log, positions.NewDefaultConfig(), marketID, quoteDenom, l),
		ledger: l,
	}
}

func testSubaccount(t *testing.T, nonce uint64) types.SubaccountID {
	t.Helper()
	owner, err := types.AddressFromString("0x727aee334987c52fa7b567b2662bdbb68614e48c")
	require.NoError(t, err)
	return types.NewSubaccountID(owner, nonce)
}

// fund puts amount into the subaccount and reserves margin from it, the way
// the order flow does before a fill reaches the position engine.
func (e *testEngine) fund(t *testing.T, sub types.SubaccountID, amount, margin uint64) {
	t.Helper()
	require.NoError(t, e.ledger.Deposit(sub, quoteDenom, num.NewUint(amount)))
	if margin > 0 {
		require.NoError(t, e.ledger.Reserve(sub, quoteDenom, num.NewUint(margin)))
	}
}

func TestPositions_openingFillCreatesPosition(t *testing.T) {
	e := getTestEngine(t)
	sub := testSubaccount(t, 0)
	e.fund(t, sub, 1000, 100)

	pos, err := e.ApplyFill(sub, true, 10, num.NewUint(100), num.NewUint(100))
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.IsLong)
	assert.EqualValues(t, 10, pos.Quantity)
	assert.True(t, pos.EntryPrice.EQUint64(100))
	assert.True(t, pos.Margin.EQUint64(100))
}

func TestPositions_sameDirectionWeightedEntry(t *testing.T) {
	e := getTestEngine(t)
	sub := testSubaccount(t, 0)
	e.fund(t, sub, 10000, 600)

	_, err := e.ApplyFill(sub, true, 10, num.NewUint(100), num.NewUint(200))
	require.NoError(t, err)
	pos, err := e.ApplyFill(sub, true, 10, num.NewUint(200), num.NewUint(400))
	require.NoError(t, err)

	assert.EqualValues(t, 20, pos.Quantity)
	assert.True(t, pos.EntryPrice.EQUint64(150), "entry price: %s", pos.EntryPrice)
	assert.True(t, pos.Margin.EQUint64(600))
}

func TestPositions_reduceRealizesProfit(t *testing.T) {
	e := getTestEngine(t)
	sub := testSubaccount(t, 0)
	e.fund(t, sub, 1000, 100)

	_, err := e.ApplyFill(sub, true, 10, num.NewUint(100), num.NewUint(100))
	require.NoError(t, err)

	// close the whole long at 110: payout (110-100)x10 = 100, margin back
	pos, err := e.ApplyFill(sub, false, 10, num.NewUint(110), num.UintZero())
	require.NoError(t, err)
	assert.Nil(t, pos)

	_, ok := e.GetPosition(sub)
	assert.False(t, ok)

	d, err := e.ledger.GetDeposit(sub, quoteDenom)
	require.NoError(t, err)
	assert.True(t, d.Available.EQUint64(1100), "available: %s", d.Available)
	assert.True(t, d.Total.EQUint64(1100))
}

func TestPositions_reduceRealizesLossFromMargin(t *testing.T) {
	e := getTestEngine(t)
	sub := testSubaccount(t, 0)
	e.fund(t, sub, 1000, 100)

	_, err := e.ApplyFill(sub, true, 10, num.NewUint(100), num.NewUint(100))
	require.NoError(t, err)

	// close at 95: loss (100-95)x10 = 50, taken from the released margin
	_, err = e.ApplyFill(sub, false, 10, num.NewUint(95), num.UintZero())
	require.NoError(t, err)

	d, err := e.ledger.GetDeposit(sub, quoteDenom)
	require.NoError(t, err)
	assert.True(t, d.Available.EQUint64(950), "available: %s", d.Available)
	assert.True(t, d.Total.EQUint64(950))
}

func TestPositions_partialReduceKeepsEntryPrice(t *testing.T) {
	e := getTestEngine(t)
	sub := testSubaccount(t, 0)
	e.fund(t, sub, 1000, 100)

	_, err := e.ApplyFill(sub, true, 10, num.NewUint(100), num.NewUint(100))
	require.NoError(t, err)

	pos, err := e.ApplyFill(sub, false, 4, num.NewUint(110), num.UintZero())
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.IsLong)
	assert.EqualValues(t, 6, pos.Quantity)
	assert.True(t, pos.EntryPrice.EQUint64(100))
	// 40% of margin released with the closed quantity
	assert.True(t, pos.Margin.EQUint64(60), "margin: %s", pos.Margin)
}

func TestPositions_overshootFlipsDirection(t *testing.T) {
	e := getTestEngine(t)
	sub := testSubaccount(t, 0)
	e.fund(t, sub, 1000, 196)

	_, err := e.ApplyFill(sub, true, 10, num.NewUint(100), num.NewUint(100))
	require.NoError(t, err)

	// sell 16 against a 10 long: 10 close, 6 open short at the fill price.
	// incoming fill margin 96 splits 6/16 opening = 36, rest released.
	pos, err := e.ApplyFill(sub, false, 16, num.NewUint(100), num.NewUint(96))
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.False(t, pos.IsLong)
	assert.EqualValues(t, 6, pos.Quantity)
	assert.True(t, pos.EntryPrice.EQUint64(100))
	assert.True(t, pos.Margin.EQUint64(36), "margin: %s", pos.Margin)
}

func TestPositions_increaseAndDecreaseMargin(t *testing.T) {
	e := getTestEngine(t)
	sub := testSubaccount(t, 0)
	e.fund(t, sub, 1000, 100)

	_, err := e.ApplyFill(sub, true, 10, num.NewUint(100), num.NewUint(100))
	require.NoError(t, err)

	require.NoError(t, e.IncreaseMargin(sub, sub, num.NewUint(50)))
	pos, ok := e.GetPosition(sub)
	require.True(t, ok)
	assert.True(t, pos.Margin.EQUint64(150))

	d, _ := e.ledger.GetDeposit(sub, quoteDenom)
	assert.True(t, d.Available.EQUint64(850))
	assert.True(t, d.Reserved().EQUint64(150))

	require.NoError(t, e.DecreaseMargin(sub, sub, num.NewUint(150)))
	pos, _ = e.GetPosition(sub)
	assert.True(t, pos.Margin.IsZero())
	d, _ = e.ledger.GetDeposit(sub, quoteDenom)
	assert.True(t, d.Available.EQUint64(1000))
}

func TestPositions_decreaseMarginUnderflow(t *testing.T) {
	e := getTestEngine(t)
	sub := testSubaccount(t, 0)
	e.fund(t, sub, 1000, 100)

	_, err := e.ApplyFill(sub, true, 10, num.NewUint(100), num.NewUint(100))
	require.NoError(t, err)

	err = e.DecreaseMargin(sub, sub, num.NewUint(101))
	assert.ErrorIs(t, err, types.ErrMarginUnderflow)
	assert.Equal(t, types.KindInsufficientResource, types.Classify(err))
}

func TestPositions_marginAdjustOnMissingPosition(t *testing.T) {
	e := getTestEngine(t)
	sub := testSubaccount(t, 0)
	e.fund(t, sub, 1000, 0)

	err := e.IncreaseMargin(sub, sub, num.NewUint(10))
	assert.ErrorIs(t, err, types.ErrPositionNotFound)
}

func TestPositions_fundingPaidByLongs(t *testing.T) {
	e := getTestEngine(t)
	sub := testSubaccount(t, 0)
	e.fund(t, sub, 1000, 100)

	_, err := e.ApplyFill(sub, true, 10, num.NewUint(100), num.NewUint(100))
	require.NoError(t, err)

	// 2 per unit accrues since entry, the long pays 20 out of margin
	e.UpdateFunding(num.DecimalFromInt64(2))
	require.NoError(t, e.IncreaseMargin(sub, sub, num.NewUint(10)))

	pos, ok := e.GetPosition(sub)
	require.True(t, ok)
	// 100 - 20 funding + 10 increase
	assert.True(t, pos.Margin.EQUint64(90), "margin: %s", pos.Margin)

	d, _ := e.ledger.GetDeposit(sub, quoteDenom)
	assert.True(t, d.Total.EQUint64(980))
}

func TestPositions_positionsSorted(t *testing.T) {
	e := getTestEngine(t)
	a := testSubaccount(t, 1)
	b := testSubaccount(t, 2)
	e.fund(t, a, 1000, 100)
	e.fund(t, b, 1000, 100)

	_, err := e.ApplyFill(b, false, 5, num.NewUint(100), num.NewUint(50))
	require.NoError(t, err)
	_, err = e.ApplyFill(a, true, 5, num.NewUint(100), num.NewUint(50))
	require.NoError(t, err)

	all := e.Positions()
	require.Len(t, all, 2)
	assert.Equal(t, a, all[0].SubaccountID)
	assert.Equal(t, b, all[1].SubaccountID)
	assert.EqualValues(t, 5, e.GetOpenInterest())
}
