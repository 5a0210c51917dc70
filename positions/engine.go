package positions

import (
	"sort"
	"sync"

	"code.meridianprotocol.io/meridian/logging"
	"code.meridianprotocol.io/meridian/types"
	"code.meridianprotocol.io/meridian/types/num"

	"github.com/pkg/errors"
)

// Collateral is the slice of the ledger the positions engine drives: margin
// locked behind a position stays reserved in the ledger, realized gains are
// credited to available, realized losses consume reserved funds.
type Collateral interface {
	Reserve(subaccount types.SubaccountID, denom string, amount *num.Uint) error
	Release(subaccount types.SubaccountID, denom string, amount *num.Uint) error
	Spend(subaccount types.SubaccountID, denom string, amount *num.Uint) error
	Deposit(subaccount types.SubaccountID, denom string, amount *num.Uint) error
}

// Engine is the position engine of one derivative market. It owns every
// position record of the market; fills and margin adjustments are the only
// ways the records change.
type Engine struct {
	marketID   types.MarketID
	quoteDenom string
	log        *logging.Logger
	Config

	cfgMu sync.Mutex

	// subaccountID -> position
	positions map[types.SubaccountID]*types.Position

	// market level cumulative funding per unit of position, positive values
	// are paid by longs. Positions settle the stretch since their entry
	// whenever they are touched.
	cumulativeFunding num.Decimal

	collateral Collateral
}

// New instantiates a position engine for one market.
func New(log *logging.Logger, config Config, marketID types.MarketID, quoteDenom string, collateral Collateral) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		marketID:          marketID,
		quoteDenom:        quoteDenom,
		log:               log,
		Config:            config,
		positions:         map[types.SubaccountID]*types.Position{},
		cumulativeFunding: num.DecimalZero(),
		collateral:        collateral,
	}
}

// ReloadConf updates the internal configuration of the position engine.
func (e *Engine) ReloadConf(cfg Config) {
	e.log.Info("reloading configuration")
	if e.log.GetLevel() != cfg.Level.Get() {
		e.log.Info("updating log level",
			logging.String("old", e.log.GetLevel().String()),
			logging.String("new", cfg.Level.String()),
		)
		e.log.SetLevel(cfg.Level.Get())
	}

	e.cfgMu.Lock()
	e.Config = cfg
	e.cfgMu.Unlock()
}

// ApplyFill updates the subaccount's position with one fill.
//
// Same-direction fills grow the position at the weighted average entry price
// and add the fill's margin. Opposite-direction fills first reduce the
// position, realizing payout (price - entry) x closed (sign by direction)
// and releasing the closed share of the position margin; when the fill
// overshoots, the position flips and reopens at the fill price for the
// remainder. A position that reaches zero quantity is deleted with its
// margin residue released.
//
// marginDelta is the share of the incoming order's margin attributable to
// this fill. The funds are already reserved in the ledger by the order flow;
// the share backing a pure reduction is released back to the subaccount.
func (e *Engine) ApplyFill(subaccount types.SubaccountID, isBuyFill bool, quantity uint64, price, marginDelta *num.Uint) (*types.Position, error) {
	if quantity == 0 || price == nil || price.IsZero() {
		return nil, types.ErrInvalidAmount
	}
	if marginDelta == nil {
		marginDelta = num.UintZero()
	}

	pos := e.positions[subaccount]
	if pos == nil {
		pos = &types.Position{
			SubaccountID:           subaccount,
			MarketID:               e.marketID,
			IsLong:                 isBuyFill,
			Quantity:               quantity,
			EntryPrice:             price.Clone(),
			Margin:                 marginDelta.Clone(),
			CumulativeFundingEntry: e.cumulativeFunding,
		}
		e.positions[subaccount] = pos
		return pos.Clone(), nil
	}

	if err := e.settleFunding(pos); err != nil {
		return nil, err
	}

	if pos.IsLong == isBuyFill {
		// same direction, weighted average entry price
		oldQty := num.NewUint(pos.Quantity)
		fillQty := num.NewUint(quantity)
		notional := num.UintZero().Mul(pos.EntryPrice, oldQty)
		notional.AddSum(num.UintZero().Mul(price, fillQty))
		totalQty := num.UintZero().Add(oldQty, fillQty)
		pos.EntryPrice = num.UintZero().Div(notional, totalQty)
		pos.Quantity += quantity
		pos.Margin.AddSum(marginDelta)
		return pos.Clone(), nil
	}

	// opposite direction, reduce first
	closed := quantity
	if pos.Quantity < closed {
		closed = pos.Quantity
	}
	remainder := quantity - closed

	// the incoming order margin splits between the closed part, which is
	// handed back, and the part opening the flipped position
	marginOpening := num.UintZero()
	marginToReturn := marginDelta.Clone()
	if remainder > 0 && quantity > 0 {
		marginOpening = num.UintZero().Div(
			num.UintZero().Mul(marginDelta, num.NewUint(remainder)),
			num.NewUint(quantity))
		marginToReturn.Sub(marginDelta, marginOpening)
	}
	if !marginToReturn.IsZero() {
		if err := e.collateral.Release(subaccount, e.quoteDenom, marginToReturn); err != nil {
			return nil, err
		}
	}

	if err := e.reduce(pos, closed, price); err != nil {
		return nil, err
	}

	if pos.Quantity == 0 {
		// margin residue from truncation goes back to the subaccount
		if !pos.Margin.IsZero() {
			if err := e.collateral.Release(subaccount, e.quoteDenom, pos.Margin); err != nil {
				return nil, err
			}
		}
		delete(e.positions, subaccount)

		if remainder == 0 {
			return nil, nil
		}
		flipped := &types.Position{
			SubaccountID:           subaccount,
			MarketID:               e.marketID,
			IsLong:                 isBuyFill,
			Quantity:               remainder,
			EntryPrice:             price.Clone(),
			Margin:                 marginOpening,
			CumulativeFundingEntry: e.cumulativeFunding,
		}
		e.positions[subaccount] = flipped
		return flipped.Clone(), nil
	}

	return pos.Clone(), nil
}

// reduce closes the given quantity of the position at the given price,
// realizing PnL and releasing the closed share of the margin.
func (e *Engine) reduce(pos *types.Position, closed uint64, price *num.Uint) error {
	closedQty := num.NewUint(closed)

	// payout = (price - entry) x closed, sign by direction
	diff, neg := num.UintZero().Delta(price, pos.EntryPrice)
	payout := num.UintZero().Mul(diff, closedQty)
	profit := (pos.IsLong && !neg) || (!pos.IsLong && neg)

	// margin released pro-rata by closed quantity, truncated toward zero
	marginShare := num.UintZero().Div(
		num.UintZero().Mul(pos.Margin, closedQty),
		num.NewUint(pos.Quantity))

	sub := pos.SubaccountID
	if profit {
		if !marginShare.IsZero() {
			if err := e.collateral.Release(sub, e.quoteDenom, marginShare); err != nil {
				return err
			}
		}
		if !payout.IsZero() {
			if err := e.collateral.Deposit(sub, e.quoteDenom, payout); err != nil {
				return err
			}
		}
	} else {
		// losses are taken from the released margin share, the rest of the
		// share goes back to the subaccount
		loss := num.Min(payout, marginShare)
		if !loss.IsZero() {
			if err := e.collateral.Spend(sub, e.quoteDenom, loss); err != nil {
				return err
			}
		}
		left := num.UintZero().Sub(marginShare, loss)
		if !left.IsZero() {
			if err := e.collateral.Release(sub, e.quoteDenom, left); err != nil {
				return err
			}
		}
	}

	pos.Quantity -= closed
	pos.Margin.Sub(pos.Margin, marginShare)
	return nil
}

// IncreaseMargin adds margin to the subaccount's position, reserving the
// amount from the source subaccount's available balance.
func (e *Engine) IncreaseMargin(subaccount, source types.SubaccountID, amount *num.Uint) error {
	if amount == nil || amount.IsZero() {
		return types.ErrInvalidAmount
	}
	pos := e.positions[subaccount]
	if pos == nil {
		return errors.Wrapf(types.ErrPositionNotFound, "%s in market %s", subaccount, e.marketID)
	}
	if err := e.settleFunding(pos); err != nil {
		return err
	}
	if err := e.collateral.Reserve(source, e.quoteDenom, amount); err != nil {
		return err
	}
	if source != subaccount {
		// the lock moves with the position owner
		if err := e.collateral.Spend(source, e.quoteDenom, amount); err != nil {
			return err
		}
		if err := e.collateral.Deposit(subaccount, e.quoteDenom, amount); err != nil {
			return err
		}
		if err := e.collateral.Reserve(subaccount, e.quoteDenom, amount); err != nil {
			return err
		}
	}
	pos.Margin.AddSum(amount)
	return nil
}

// DecreaseMargin removes margin from the subaccount's position, crediting
// the available balance of the destination subaccount.
func (e *Engine) DecreaseMargin(subaccount, destination types.SubaccountID, amount *num.Uint) error {
	if amount == nil || amount.IsZero() {
		return types.ErrInvalidAmount
	}
	pos := e.positions[subaccount]
	if pos == nil {
		return errors.Wrapf(types.ErrPositionNotFound, "%s in market %s", subaccount, e.marketID)
	}
	if err := e.settleFunding(pos); err != nil {
		return err
	}
	if pos.Margin.LT(amount) {
		return errors.Wrapf(types.ErrMarginUnderflow,
			"decrease %s exceeds margin %s", amount, pos.Margin)
	}
	if destination == subaccount {
		if err := e.collateral.Release(subaccount, e.quoteDenom, amount); err != nil {
			return err
		}
	} else {
		if err := e.collateral.Spend(subaccount, e.quoteDenom, amount); err != nil {
			return err
		}
		if err := e.collateral.Deposit(destination, e.quoteDenom, amount); err != nil {
			return err
		}
	}
	pos.Margin.Sub(pos.Margin, amount)
	return nil
}

// UpdateFunding moves the market's cumulative funding by the given delta,
// positive values are paid by longs per unit of position.
func (e *Engine) UpdateFunding(delta num.Decimal) {
	e.cumulativeFunding = e.cumulativeFunding.Add(delta)
}

// settleFunding settles the funding accrued since the position's funding
// entry. Payments come out of the position margin, receipts go to the
// subaccount's available balance.
func (e *Engine) settleFunding(pos *types.Position) error {
	delta := e.cumulativeFunding.Sub(pos.CumulativeFundingEntry)
	if delta.IsZero() {
		pos.CumulativeFundingEntry = e.cumulativeFunding
		return nil
	}

	owed := delta.Mul(num.DecimalFromInt64(int64(pos.Quantity)))
	longPays := owed.IsPositive()
	amount, _ := num.UintFromDecimal(owed.Abs().Truncate(0))

	pays := longPays == pos.IsLong
	if !amount.IsZero() {
		if pays {
			// capped at margin, a position cannot owe more than its collateral
			payment := num.Min(amount, pos.Margin)
			if !payment.IsZero() {
				if err := e.collateral.Spend(pos.SubaccountID, e.quoteDenom, payment); err != nil {
					return err
				}
				pos.Margin.Sub(pos.Margin, payment)
			}
		} else {
			if err := e.collateral.Deposit(pos.SubaccountID, e.quoteDenom, amount); err != nil {
				return err
			}
		}
	}
	pos.CumulativeFundingEntry = e.cumulativeFunding
	return nil
}

// GetPosition returns a copy of the position for the given subaccount.
func (e *Engine) GetPosition(subaccount types.SubaccountID) (*types.Position, bool) {
	pos, ok := e.positions[subaccount]
	if !ok {
		return nil, false
	}
	return pos.Clone(), true
}

// Positions returns copies of all open positions in the market, ordered by
// subaccount ID.
func (e *Engine) Positions() []*types.Position {
	out := make([]*types.Position, 0, len(e.positions))
	for _, pos := range e.positions {
		out = append(out, pos.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubaccountID.String() < out[j].SubaccountID.String()
	})
	return out
}

// GetOpenInterest returns the sum of all long position quantities.
func (e *Engine) GetOpenInterest() uint64 {
	var oi uint64
	for _, pos := range e.positions {
		if pos.IsLong {
			oi += pos.Quantity
		}
	}
	return oi
}
