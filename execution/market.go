package execution

import (
	"code.meridianprotocol.io/meridian/fee"
	"code.meridianprotocol.io/meridian/ledger"
	"code.meridianprotocol.io/meridian/logging"
	"code.meridianprotocol.io/meridian/matching"
	"code.meridianprotocol.io/meridian/metrics"
	"code.meridianprotocol.io/meridian/positions"
	"code.meridianprotocol.io/meridian/types"
	"code.meridianprotocol.io/meridian/types/num"

	"github.com/pkg/errors"
)

// Market drives one market end to end: it sizes and takes the worst case
// reservation for an incoming order, runs it through the matching core and
// settles the resulting trades against the ledger, and for derivative
// markets the position book. Reservations are exact: the indicative fills
// computed up front are the fills the book produces, so settlement never
// comes up short.
type Market struct {
	log *logging.Logger

	mkt       *types.Market
	ledger    *ledger.Engine
	book      *matching.OrderBook
	fees      *fee.Engine
	positions *positions.Engine
}

// reservation is one funds lock taken before an order enters the book.
type reservation struct {
	denom  string
	amount *num.Uint
}

// NewMarket instantiates a market from its definition, wiring the matching,
// fee and, for derivatives, position engines to the shared ledger.
func NewMarket(log *logging.Logger, cfg Config, mkt *types.Market, ldgr *ledger.Engine) (*Market, error) {
	fees, err := fee.New(log, cfg.Fee, mkt.ID, mkt.TakerFeeRate, mkt.MakerFeeRate)
	if err != nil {
		return nil, err
	}

	m := &Market{
		log:    log,
		mkt:    mkt,
		ledger: ldgr,
		book:   matching.NewOrderBook(log, cfg.Matching, mkt.ID),
		fees:   fees,
	}
	if mkt.IsDerivative() {
		m.positions = positions.New(log, cfg.Positions, mkt.ID, mkt.QuoteDenom, ldgr)
	}
	return m, nil
}

// ReloadConf updates the configuration of the engines the market drives.
func (m *Market) ReloadConf(cfg Config) {
	m.book.ReloadConf(cfg.Matching)
	m.fees.ReloadConf(cfg.Fee)
	if m.positions != nil {
		m.positions.ReloadConf(cfg.Positions)
	}
}

// Definition returns a copy of the market definition.
func (m *Market) Definition() types.Market {
	return *m.mkt
}

// SubmitOrder runs an order submission through the market. Conditional
// orders park without any reservation, their funds are checked when the
// trigger fires.
func (m *Market) SubmitOrder(sub types.OrderSubmission) (*types.OrderConfirmation, error) {
	o := sub.IntoOrder()
	if o.IsConditional() {
		if m.mkt.IsDerivative() {
			if err := m.checkOrderMargin(o, nil); err != nil {
				o.Status = types.OrderStatusRejected
				return nil, err
			}
		}
		return m.book.SubmitOrder(o)
	}
	return m.processOrder(o)
}

// processOrder reserves, uncrosses and settles a regular order.
func (m *Market) processOrder(o *types.Order) (*types.OrderConfirmation, error) {
	timer := metrics.NewTimeCounter(m.mkt.ID.String(), "execution", "Market.processOrder")
	defer timer.EngineTimeCounterAdd()

	indicative := m.book.GetIndicativeTrades(o)

	if m.mkt.IsDerivative() {
		if err := m.checkOrderMargin(o, indicative); err != nil {
			o.Status = types.OrderStatusRejected
			return nil, err
		}
	}

	held := m.reservationsFor(o, indicative)
	if err := m.reserve(o.SubaccountID, held); err != nil {
		o.Status = types.OrderStatusRejected
		return nil, err
	}

	conf, err := m.book.SubmitOrder(o)
	if err != nil {
		m.releaseAll(o.SubaccountID, held)
		return nil, err
	}

	m.settleTrades(conf)
	return conf, nil
}

// checkOrderMargin enforces the initial margin requirement on derivative
// orders. Market orders are checked against their indicative fills, the
// remainder never rests.
func (m *Market) checkOrderMargin(o *types.Order, indicative []*types.Trade) error {
	if o.Margin == nil || o.Margin.IsZero() {
		return types.ErrInvalidMargin
	}
	notional := num.UintZero()
	if o.Type == types.OrderTypeLimit {
		notional.Mul(o.Price, num.NewUint(o.Size))
	} else {
		for _, t := range indicative {
			notional.AddSum(t.Notional())
		}
	}
	required, _ := num.UintFromDecimal(
		num.DecimalFromUint(notional).Mul(m.mkt.InitialMarginRatio))
	if o.Margin.LT(required) {
		return errors.Wrapf(types.ErrInsufficientMargin,
			"margin %s below required %s", o.Margin, required)
	}
	return nil
}

// reservationsFor sizes the worst case funds lock for an order. The fills
// and fees are computed from the indicative trades per trade, matching
// exactly what settlement will consume; a resting limit remainder holds its
// full notional, or for derivatives the order margin.
func (m *Market) reservationsFor(o *types.Order, indicative []*types.Trade) []reservation {
	fillNotional := num.UintZero()
	feeSum := num.UintZero()
	var fillSize uint64
	for _, t := range indicative {
		fillNotional.AddSum(t.Notional())
		feeSum.AddSum(m.fees.CalculateForTrade(t).TakerFee)
		fillSize += t.Size
	}

	if m.mkt.IsDerivative() {
		amount := o.Margin.Clone()
		amount.AddSum(feeSum)
		return []reservation{{m.mkt.QuoteDenom, amount}}
	}

	if o.Side == types.SideBuy {
		// fills cost their notional plus the taker fee, the resting
		// remainder holds its notional at the limit price
		amount := num.UintZero().Add(fillNotional, feeSum)
		if rest := o.Size - fillSize; o.Type == types.OrderTypeLimit && rest > 0 {
			amount.AddSum(num.UintZero().Mul(o.Price, num.NewUint(rest)))
		}
		return []reservation{{m.mkt.QuoteDenom, amount}}
	}

	// a sell delivers base, the taker fee comes out of the quote proceeds
	size := fillSize
	if o.Type == types.OrderTypeLimit {
		size = o.Size
	}
	return []reservation{{m.mkt.BaseDenom, num.NewUint(size)}}
}

func (m *Market) reserve(sub types.SubaccountID, held []reservation) error {
	for i, r := range held {
		if r.amount.IsZero() {
			continue
		}
		if err := m.ledger.Reserve(sub, r.denom, r.amount); err != nil {
			m.releaseAll(sub, held[:i])
			return err
		}
	}
	return nil
}

func (m *Market) releaseAll(sub types.SubaccountID, held []reservation) {
	for _, r := range held {
		if r.amount.IsZero() {
			continue
		}
		if err := m.ledger.Release(sub, r.denom, r.amount); err != nil {
			m.log.Panic("failed to release held funds",
				logging.SubaccountID(sub), logging.Error(err))
		}
	}
}

// settleTrades applies the fills of one submission to the ledger and the
// position book. The funds were reserved up front, a failing movement here
// means the engine state is inconsistent.
func (m *Market) settleTrades(conf *types.OrderConfirmation) {
	agg := conf.Order
	aggRemaining := agg.Size

	for i, trade := range conf.Trades {
		pass := conf.ImpactedOrders[i]
		fees := m.fees.CalculateForTrade(trade)
		trade.Fee = fees.TakerFee
		trade.FeeRecipient = agg.FeeRecipient

		if m.mkt.IsDerivative() {
			m.settleDerivativeFill(agg, pass, trade, fees, aggRemaining)
		} else {
			m.settleSpotFill(agg, pass, trade, fees)
		}
		m.payFeeRecipient(agg.FeeRecipient, fees.RecipientFee)

		aggRemaining -= trade.Size
	}

	// a cancelled market order remainder gives its margin back
	if m.mkt.IsDerivative() && agg.IsFinished() && !agg.Margin.IsZero() {
		m.mustRelease(agg.SubaccountID, m.mkt.QuoteDenom, agg.Margin)
		agg.Margin = num.UintZero()
	}
}

// settleSpotFill swaps base against quote for one trade. The aggressor pays
// the taker fee, a buy on top of the notional, a sell out of the proceeds;
// the maker rebate goes back to the passive side in quote.
func (m *Market) settleSpotFill(agg, pass *types.Order, trade *types.Trade, fees *fee.Fees) {
	notional := trade.Notional()
	size := num.NewUint(trade.Size)

	if agg.Side == types.SideBuy {
		m.mustSpend(agg.SubaccountID, m.mkt.QuoteDenom, num.UintZero().Add(notional, fees.TakerFee))
		m.mustDeposit(agg.SubaccountID, m.mkt.BaseDenom, size)

		m.mustSpend(pass.SubaccountID, m.mkt.BaseDenom, size)
		m.mustDeposit(pass.SubaccountID, m.mkt.QuoteDenom, num.UintZero().Add(notional, fees.MakerRebate))
		return
	}

	m.mustSpend(agg.SubaccountID, m.mkt.BaseDenom, size)
	m.mustDeposit(agg.SubaccountID, m.mkt.QuoteDenom, num.UintZero().Sub(notional, fees.TakerFee))

	m.mustSpend(pass.SubaccountID, m.mkt.QuoteDenom, notional)
	m.mustDeposit(pass.SubaccountID, m.mkt.BaseDenom, size)
	if !fees.MakerRebate.IsZero() {
		m.mustDeposit(pass.SubaccountID, m.mkt.QuoteDenom, fees.MakerRebate)
	}
}

// settleDerivativeFill moves each side's pro rata margin share into its
// position and pays the taker fee out of the reserved quote.
func (m *Market) settleDerivativeFill(agg, pass *types.Order, trade *types.Trade, fees *fee.Fees, aggRemaining uint64) {
	aggShare := marginShare(agg.Margin, trade.Size, aggRemaining)
	passShare := marginShare(pass.Margin, trade.Size, pass.Remaining+trade.Size)
	agg.Margin.Sub(agg.Margin, aggShare)
	pass.Margin.Sub(pass.Margin, passShare)

	buyerShare, sellerShare := aggShare, passShare
	if agg.Side == types.SideSell {
		buyerShare, sellerShare = passShare, aggShare
	}

	if _, err := m.positions.ApplyFill(trade.Buyer, true, trade.Size, trade.Price, buyerShare); err != nil {
		m.log.Panic("failed to apply buy fill", logging.Trade(trade), logging.Error(err))
	}
	if _, err := m.positions.ApplyFill(trade.Seller, false, trade.Size, trade.Price, sellerShare); err != nil {
		m.log.Panic("failed to apply sell fill", logging.Trade(trade), logging.Error(err))
	}

	if !fees.TakerFee.IsZero() {
		m.mustSpend(agg.SubaccountID, m.mkt.QuoteDenom, fees.TakerFee)
	}
	if !fees.MakerRebate.IsZero() {
		m.mustDeposit(pass.SubaccountID, m.mkt.QuoteDenom, fees.MakerRebate)
	}
}

// marginShare is the slice of the order margin backing a fill of the given
// size, proportional to the remaining quantity before the fill. The last
// fill takes the margin exactly, truncation dust never accumulates.
func marginShare(margin *num.Uint, size, remainingBefore uint64) *num.Uint {
	if size == remainingBefore {
		return margin.Clone()
	}
	share := num.UintZero().Mul(margin, num.NewUint(size))
	return share.Div(share, num.NewUint(remainingBefore))
}

// payFeeRecipient credits the fee recipient's default subaccount. With no
// recipient named the residual fee is burned.
func (m *Market) payFeeRecipient(recipient types.Address, amount *num.Uint) {
	if amount.IsZero() || recipient == (types.Address{}) {
		return
	}
	m.mustDeposit(types.NewSubaccountID(recipient, 0), m.mkt.QuoteDenom, amount)
}

// CancelOrder removes the order with the given hash and releases whatever
// it still held.
func (m *Market) CancelOrder(id types.OrderID) (*types.Order, error) {
	o, err := m.book.CancelOrder(id)
	if err != nil {
		return nil, err
	}
	m.releaseFor(o)
	return o, nil
}

// CancelByOrderData resolves the target by hash or by cid and mask, then
// cancels it.
func (m *Market) CancelByOrderData(d types.OrderData) (*types.Order, error) {
	o, err := m.book.CancelByOrderData(d)
	if err != nil {
		return nil, err
	}
	m.releaseFor(o)
	return o, nil
}

// CancelAllBySubaccount cancels every live order of the subaccount matching
// the mask and releases their holds.
func (m *Market) CancelAllBySubaccount(sub types.SubaccountID, mask types.OrderMask) []*types.Order {
	cancelled := m.book.CancelAllBySubaccount(sub, mask)
	for _, o := range cancelled {
		m.releaseFor(o)
	}
	return cancelled
}

// releaseFor gives back the funds a cancelled order still held. Parked
// conditional orders hold nothing.
func (m *Market) releaseFor(o *types.Order) {
	if o.IsConditional() {
		return
	}
	if m.mkt.IsDerivative() {
		if o.Margin != nil && !o.Margin.IsZero() {
			m.mustRelease(o.SubaccountID, m.mkt.QuoteDenom, o.Margin)
			o.Margin = num.UintZero()
		}
		return
	}
	if o.Side == types.SideBuy {
		held := num.UintZero().Mul(o.Price, num.NewUint(o.Remaining))
		m.mustRelease(o.SubaccountID, m.mkt.QuoteDenom, held)
		return
	}
	m.mustRelease(o.SubaccountID, m.mkt.BaseDenom, num.NewUint(o.Remaining))
}

// SetMarkPrice records the oracle mark price and runs every conditional
// order it triggers through the regular pipeline. Triggered orders that can
// no longer be funded are cancelled.
func (m *Market) SetMarkPrice(price *num.Uint) []*types.OrderConfirmation {
	triggered := m.book.SetMarkPrice(price)
	confs := make([]*types.OrderConfirmation, 0, len(triggered))
	for _, o := range triggered {
		o.TriggerPrice = nil
		o.Status = types.OrderStatusActive
		conf, err := m.processOrder(o)
		if err != nil {
			o.Status = types.OrderStatusCancelled
			m.log.Info("triggered order could not be placed",
				logging.Order(o), logging.Error(err))
			continue
		}
		confs = append(confs, conf)
	}
	return confs
}

// UpdateFunding accrues a funding rate step on a derivative market.
func (m *Market) UpdateFunding(delta num.Decimal) error {
	if m.positions == nil {
		return errors.Wrap(types.ErrInvalidMarketID, "funding on a spot market")
	}
	m.positions.UpdateFunding(delta)
	return nil
}

// IncreasePositionMargin tops up position margin from the source subaccount.
func (m *Market) IncreasePositionMargin(sub, source types.SubaccountID, amount *num.Uint) error {
	if m.positions == nil {
		return errors.Wrap(types.ErrInvalidMarketID, "position margin on a spot market")
	}
	return m.positions.IncreaseMargin(sub, source, amount)
}

// DecreasePositionMargin moves position margin back to the destination
// subaccount's available balance.
func (m *Market) DecreasePositionMargin(sub, destination types.SubaccountID, amount *num.Uint) error {
	if m.positions == nil {
		return errors.Wrap(types.ErrInvalidMarketID, "position margin on a spot market")
	}
	return m.positions.DecreaseMargin(sub, destination, amount)
}

// GetPosition returns the open position of a subaccount, if any.
func (m *Market) GetPosition(sub types.SubaccountID) (*types.Position, bool) {
	if m.positions == nil {
		return nil, false
	}
	return m.positions.GetPosition(sub)
}

// Positions returns all open positions of the market.
func (m *Market) Positions() []*types.Position {
	if m.positions == nil {
		return nil
	}
	return m.positions.Positions()
}

// GetOrdersByHashes returns copies of the live orders among the hashes.
func (m *Market) GetOrdersByHashes(ids []types.OrderID) []*types.Order {
	return m.book.GetOrdersByHashes(ids)
}

// BestBid returns the best bid price and volume.
func (m *Market) BestBid() (*num.Uint, uint64, error) {
	return m.book.BestBid()
}

// BestOffer returns the best offer price and volume.
func (m *Market) BestOffer() (*num.Uint, uint64, error) {
	return m.book.BestOffer()
}

// LastTradedPrice returns the most recent trade price, nil before any trade.
func (m *Market) LastTradedPrice() *num.Uint {
	return m.book.LastTradedPrice()
}

func (m *Market) mustSpend(sub types.SubaccountID, denom string, amount *num.Uint) {
	if amount.IsZero() {
		return
	}
	if err := m.ledger.Spend(sub, denom, amount); err != nil {
		m.log.Panic("failed to spend reserved funds",
			logging.SubaccountID(sub), logging.String("denom", denom),
			logging.BigUint("amount", amount), logging.Error(err))
	}
}

func (m *Market) mustDeposit(sub types.SubaccountID, denom string, amount *num.Uint) {
	if amount.IsZero() {
		return
	}
	if err := m.ledger.Deposit(sub, denom, amount); err != nil {
		m.log.Panic("failed to credit fill proceeds",
			logging.SubaccountID(sub), logging.String("denom", denom),
			logging.BigUint("amount", amount), logging.Error(err))
	}
}

func (m *Market) mustRelease(sub types.SubaccountID, denom string, amount *num.Uint) {
	if err := m.ledger.Release(sub, denom, amount); err != nil {
		m.log.Panic("failed to release held funds",
			logging.SubaccountID(sub), logging.String("denom", denom),
			logging.BigUint("amount", amount), logging.Error(err))
	}
}
