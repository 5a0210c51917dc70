package execution

import (
	"bytes"
	"sync"

	"code.meridianprotocol.io/meridian/ledger"
	"code.meridianprotocol.io/meridian/logging"
	"code.meridianprotocol.io/meridian/types"
	"code.meridianprotocol.io/meridian/types/num"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Engine is the single entry point of the exchange. It owns the shared
// ledger and one Market per listed market, and serialises every state
// changing operation behind one mutex, the pipeline applies operations one
// at a time.
type Engine struct {
	log *logging.Logger
	Config

	cfgMu sync.Mutex
	mu    sync.Mutex

	ledger  *ledger.Engine
	markets map[types.MarketID]*Market
}

// NewEngine takes a Config and returns a new top level execution engine.
func NewEngine(log *logging.Logger, config Config) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		log:     log,
		Config:  config,
		ledger:  ledger.New(log, config.Ledger),
		markets: map[types.MarketID]*Market{},
	}
}

// ReloadConf updates the internal configuration of the execution engine and
// its dependencies.
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

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ledger.ReloadConf(cfg.Ledger)
	for _, m := range e.markets {
		m.ReloadConf(cfg)
	}
}

// AddMarket lists a new market. The definition is validated here, the fee
// rates by the fee engine it instantiates.
func (e *Engine) AddMarket(mkt *types.Market) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mkt.ID.IsZero() {
		return errors.Wrap(types.ErrInvalidMarketID, "market id not set")
	}
	if _, ok := e.markets[mkt.ID]; ok {
		return errors.Wrapf(types.ErrMarketExists, "%s", mkt.ID)
	}
	if mkt.QuoteDenom == "" {
		return errors.Wrap(types.ErrInvalidMarketID, "quote denom not set")
	}
	switch mkt.Class {
	case types.MarketClassSpot:
		if mkt.BaseDenom == "" {
			return errors.Wrap(types.ErrInvalidMarketID, "base denom not set")
		}
	case types.MarketClassDerivative:
		if mkt.InitialMarginRatio.IsNegative() {
			return errors.Wrap(types.ErrInvalidMarketID, "negative initial margin ratio")
		}
	default:
		return errors.Wrap(types.ErrInvalidMarketID, "market class not set")
	}

	cpy := *mkt
	m, err := NewMarket(e.log, e.Config, &cpy, e.ledger)
	if err != nil {
		return err
	}
	e.markets[mkt.ID] = m

	e.log.Info("market listed",
		logging.MarketID(mkt.ID),
		logging.String("class", mkt.Class.String()))
	return nil
}

// Deposit credits a subaccount with funds arriving from outside the engine.
func (e *Engine) Deposit(sub types.SubaccountID, denom string, amount *num.Uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sub.IsZero() {
		return types.ErrInvalidSubaccountID
	}
	return e.ledger.Deposit(sub, denom, amount)
}

// Withdraw removes available funds from a subaccount.
func (e *Engine) Withdraw(sub types.SubaccountID, denom string, amount *num.Uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Withdraw(sub, denom, amount)
}

// SubaccountTransfer moves funds between two subaccounts of the same owner.
func (e *Engine) SubaccountTransfer(from, to types.SubaccountID, denom string, amount *num.Uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if from.Owner() != to.Owner() {
		return errors.Wrap(types.ErrInvalidSubaccountID,
			"subaccount transfer across owners")
	}
	if from == to {
		return errors.Wrap(types.ErrInvalidSubaccountID, "transfer to self")
	}
	return e.ledger.Transfer(from, to, denom, amount)
}

// ExternalTransfer moves funds from one of the sender's subaccounts to any
// subaccount, including another owner's.
func (e *Engine) ExternalTransfer(from, to types.SubaccountID, denom string, amount *num.Uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if to.IsZero() {
		return types.ErrInvalidSubaccountID
	}
	if from == to {
		return errors.Wrap(types.ErrInvalidSubaccountID, "transfer to self")
	}
	return e.ledger.Transfer(from, to, denom, amount)
}

// SubmitOrder routes an order submission to its market.
func (e *Engine) SubmitOrder(sub types.OrderSubmission) (*types.OrderConfirmation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(sub.MarketID)
	if err != nil {
		return nil, err
	}
	return m.SubmitOrder(sub)
}

// submitClassed is the class checked submission path the batch update uses,
// a spot creation cannot land on a derivative market or the other way round.
func (e *Engine) submitClassed(class types.MarketClass, sub types.OrderSubmission) (*types.OrderConfirmation, error) {
	m, err := e.market(sub.MarketID)
	if err != nil {
		return nil, err
	}
	if m.mkt.Class != class {
		return nil, errors.Wrapf(types.ErrInvalidMarketID,
			"market %s is not a %s market", sub.MarketID, class)
	}
	return m.SubmitOrder(sub)
}

// CancelOrder cancels one order by hash on the given market.
func (e *Engine) CancelOrder(marketID types.MarketID, orderID types.OrderID) (*types.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	return m.CancelOrder(orderID)
}

// CancelByOrderData cancels one order resolved by hash or by cid and mask.
func (e *Engine) CancelByOrderData(d types.OrderData) (*types.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(d.MarketID)
	if err != nil {
		return nil, err
	}
	return m.CancelByOrderData(d)
}

// CancelAllBySubaccount cancels every order of the subaccount on a market
// that matches the mask.
func (e *Engine) CancelAllBySubaccount(marketID types.MarketID, sub types.SubaccountID, mask types.OrderMask) (*types.OrderCancellation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	return &types.OrderCancellation{Orders: m.CancelAllBySubaccount(sub, mask)}, nil
}

// SetMarkPrice records a new mark price on a market and places whatever
// conditional orders it triggered.
func (e *Engine) SetMarkPrice(marketID types.MarketID, price *num.Uint) ([]*types.OrderConfirmation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if price == nil || price.IsZero() {
		return nil, errors.Wrap(types.ErrInvalidPrice, "mark price not set")
	}
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	return m.SetMarkPrice(price), nil
}

// UpdateFunding accrues a funding step on a derivative market, positive
// values are paid by longs per unit of position.
func (e *Engine) UpdateFunding(marketID types.MarketID, delta num.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	return m.UpdateFunding(delta)
}

// IncreasePositionMargin tops up the margin of an open position from the
// source subaccount's available balance.
func (e *Engine) IncreasePositionMargin(marketID types.MarketID, sub, source types.SubaccountID, amount *num.Uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	return m.IncreasePositionMargin(sub, source, amount)
}

// DecreasePositionMargin moves position margin back to the destination
// subaccount.
func (e *Engine) DecreasePositionMargin(marketID types.MarketID, sub, destination types.SubaccountID, amount *num.Uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	return m.DecreasePositionMargin(sub, destination, amount)
}

// GetDeposit returns the deposit record of a subaccount for one denom.
func (e *Engine) GetDeposit(sub types.SubaccountID, denom string) (*types.Deposit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.GetDeposit(sub, denom)
}

// GetDeposits returns every deposit record of a subaccount, ordered by denom.
func (e *Engine) GetDeposits(sub types.SubaccountID) []*types.DepositBalance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.GetDeposits(sub)
}

// GetMarket returns the definition of a listed market.
func (e *Engine) GetMarket(marketID types.MarketID) (types.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(marketID)
	if err != nil {
		return types.Market{}, err
	}
	return m.Definition(), nil
}

// ListMarkets returns the definition of every listed market, ordered by ID.
func (e *Engine) ListMarkets() []types.Market {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Market, 0, len(e.markets))
	for _, m := range maps.Values(e.markets) {
		out = append(out, m.Definition())
	}
	slices.SortFunc(out, func(a, b types.Market) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return out
}

// GetPosition returns the open position of a subaccount on a market.
func (e *Engine) GetPosition(marketID types.MarketID, sub types.SubaccountID) (*types.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	pos, ok := m.GetPosition(sub)
	if !ok {
		return nil, errors.Wrapf(types.ErrPositionNotFound, "%s on %s", sub, marketID)
	}
	return pos, nil
}

// SubaccountPositions returns every open position of the subaccount across
// all listed markets, ordered by market ID.
func (e *Engine) SubaccountPositions(sub types.SubaccountID) []*types.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []*types.Position{}
	for _, m := range e.markets {
		if pos, ok := m.GetPosition(sub); ok {
			out = append(out, pos)
		}
	}
	slices.SortFunc(out, func(a, b *types.Position) int {
		return bytes.Compare(a.MarketID[:], b.MarketID[:])
	})
	return out
}

// GetOrdersByHashes returns copies of the live orders among the given
// hashes on a market.
func (e *Engine) GetOrdersByHashes(marketID types.MarketID, ids []types.OrderID) ([]*types.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	return m.GetOrdersByHashes(ids), nil
}

// BestBid returns the best bid price and volume on a market.
func (e *Engine) BestBid(marketID types.MarketID) (*num.Uint, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(marketID)
	if err != nil {
		return nil, 0, err
	}
	return m.BestBid()
}

// BestOffer returns the best offer price and volume on a market.
func (e *Engine) BestOffer(marketID types.MarketID) (*num.Uint, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.market(marketID)
	if err != nil {
		return nil, 0, err
	}
	return m.BestOffer()
}

func (e *Engine) market(id types.MarketID) (*Market, error) {
	m, ok := e.markets[id]
	if !ok {
		return nil, errors.Wrapf(types.ErrMarketNotFound, "%s", id)
	}
	return m, nil
}
