package fee

import (
	"sync"

	"code.meridianprotocol.io/meridian/logging"
	"code.meridianprotocol.io/meridian/types"
	"code.meridianprotocol.io/meridian/types/num"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidFeeFactor signals a fee rate that is negative or not below one.
	ErrInvalidFeeFactor = errors.New("fee factor must be in [0, 1)")
	// ErrMakerRateAboveTakerRate signals a maker rebate the taker fee cannot fund.
	ErrMakerRateAboveTakerRate = errors.New("maker fee rate cannot exceed the taker fee rate")
)

// Fees is the split of one trade's fee. The taker pays TakerFee out of
// their proceeds, the maker gets MakerRebate back and the fee recipient
// keeps the difference. TakerFee = MakerRebate + RecipientFee always.
type Fees struct {
	TakerFee     *num.Uint
	MakerRebate  *num.Uint
	RecipientFee *num.Uint
}

// Engine computes the fee split for the trades of one market. The rates are
// fixed at market creation, the taker rate bounds the maker rebate so the
// split never mints value.
type Engine struct {
	log *logging.Logger
	Config

	cfgMu     sync.Mutex
	marketID  types.MarketID
	takerRate num.Decimal
	makerRate num.Decimal
}

// New instantiates a fee engine for a market with the given rates.
func New(log *logging.Logger, config Config, marketID types.MarketID, takerRate, makerRate num.Decimal) (*Engine, error) {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	one := num.DecimalFromInt64(1)
	if takerRate.IsNegative() || takerRate.GreaterThanOrEqual(one) {
		return nil, errors.Wrapf(ErrInvalidFeeFactor, "taker rate %s", takerRate)
	}
	if makerRate.IsNegative() || makerRate.GreaterThanOrEqual(one) {
		return nil, errors.Wrapf(ErrInvalidFeeFactor, "maker rate %s", makerRate)
	}
	if makerRate.GreaterThan(takerRate) {
		return nil, ErrMakerRateAboveTakerRate
	}

	return &Engine{
		log:       log,
		Config:    config,
		marketID:  marketID,
		takerRate: takerRate,
		makerRate: makerRate,
	}, nil
}

// ReloadConf updates the internal configuration of the fee engine.
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

// CalculateForTrade returns the fee split for one trade, each leg truncated
// toward zero. Truncating the rebate as well keeps it below the taker fee.
func (e *Engine) CalculateForTrade(t *types.Trade) *Fees {
	notional := num.DecimalFromUint(t.Notional())
	takerFee, _ := num.UintFromDecimal(notional.Mul(e.takerRate))
	makerRebate, _ := num.UintFromDecimal(notional.Mul(e.makerRate))
	return &Fees{
		TakerFee:     takerFee,
		MakerRebate:  makerRebate,
		RecipientFee: num.UintZero().Sub(takerFee, makerRebate),
	}
}

// TakerFeeOn returns the taker fee due on a notional amount, truncated
// toward zero.
func (e *Engine) TakerFeeOn(notional *num.Uint) *num.Uint {
	fee, _ := num.UintFromDecimal(num.DecimalFromUint(notional).Mul(e.takerRate))
	return fee
}
