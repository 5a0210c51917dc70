package ledger

import (
	"sort"
	"sync"

	"code.meridianprotocol.io/meridian/logging"
	"code.meridianprotocol.io/meridian/types"
	"code.meridianprotocol.io/meridian/types/num"

	"github.com/pkg/errors"
)

type depositKey struct {
	subaccount types.SubaccountID
	denom      string
}

// Engine owns every deposit record in the exchange, keyed by
// (subaccount, denom). All balance movements go through it; no other
// component writes balances directly.
//
// Each record splits into an available part, spendable right now, and a
// reserved part locked behind resting orders or position margin. The
// invariant available <= total holds after every operation; every operation
// validates fully before it mutates anything.
type Engine struct {
	log *logging.Logger
	Config

	cfgMu    sync.Mutex
	deposits map[depositKey]*types.Deposit
}

// New instantiates a new ledger engine.
func New(log *logging.Logger, config Config) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		log:      log,
		Config:   config,
		deposits: map[depositKey]*types.Deposit{},
	}
}

// ReloadConf updates the internal configuration of the ledger engine.
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

// Deposit credits the subaccount with the given amount, increasing both the
// available and total balance. The deposit record is created when absent.
func (e *Engine) Deposit(subaccount types.SubaccountID, denom string, amount *num.Uint) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	d := e.getOrCreate(subaccount, denom)
	d.Available.AddSum(amount)
	d.Total.AddSum(amount)

	if e.log.GetLevel() == logging.DebugLevel {
		e.log.Debug("deposit",
			logging.SubaccountID(subaccount),
			logging.String("denom", denom),
			logging.BigUint("amount", amount))
	}
	return nil
}

// Withdraw debits the subaccount by the given amount, decreasing both the
// available and total balance. Reserved funds cannot be withdrawn.
func (e *Engine) Withdraw(subaccount types.SubaccountID, denom string, amount *num.Uint) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	d := e.deposits[depositKey{subaccount, denom}]
	if d == nil || d.Available.LT(amount) {
		return errors.Wrapf(types.ErrInsufficientBalance,
			"withdraw %s %s from %s", amount, denom, subaccount)
	}
	d.Available.Sub(d.Available, amount)
	d.Total.Sub(d.Total, amount)
	e.prune(subaccount, denom, d)
	return nil
}

// Reserve locks the given amount behind an order or margin requirement,
// moving it from available to reserved. The total balance is unchanged.
func (e *Engine) Reserve(subaccount types.SubaccountID, denom string, amount *num.Uint) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	d := e.deposits[depositKey{subaccount, denom}]
	if d == nil || d.Available.LT(amount) {
		return errors.Wrapf(types.ErrInsufficientAvailableBalance,
			"reserve %s %s from %s", amount, denom, subaccount)
	}
	d.Available.Sub(d.Available, amount)
	return nil
}

// Release unlocks the given amount, moving it from reserved back to
// available. The total balance is unchanged.
func (e *Engine) Release(subaccount types.SubaccountID, denom string, amount *num.Uint) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	d := e.deposits[depositKey{subaccount, denom}]
	if d == nil || d.Reserved().LT(amount) {
		return errors.Wrapf(types.ErrInsufficientReservedBalance,
			"release %s %s to %s", amount, denom, subaccount)
	}
	d.Available.AddSum(amount)
	return nil
}

// Spend consumes reserved funds on settlement, decreasing the total balance
// only. The spent amount leaves the subaccount for good, its counterpart is
// credited elsewhere by the caller as part of the same fill event.
func (e *Engine) Spend(subaccount types.SubaccountID, denom string, amount *num.Uint) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	d := e.deposits[depositKey{subaccount, denom}]
	if d == nil || d.Reserved().LT(amount) {
		return errors.Wrapf(types.ErrInsufficientReservedBalance,
			"spend %s %s from %s", amount, denom, subaccount)
	}
	d.Total.Sub(d.Total, amount)
	e.prune(subaccount, denom, d)
	return nil
}

// Transfer atomically moves the amount from the source subaccount to the
// destination subaccount. Nothing moves when the source lacks available
// balance.
func (e *Engine) Transfer(source, destination types.SubaccountID, denom string, amount *num.Uint) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	src := e.deposits[depositKey{source, denom}]
	if src == nil || src.Available.LT(amount) {
		return errors.Wrapf(types.ErrInsufficientBalance,
			"transfer %s %s from %s", amount, denom, source)
	}
	src.Available.Sub(src.Available, amount)
	src.Total.Sub(src.Total, amount)
	dst := e.getOrCreate(destination, denom)
	dst.Available.AddSum(amount)
	dst.Total.AddSum(amount)
	e.prune(source, denom, src)

	if e.log.GetLevel() == logging.DebugLevel {
		e.log.Debug("transfer",
			logging.String("source", source.String()),
			logging.String("destination", destination.String()),
			logging.String("denom", denom),
			logging.BigUint("amount", amount))
	}
	return nil
}

// HasSufficientAvailable reports whether the subaccount could reserve or
// withdraw the given amount right now.
func (e *Engine) HasSufficientAvailable(subaccount types.SubaccountID, denom string, amount *num.Uint) bool {
	d := e.deposits[depositKey{subaccount, denom}]
	return d != nil && d.Available.GTE(amount)
}

// GetDeposit returns a copy of the deposit record for the given subaccount
// and denom.
func (e *Engine) GetDeposit(subaccount types.SubaccountID, denom string) (*types.Deposit, error) {
	d := e.deposits[depositKey{subaccount, denom}]
	if d == nil {
		return nil, errors.Wrapf(types.ErrDepositNotFound, "%s %s", subaccount, denom)
	}
	return d.Clone(), nil
}

// GetDeposits returns copies of all deposit records of the subaccount,
// ordered by denom.
func (e *Engine) GetDeposits(subaccount types.SubaccountID) []*types.DepositBalance {
	out := []*types.DepositBalance{}
	for k, d := range e.deposits {
		if k.subaccount == subaccount {
			out = append(out, &types.DepositBalance{
				SubaccountID: subaccount,
				Denom:        k.denom,
				Deposit:      d.Clone(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out
}

func (e *Engine) getOrCreate(subaccount types.SubaccountID, denom string) *types.Deposit {
	k := depositKey{subaccount, denom}
	d := e.deposits[k]
	if d == nil {
		d = types.NewDeposit()
		e.deposits[k] = d
	}
	return d
}

// prune drops empty deposit records so the map only holds live balances.
func (e *Engine) prune(subaccount types.SubaccountID, denom string, d *types.Deposit) {
	if d.IsEmpty() {
		delete(e.deposits, depositKey{subaccount, denom})
	}
}

func validAmount(amount *num.Uint) error {
	if amount == nil || amount.IsZero() {
		return types.ErrInvalidAmount
	}
	return nil
}
