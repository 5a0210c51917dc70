package types

import "code.meridianprotocol.io/meridian/types/num"

// Deposit holds one subaccount's balance in one denomination. Available is
// what can be spent or withdrawn right now; Total additionally counts funds
// reserved behind resting orders and position margin.
// Invariant: Available <= Total.
type Deposit struct {
	Available *num.Uint
	Total     *num.Uint
}

// NewDeposit returns an empty deposit record.
func NewDeposit() *Deposit {
	return &Deposit{
		Available: num.UintZero(),
		Total:     num.UintZero(),
	}
}

// Reserved returns the part of the balance locked behind orders or margin.
func (d Deposit) Reserved() *num.Uint {
	return num.UintZero().Sub(d.Total, d.Available)
}

// IsEmpty reports whether both balances are zero.
func (d Deposit) IsEmpty() bool {
	return d.Total.IsZero() && d.Available.IsZero()
}

// Clone returns a deep copy of the deposit.
func (d Deposit) Clone() *Deposit {
	return &Deposit{
		Available: d.Available.Clone(),
		Total:     d.Total.Clone(),
	}
}

// DepositBalance is a deposit together with its key, for queries.
type DepositBalance struct {
	SubaccountID SubaccountID
	Denom        string
	Deposit      *Deposit
}
