package types

import (
	"fmt"

	"code.meridianprotocol.io/meridian/types/num"
)

// Side of the book an order sits on.
type Side int8

const (
	SideUnspecified Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unspecified"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType distinguishes resting limit orders from immediate market orders.
type OrderType int8

const (
	OrderTypeUnspecified OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "limit"
	case OrderTypeMarket:
		return "market"
	default:
		return "unspecified"
	}
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus int8

const (
	OrderStatusUnspecified OrderStatus = iota
	// OrderStatusActive means the order is resting on the book.
	OrderStatusActive
	// OrderStatusPartiallyFilled means the order traded and the remainder rests.
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
	// OrderStatusTriggerPending means a conditional order waiting on its
	// trigger price.
	OrderStatusTriggerPending
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusActive:
		return "active"
	case OrderStatusPartiallyFilled:
		return "partially-filled"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusCancelled:
		return "cancelled"
	case OrderStatusRejected:
		return "rejected"
	case OrderStatusTriggerPending:
		return "trigger-pending"
	default:
		return "unspecified"
	}
}

// Order is a resting or incoming order, spot or derivative.
// Margin is only meaningful on derivative orders; TriggerPrice is nil for
// regular orders.
type Order struct {
	ID           OrderID
	MarketID     MarketID
	SubaccountID SubaccountID
	FeeRecipient Address
	Side         Side
	Type         OrderType
	PostOnly     bool
	Price        *num.Uint
	Size         uint64
	Remaining    uint64
	Margin       *num.Uint
	TriggerPrice *num.Uint
	Cid          string
	Status       OrderStatus
	// Seq is the acceptance sequence number, the time component of
	// price-time priority.
	Seq uint64
}

// IsConditional reports whether the order waits on a trigger price.
func (o *Order) IsConditional() bool {
	return o.TriggerPrice != nil
}

// IsFinished reports whether the order reached a terminal status.
func (o *Order) IsFinished() bool {
	return o.Status == OrderStatusFilled ||
		o.Status == OrderStatusCancelled ||
		o.Status == OrderStatusRejected
}

// Clone returns a deep copy of the order.
func (o Order) Clone() *Order {
	cpy := o
	if o.Price != nil {
		cpy.Price = o.Price.Clone()
	}
	if o.Margin != nil {
		cpy.Margin = o.Margin.Clone()
	}
	if o.TriggerPrice != nil {
		cpy.TriggerPrice = o.TriggerPrice.Clone()
	}
	return &cpy
}

func (o Order) String() string {
	return fmt.Sprintf("id:%s market:%s subaccount:%s side:%s price:%s size:%d remaining:%d status:%s",
		o.ID, o.MarketID, o.SubaccountID, o.Side, o.Price, o.Size, o.Remaining, o.Status)
}

// OrderSubmission is the caller-facing request to create an order.
type OrderSubmission struct {
	MarketID     MarketID
	SubaccountID SubaccountID
	FeeRecipient Address
	Side         Side
	Type         OrderType
	PostOnly     bool
	Price        *num.Uint
	Size         uint64
	Margin       *num.Uint
	TriggerPrice *num.Uint
	Cid          string
}

// IntoOrder builds the order an accepted submission becomes.
func (s OrderSubmission) IntoOrder() *Order {
	o := &Order{
		MarketID:     s.MarketID,
		SubaccountID: s.SubaccountID,
		FeeRecipient: s.FeeRecipient,
		Side:         s.Side,
		Type:         s.Type,
		PostOnly:     s.PostOnly,
		Size:         s.Size,
		Remaining:    s.Size,
		Cid:          s.Cid,
		Status:       OrderStatusActive,
	}
	if s.Price != nil {
		o.Price = s.Price.Clone()
	} else {
		o.Price = num.UintZero()
	}
	if s.Margin != nil {
		o.Margin = s.Margin.Clone()
	}
	if s.TriggerPrice != nil {
		o.TriggerPrice = s.TriggerPrice.Clone()
		o.Status = OrderStatusTriggerPending
	}
	return o
}

// OrderConfirmation is returned on order acceptance: the order itself with
// its assigned hash, the trades it produced, and the resting orders those
// trades impacted.
type OrderConfirmation struct {
	Order          *Order
	Trades         []*Trade
	ImpactedOrders []*Order
}

// OrderCancellation reports the orders removed by a cancel request.
type OrderCancellation struct {
	Orders []*Order
}
