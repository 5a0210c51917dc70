package types

// OrderMask selects a category of orders for cancellation when no order hash
// is supplied. Within each pair, leaving both bits unset selects both.
type OrderMask int32

const (
	OrderMaskAny         OrderMask = 0
	OrderMaskRegular     OrderMask = 1 << 0
	OrderMaskConditional OrderMask = 1 << 1
	OrderMaskBuyOrHigher OrderMask = 1 << 2
	OrderMaskSellOrLower OrderMask = 1 << 3
	OrderMaskMarket      OrderMask = 1 << 4
	OrderMaskLimit       OrderMask = 1 << 5
)

// scope is the mask with every unset pair widened to select both halves.
func (m OrderMask) scope() OrderMask {
	if m&(OrderMaskRegular|OrderMaskConditional) == 0 {
		m |= OrderMaskRegular | OrderMaskConditional
	}
	if m&(OrderMaskBuyOrHigher|OrderMaskSellOrLower) == 0 {
		m |= OrderMaskBuyOrHigher | OrderMaskSellOrLower
	}
	if m&(OrderMaskMarket|OrderMaskLimit) == 0 {
		m |= OrderMaskMarket | OrderMaskLimit
	}
	return m
}

// Matches reports whether the order falls into the category the mask selects.
func (m OrderMask) Matches(o *Order) bool {
	s := m.scope()
	if o.IsConditional() {
		if s&OrderMaskConditional == 0 {
			return false
		}
	} else if s&OrderMaskRegular == 0 {
		return false
	}
	if o.Side == SideBuy {
		if s&OrderMaskBuyOrHigher == 0 {
			return false
		}
	} else if s&OrderMaskSellOrLower == 0 {
		return false
	}
	if o.Type == OrderTypeMarket {
		return s&OrderMaskMarket != 0
	}
	return s&OrderMaskLimit != 0
}

// OrderData identifies an order to cancel, by hash when OrderHash is set,
// otherwise by cid scoped to the subaccount and filtered by the mask.
type OrderData struct {
	MarketID     MarketID
	SubaccountID SubaccountID
	OrderHash    OrderID
	OrderMask    OrderMask
	Cid          string
}
