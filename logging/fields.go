package logging

import (
	"strconv"
	"time"

	"code.meridianprotocol.io/meridian/types"
	"code.meridianprotocol.io/meridian/types/num"

	"go.uber.org/zap"
)

// String constructs a field with the given key and value.
func String(key, val string) zap.Field {
	return zap.String(key, val)
}

// Strings constructs a field with the given key and slice of values.
func Strings(key string, val []string) zap.Field {
	return zap.Strings(key, val)
}

// Int constructs a field with the given key and value.
func Int(key string, val int) zap.Field {
	return zap.Int(key, val)
}

// Int64 constructs a field with the given key and value.
func Int64(key string, val int64) zap.Field {
	return zap.Int64(key, val)
}

// Uint32 constructs a field with the given key and value.
func Uint32(key string, val uint32) zap.Field {
	return zap.Uint32(key, val)
}

// Uint64 constructs a field with the given key and value.
func Uint64(key string, val uint64) zap.Field {
	return zap.Uint64(key, val)
}

// Bool constructs a field with the given key and value.
func Bool(key string, val bool) zap.Field {
	return zap.Bool(key, val)
}

// Duration constructs a field with the given key and value.
func Duration(key string, val time.Duration) zap.Field {
	return zap.Duration(key, val)
}

// Error constructs a field that stores err under the key "error".
func Error(err error) zap.Field {
	return zap.Error(err)
}

// BigUint constructs a field with the given key holding the decimal string
// representation of the given Uint.
func BigUint(key string, val *num.Uint) zap.Field {
	if val == nil {
		return zap.String(key, "nil")
	}
	return zap.String(key, val.String())
}

// Decimal constructs a field with the given key and decimal value.
func Decimal(key string, val num.Decimal) zap.Field {
	return zap.String(key, val.String())
}

// MarketID constructs a field holding a market identifier.
func MarketID(id types.MarketID) zap.Field {
	return zap.String("market-id", id.String())
}

// SubaccountID constructs a field holding a subaccount identifier.
func SubaccountID(id types.SubaccountID) zap.Field {
	return zap.String("subaccount-id", id.String())
}

// OrderID constructs a field holding an order hash.
func OrderID(id types.OrderID) zap.Field {
	return zap.String("order-id", id.String())
}

// Order constructs a field containing the salient details of an order.
func Order(o *types.Order) zap.Field {
	if o == nil {
		return zap.String("order", "nil")
	}
	return zap.Any("order", map[string]string{
		"id":         o.ID.String(),
		"market":     o.MarketID.String(),
		"subaccount": o.SubaccountID.String(),
		"side":       o.Side.String(),
		"price":      o.Price.String(),
		"size":       strconv.FormatUint(o.Size, 10),
		"remaining":  strconv.FormatUint(o.Remaining, 10),
		"cid":        o.Cid,
		"status":     o.Status.String(),
	})
}

// Trade constructs a field containing the salient details of a trade.
func Trade(t *types.Trade) zap.Field {
	if t == nil {
		return zap.String("trade", "nil")
	}
	return zap.Any("trade", map[string]string{
		"id":        t.ID,
		"market":    t.MarketID.String(),
		"price":     t.Price.String(),
		"size":      strconv.FormatUint(t.Size, 10),
		"buyer":     t.Buyer.String(),
		"seller":    t.Seller.String(),
		"aggressor": t.Aggressor.String(),
	})
}
