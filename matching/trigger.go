package matching

import (
	"code.meridianprotocol.io/meridian/types"
	"code.meridianprotocol.io/meridian/types/num"

	"github.com/google/btree"
)

// triggerLevel groups the conditional orders waiting on one trigger price,
// oldest first.
type triggerLevel struct {
	price  *num.Uint
	orders []*types.Order
}

// TriggerPool holds conditional orders until the mark price crosses their
// trigger. Orders whose trigger sits above the mark price at insertion
// activate when the mark rises to the trigger, the rest when it falls to it.
type TriggerPool struct {
	above *btree.BTreeG[*triggerLevel]
	below *btree.BTreeG[*triggerLevel]
	byID  map[types.OrderID]*triggerEntry
}

type triggerEntry struct {
	level *triggerLevel
	above bool
}

// NewTriggerPool returns an empty conditional order pool.
func NewTriggerPool() *TriggerPool {
	less := func(a, b *triggerLevel) bool { return a.price.LT(b.price) }
	return &TriggerPool{
		above: btree.NewG(8, less),
		below: btree.NewG(8, less),
		byID:  map[types.OrderID]*triggerEntry{},
	}
}

// Insert parks a conditional order against the given mark price.
func (p *TriggerPool) Insert(o *types.Order, markPrice *num.Uint) {
	above := markPrice == nil || o.TriggerPrice.GT(markPrice)
	tree := p.below
	if above {
		tree = p.above
	}

	pivot := &triggerLevel{price: o.TriggerPrice}
	level, ok := tree.Get(pivot)
	if !ok {
		level = &triggerLevel{price: o.TriggerPrice.Clone()}
		tree.ReplaceOrInsert(level)
	}
	level.orders = append(level.orders, o)
	p.byID[o.ID] = &triggerEntry{level: level, above: above}
}

// Remove takes a parked order out of the pool.
func (p *TriggerPool) Remove(id types.OrderID) (*types.Order, error) {
	entry, ok := p.byID[id]
	if !ok {
		return nil, types.ErrOrderNotFound
	}
	delete(p.byID, id)

	var removed *types.Order
	for i, o := range entry.level.orders {
		if o.ID == id {
			removed = o
			entry.level.orders = append(entry.level.orders[:i], entry.level.orders[i+1:]...)
			break
		}
	}
	if len(entry.level.orders) == 0 {
		tree := p.below
		if entry.above {
			tree = p.above
		}
		tree.Delete(entry.level)
	}
	return removed, nil
}

// Triggered pops and returns every order whose trigger the new mark price
// reached, closest trigger first, oldest first within a trigger.
func (p *TriggerPool) Triggered(markPrice *num.Uint) []*types.Order {
	var hit []*triggerLevel

	// rising marks activate the levels at or below the new price
	p.above.Ascend(func(l *triggerLevel) bool {
		if l.price.GT(markPrice) {
			return false
		}
		hit = append(hit, l)
		return true
	})
	for _, l := range hit {
		p.above.Delete(l)
	}

	nAbove := len(hit)
	p.below.Descend(func(l *triggerLevel) bool {
		if l.price.LT(markPrice) {
			return false
		}
		hit = append(hit, l)
		return true
	})
	for _, l := range hit[nAbove:] {
		p.below.Delete(l)
	}

	var out []*types.Order
	for _, l := range hit {
		for _, o := range l.orders {
			delete(p.byID, o.ID)
			out = append(out, o)
		}
	}
	return out
}

// Get returns a parked order without removing it.
func (p *TriggerPool) Get(id types.OrderID) (*types.Order, bool) {
	entry, ok := p.byID[id]
	if !ok {
		return nil, false
	}
	for _, o := range entry.level.orders {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// Len returns the number of parked orders.
func (p *TriggerPool) Len() int {
	return len(p.byID)
}
