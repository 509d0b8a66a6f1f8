// Package bus is the change notification fan-out for the data layer.
// Subscribers register a callback per change kind and re-read the affected
// collection themselves; events carry no payload.
package bus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Change names a group of collections that mutate together. The data layer
// publishes exactly one event per successful write.
type Change string

const (
	// ChangeData covers products, customers, orders, stock movements and the
	// debt ledger: the collections touched by sales and inventory flow.
	ChangeData       Change = "data-change"
	ChangeCategories Change = "category-change"
	ChangeUnits      Change = "unit-change"
	ChangeUsers      Change = "user-change"
	ChangeMenuConfig Change = "menu-config-change"
	ChangeSettings   Change = "config-change"
)

type Bus struct {
	inner evbus.Bus
}

func New() *Bus {
	return &Bus{inner: evbus.New()}
}

// Subscribe registers fn to run on every publish of kind until Unsubscribe
// is called with the same fn.
func (b *Bus) Subscribe(kind Change, fn func()) error {
	return b.inner.Subscribe(string(kind), fn)
}

func (b *Bus) Unsubscribe(kind Change, fn func()) error {
	return b.inner.Unsubscribe(string(kind), fn)
}

// Publish runs subscribers synchronously, matching the write-then-notify
// discipline of the data layer: by the time Publish returns, observers have
// seen the event.
func (b *Bus) Publish(kind Change) {
	b.inner.Publish(string(kind))
}
