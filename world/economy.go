package world

import (
	"math"
	"sort"
	"sync"
)

// economyDriftPerSecond is the fractional deterministic drift step applied to each
// tracked price per second of simulated time, bounded so prices can't run
// away to zero or infinity over a long session.
const (
	economyDriftPerSecond = 0.0005
	economyMinPrice       = 0.01
)

// EconomyState holds a flat item-name -> price table, nudged by a small
// deterministic drift each tick rather than true supply/demand modelling;
// spec §4.1 step 6 only requires that the economy "advance", and nothing
// in SPEC_FULL.md's combat/trade surface depends on a richer model.
type EconomyState struct {
	mu     sync.Mutex
	prices map[string]float64
	tick   uint64
}

func newEconomyState() EconomyState {
	return EconomyState{prices: make(map[string]float64)}
}

// SetBasePrice seeds a tracked item's starting price. Intended for startup
// configuration, not per-tick mutation.
func (e *EconomyState) SetBasePrice(item string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[item] = price
}

// Advance drifts every tracked price by a small deterministic step. The
// step is a function of e.tick (not wall time or math/rand) so replay
// reproduces it bit-for-bit, per the float-determinism design note.
func (e *EconomyState) Advance(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick++
	phase := float64(e.tick) * 0.1

	// Map iteration order is not stable across runs; replay determinism
	// requires the per-item phase offset to depend on the item's position
	// in sorted name order, not on incidental map iteration order.
	items := make([]string, 0, len(e.prices))
	for item := range e.prices {
		items = append(items, item)
	}
	sort.Strings(items)

	for i, item := range items {
		drift := math.Sin(phase+float64(i)) * economyDriftPerSecond * dt
		price := e.prices[item] * (1 + drift)
		if price < economyMinPrice {
			price = economyMinPrice
		}
		e.prices[item] = price
	}
}

// Snapshot returns a deep copy of the price table for capture.
func (e *EconomyState) Snapshot() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]float64, len(e.prices))
	for k, v := range e.prices {
		out[k] = v
	}
	return out
}

// Restore replaces the price table, used by replay.
func (e *EconomyState) Restore(prices map[string]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices = make(map[string]float64, len(prices))
	for k, v := range prices {
		e.prices[k] = v
	}
}
