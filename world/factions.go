package world

import (
	"sync"

	"worldcore/eventlog"
)

// factionDecayPerSecond pulls every relation gently back toward neutral
// (0) each tick, so an old grudge fades if nothing refreshes it.
const factionDecayPerSecond = 0.01

// relationKey orders the pair so "A:B" and "B:A" are the same relation.
func relationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// FactionState holds faction relation scores ([-1, 1], hostile to allied)
// as plain world state mutated only by applied events; relations are saved
// only as part of world snapshots. The members roster map is not filled by
// any event: member joined/left events are accepted with no state change.
type FactionState struct {
	mu        sync.Mutex
	relations map[string]float32
	members   map[string]map[uint32]struct{} // faction name -> member player-ids
}

func newFactionState() FactionState {
	return FactionState{
		relations: make(map[string]float32),
		members:   make(map[string]map[uint32]struct{}),
	}
}

// Advance decays every relation toward zero by dt seconds worth of drift.
func (f *FactionState) Advance(dt float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delta := float32(factionDecayPerSecond * dt)
	for k, v := range f.relations {
		switch {
		case v > delta:
			f.relations[k] = v - delta
		case v < -delta:
			f.relations[k] = v + delta
		default:
			f.relations[k] = 0
		}
	}
}

// Apply handles FactionRelationChanged, FactionMemberJoined and
// FactionMemberLeft. Member-roster events are accepted here too since they
// carry no entity-registry side effect of their own.
func (f *FactionState) Apply(e *eventlog.Event) (string, bool) {
	factionA, _ := e.Data["factionA"].(string)
	factionB, _ := e.Data["factionB"].(string)
	switch e.Type {
	case eventlog.FactionRelationChanged:
		if factionA == "" || factionB == "" {
			return eventlog.RejectInvalidPayload, false
		}
		delta, ok := e.Data["delta"].(float64)
		if !ok {
			return eventlog.RejectInvalidPayload, false
		}
		f.mu.Lock()
		key := relationKey(factionA, factionB)
		v := f.relations[key] + float32(delta)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		f.relations[key] = v
		f.mu.Unlock()
		return "", true
	default:
		return "", true
	}
}

// Snapshot returns a deep copy of the relation table for capture.
func (f *FactionState) Snapshot() map[string]float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float32, len(f.relations))
	for k, v := range f.relations {
		out[k] = v
	}
	return out
}

// Restore replaces the relation table, used by replay.
func (f *FactionState) Restore(relations map[string]float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relations = make(map[string]float32, len(relations))
	for k, v := range relations {
		f.relations[k] = v
	}
}
