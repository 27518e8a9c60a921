// Package interest implements the per-client area-of-interest pipeline
// (§4.7): a zone-bucketed coarse pre-filter, exact-radius AOI membership,
// enter/exit spawn and despawn emission, and the per-tick moved-entity
// position batch.
//
// Adapted from a chunk-grid loader-area pre-filter to a ZONE_SIZE-bucketed
// 3x3 neighbourhood, with per-client AOI bookkeeping held in a
// mutex-guarded map keyed by session id.
package interest

import (
	"math"
	"sync"

	"worldcore/codec"
	"worldcore/entity"
	"worldcore/memory"
)

// zoneKey is the coarse grid cell a position falls into at the configured
// ZONE_SIZE, §4.7's "zone-based coarse pre-filter".
type zoneKey struct{ X, Z int }

func keyFor(pos entity.Vec3, zoneSize float64) zoneKey {
	return zoneKey{
		X: int(floorDiv(float64(pos.X), zoneSize)),
		Z: int(floorDiv(float64(pos.Z), zoneSize)),
	}
}

func floorDiv(v, size float64) float64 {
	return math.Floor(v / size) // floor, not truncation, for negative coordinates
}

func withinNeighbourhood(a, b zoneKey) bool {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dz := a.Z - b.Z
	if dz < 0 {
		dz = -dz
	}
	return dx <= 1 && dz <= 1
}

// Update is the per-tick, per-session outcome the caller (the broadcast
// phase) hands to the codec/transport layer.
type Update struct {
	Spawns   []*entity.Entity
	Despawns []uint32
	Batch    []codec.CharacterPosition
}

// sessionState is one client's AOI bookkeeping: which net-ids are
// currently known to be in view, and the position last broadcast for each
// (the delta-encoding baseline, and the move-threshold comparison point).
type sessionState struct {
	mu       sync.Mutex
	inAOI    map[uint32]entity.Vec3
}

// Manager owns every authenticated session's AOI state.
type Manager struct {
	zoneSize     float64
	posThreshold float64

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewManager constructs an interest manager using the configured zone size
// (§4.7, default 200m) and position-change threshold (§3, default 0.1m).
func NewManager(zoneSize, posThreshold float64) *Manager {
	return &Manager{
		zoneSize:     zoneSize,
		posThreshold: posThreshold,
		sessions:     make(map[string]*sessionState),
	}
}

func (m *Manager) stateFor(sessionID string) *sessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &sessionState{inAOI: make(map[uint32]entity.Vec3)}
		m.sessions[sessionID] = s
	}
	return s
}

// Forget drops all AOI state for a session (on disconnect).
func (m *Manager) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Compute runs one session's AOI pass for the current tick: observerPos is
// the position of the client's primary observed/owned entity, entities is
// every entity in the world (the caller passes Registry.All()); inactive
// ones are skipped. Buildings bypass both the zone pre-filter and the
// radius check since their sync radius is global (§3).
func (m *Manager) Compute(sessionID string, observerPos entity.Vec3, entities []*entity.Entity) Update {
	state := m.stateFor(sessionID)
	state.mu.Lock()
	defer state.mu.Unlock()

	observerZone := keyFor(observerPos, m.zoneSize)
	seen := make(map[uint32]struct{}, len(state.inAOI))
	update := Update{
		Despawns: memory.GetEntitySlice(),
		Batch:    memory.GetPositionBatch(),
	}

	for _, e := range entities {
		if !e.Active {
			continue
		}
		inRange := e.Type == entity.TypeBuilding || m.inRange(observerPos, observerZone, e)
		_, wasIn := state.inAOI[e.NetID]

		switch {
		case inRange && !wasIn:
			update.Spawns = append(update.Spawns, e)
			state.inAOI[e.NetID] = e.Position
			seen[e.NetID] = struct{}{}
		case inRange && wasIn:
			seen[e.NetID] = struct{}{}
			last := state.inAOI[e.NetID]
			if movedBeyond(last, e.Position, m.posThreshold) {
				if len(update.Batch) < codec.MaxBatchEntries {
					update.Batch = append(update.Batch, codec.CharacterPosition{
						EntityID:      e.NetID,
						Position:      e.Position,
						RotCompressed: codec.CompressQuat(e.Rotation),
						AnimState:     0,
						MoveSpeedEnc:  0,
					})
					state.inAOI[e.NetID] = e.Position
				}
				// Past the cap: leave state.inAOI at its previous value so this
				// move is re-compared (and re-queued) next tick instead of
				// being dropped.
			}
		}
	}

	for netID := range state.inAOI {
		if _, ok := seen[netID]; !ok {
			update.Despawns = append(update.Despawns, netID)
			delete(state.inAOI, netID)
		}
	}

	return update
}

// Release returns an Update's pooled scratch slices once the caller has
// finished encoding them into outbound packets. Spawns is never pooled (it
// holds live *entity.Entity pointers the registry still owns).
func (m *Manager) Release(u Update) {
	memory.PutEntitySlice(u.Despawns)
	memory.PutPositionBatch(u.Batch)
}

func (m *Manager) inRange(observerPos entity.Vec3, observerZone zoneKey, e *entity.Entity) bool {
	if !withinNeighbourhood(observerZone, keyFor(e.Position, m.zoneSize)) {
		return false
	}
	radius := e.Type.SyncRadius()
	if radius < 0 {
		return true
	}
	return e.Position.Sub(observerPos).LengthSq() <= radius*radius
}

func movedBeyond(prev, cur entity.Vec3, threshold float64) bool {
	return cur.Sub(prev).LengthSq() > threshold*threshold
}
