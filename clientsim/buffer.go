// Package clientsim ships a reference implementation of the client-side
// interpolation buffer described in §4.8: a per-entity ring buffer of
// capacity 10, linear position interpolation plus rotation slerp between
// bracketing snapshots, extrapolation inside a short window, and
// staleness/underrun clamping at the edges. It exists so the server's wire
// contract has a concrete consumer to exercise in tests even though the
// real client is out of scope.
//
// The ring-buffer/bracket-and-interpolate shape follows a bounded
// position-update history consulted by index rather than unbounded
// accumulation, sized to a fixed 10 slots; the interpolation delay and
// extrapolation window are New's parameters (defaults 100ms and 50ms).
package clientsim

import (
	"math"
	"sync"
	"time"

	"worldcore/entity"
)

const bufferCapacity = 10

// Sample is one authoritative position/rotation update for an entity,
// tagged with the tick it was produced on and the local wall-clock time it
// was received.
type Sample struct {
	TickID     uint64
	Position   entity.Vec3
	Rotation   entity.Quat
	ReceivedAt time.Time
}

// ring is a fixed-capacity circular buffer of Samples in arrival order.
type ring struct {
	items [bufferCapacity]Sample
	count int
	head  int // index of the oldest sample
}

func (r *ring) push(s Sample) {
	idx := (r.head + r.count) % bufferCapacity
	if r.count < bufferCapacity {
		r.count++
	} else {
		r.head = (r.head + 1) % bufferCapacity
	}
	r.items[idx] = s
}

// ordered returns samples oldest-first.
func (r *ring) ordered() []Sample {
	out := make([]Sample, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(r.head+i)%bufferCapacity]
	}
	return out
}

type entityState struct {
	mu       sync.Mutex
	buf      ring
	velocity entity.Vec3
}

// Buffer owns every tracked entity's interpolation history.
type Buffer struct {
	mu           sync.Mutex
	entities     map[uint32]*entityState
	interpDelay  time.Duration
	extrapWindow time.Duration
}

// New constructs a Buffer using the named tunables INTERP_DELAY_MS
// (default 100) and EXTRAPOLATION_MS (default 50).
func New(interpDelayMs, extrapolationMs int) *Buffer {
	return &Buffer{
		entities:     make(map[uint32]*entityState),
		interpDelay:  time.Duration(interpDelayMs) * time.Millisecond,
		extrapWindow: time.Duration(extrapolationMs) * time.Millisecond,
	}
}

func (b *Buffer) stateFor(id uint32) *entityState {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.entities[id]
	if !ok {
		s = &entityState{}
		b.entities[id] = s
	}
	return s
}

// Record appends one authoritative sample for entityID, along with the
// velocity that will drive extrapolation if the render clock outruns the
// buffer's newest sample.
func (b *Buffer) Record(entityID uint32, tickID uint64, pos entity.Vec3, rot entity.Quat, velocity entity.Vec3, now time.Time) {
	s := b.stateFor(entityID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.push(Sample{TickID: tickID, Position: pos, Rotation: rot, ReceivedAt: now})
	s.velocity = velocity
}

// Forget drops an entity's interpolation history (on despawn).
func (b *Buffer) Forget(entityID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entities, entityID)
}

// Remap atomically moves entityID's interpolation history from localID to
// serverID, satisfying the remap-atomicity contract entity.Registry.Remap
// documents: the caller must swap its own per-entity bookkeeping under a
// lock discipline matching the registry's own remap.
func (b *Buffer) Remap(localID, serverID uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.entities[localID]; ok {
		delete(b.entities, localID)
		b.entities[serverID] = s
	}
}

// Result is one rendered sample: the interpolated/extrapolated/clamped
// pose for display time now - INTERP_DELAY_MS.
type Result struct {
	Position entity.Vec3
	Rotation entity.Quat
	Stale    bool
}

// Sample computes entityID's display pose at wall-clock now, per §4.8's
// bracket-interpolate / extrapolate-within-window / clamp-and-go-stale
// rules. ok is false only if no sample has ever been recorded.
func (b *Buffer) Sample(entityID uint32, now time.Time) (Result, bool) {
	b.mu.Lock()
	s, ok := b.entities[entityID]
	b.mu.Unlock()
	if !ok {
		return Result{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.buf.ordered()
	if len(items) == 0 {
		return Result{}, false
	}
	displayTime := now.Add(-b.interpDelay)
	oldest, newest := items[0], items[len(items)-1]

	if displayTime.Before(oldest.ReceivedAt) {
		// Buffer underrun: show the oldest known sample rather than invent one.
		return Result{Position: oldest.Position, Rotation: oldest.Rotation}, true
	}

	if displayTime.After(newest.ReceivedAt) {
		overrun := displayTime.Sub(newest.ReceivedAt)
		if overrun <= b.extrapWindow {
			dt := float32(overrun.Seconds())
			pos := entity.Vec3{
				X: newest.Position.X + s.velocity.X*dt,
				Y: newest.Position.Y + s.velocity.Y*dt,
				Z: newest.Position.Z + s.velocity.Z*dt,
			}
			return Result{Position: pos, Rotation: newest.Rotation}, true
		}
		return Result{Position: newest.Position, Rotation: newest.Rotation, Stale: true}, true
	}

	// Find the bracketing pair and interpolate.
	for i := 1; i < len(items); i++ {
		prev, cur := items[i-1], items[i]
		if displayTime.After(cur.ReceivedAt) {
			continue
		}
		span := cur.ReceivedAt.Sub(prev.ReceivedAt)
		var t float64
		if span > 0 {
			t = float64(displayTime.Sub(prev.ReceivedAt)) / float64(span)
		}
		return Result{
			Position: lerpVec3(prev.Position, cur.Position, t),
			Rotation: slerp(prev.Rotation, cur.Rotation, t),
		}, true
	}

	return Result{Position: newest.Position, Rotation: newest.Rotation}, true
}

func lerpVec3(a, b entity.Vec3, t float64) entity.Vec3 {
	return entity.Vec3{
		X: a.X + float32(t)*(b.X-a.X),
		Y: a.Y + float32(t)*(b.Y-a.Y),
		Z: a.Z + float32(t)*(b.Z-a.Z),
	}
}

// slerp spherically interpolates between two unit quaternions, taking the
// shorter arc (negating b when the dot product is negative).
func slerp(a, b entity.Quat, t float64) entity.Quat {
	dot := float64(a.X*b.X + a.Y*b.Y + a.Z*b.Z + a.W*b.W)
	if dot < 0 {
		b = entity.Quat{X: -b.X, Y: -b.Y, Z: -b.Z, W: -b.W}
		dot = -dot
	}
	if dot > 0.9995 {
		// Nearly colinear: fall back to a normalized lerp to avoid
		// dividing by a near-zero sine below.
		return normalizeQuat(entity.Quat{
			X: a.X + float32(t)*(b.X-a.X),
			Y: a.Y + float32(t)*(b.Y-a.Y),
			Z: a.Z + float32(t)*(b.Z-a.Z),
			W: a.W + float32(t)*(b.W-a.W),
		})
	}
	theta0 := math.Acos(dot)
	theta := theta0 * t
	sinTheta0 := math.Sin(theta0)
	s0 := math.Cos(theta) - dot*math.Sin(theta)/sinTheta0
	s1 := math.Sin(theta) / sinTheta0
	return entity.Quat{
		X: float32(s0)*a.X + float32(s1)*b.X,
		Y: float32(s0)*a.Y + float32(s1)*b.Y,
		Z: float32(s0)*a.Z + float32(s1)*b.Z,
		W: float32(s0)*a.W + float32(s1)*b.W,
	}
}

func normalizeQuat(q entity.Quat) entity.Quat {
	n := math.Sqrt(float64(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W))
	if n == 0 {
		return q
	}
	return entity.Quat{X: q.X / float32(n), Y: q.Y / float32(n), Z: q.Z / float32(n), W: q.W / float32(n)}
}
