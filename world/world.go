// Package world implements the per-tick simulation pipeline: the
// authoritative owner of the entity registry, the event log, and the
// snapshot store, all mutated under one exclusive lock for the duration
// of a tick.
//
// A single struct owns every mutable subsystem, ticked by an external
// clock calling back into one method, with reads of immutable/atomic
// state (here, StateVersion) permitted without the lock.
package world

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"worldcore/codec"
	"worldcore/entity"
	"worldcore/eventlog"
	"worldcore/logging"
	"worldcore/snapshot"
)

// Config bundles the tunables the simulator needs at construction time,
// read once from the config package by the caller.
type Config struct {
	WorldID               string
	RealSecondsPerGameHour float64
	GameSpeed             float64
	SnapshotIntervalTicks int64
	PosChangeThreshold    float64
	PVPEnabled            bool
}

// TickResult is returned by SimulateTick: tick id, success, state
// version, events processed, entities cleaned, and an optional error.
type TickResult struct {
	TickID          uint64
	Success         bool
	StateVersion    uint64
	EventsProcessed int
	EntitiesCleaned int
	Err             error
}

// World owns the registry, event log, and snapshot store, and runs the
// fixed per-tick pipeline (steps 1-9; step 10, AOI, runs in the caller,
// server.Hub) under a single exclusive lock.
type World struct {
	cfg Config
	log *logging.Logger

	mu sync.Mutex // held for the duration of a tick; see §5 shared-resource policy

	currentTick   uint64
	stateVersion  atomic.Uint64 // readable lock-free per §5
	worldHours    float64
	dayCount      uint64
	weather       string
	prePauseSpeed float64 // 0 when not paused

	Registry *entity.Registry
	Events   *eventlog.Log
	Snaps    *snapshot.Store

	factions FactionState
	zones    ZoneState
	economy  EconomyState
}

// New wires the simulator's owned subsystems together.
func New(cfg Config, reg *entity.Registry, events *eventlog.Log, snaps *snapshot.Store, log *logging.Logger) *World {
	if log == nil {
		log = logging.Default()
	}
	if cfg.RealSecondsPerGameHour <= 0 {
		cfg.RealSecondsPerGameHour = 60
	}
	if cfg.GameSpeed <= 0 {
		cfg.GameSpeed = 1
	}
	return &World{
		cfg:      cfg,
		log:      log,
		Registry: reg,
		Events:   events,
		Snaps:    snaps,
		factions: newFactionState(),
		zones:    newZoneState(),
		economy:  newEconomyState(),
	}
}

// CurrentTick returns the last completed tick-id, safe without the lock.
func (w *World) CurrentTick() uint64 { return atomic.LoadUint64(&w.currentTick) }

// StateVersion returns the atomic state-version pointer readers may poll
// without acquiring the world lock, per §5.
func (w *World) StateVersion() uint64 { return w.stateVersion.Load() }

// WorldHours, DayCount, Weather and GameSpeed are read-only snapshots of
// simulator-global state used by the status surface and the admin
// interpreter's read-only commands (list/stats/info). They take the lock
// like any other read of mutable world state.
func (w *World) WorldHours() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.worldHours
}

func (w *World) DayCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dayCount
}

func (w *World) Weather() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.weather
}

func (w *World) GameSpeed() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg.GameSpeed
}

func (w *World) PVPEnabled() bool { return w.cfg.PVPEnabled }

// RegisterZone installs a named NPC spawn zone ahead of the tick loop, per
// §4.1 pipeline step 3. Intended to be called once at startup from a
// loaded world-definition file, not from event application.
func (w *World) RegisterZone(name string, center entity.Vec3, radius float64, template uint32, maxPop int, spawnIntervalTicks uint64) {
	w.zones.Register(name, center, radius, template, maxPop, spawnIntervalTicks)
}

// Submit enqueues an event for application on the next tick. Threadsafe;
// callers outside the simulator may only reach the world through this and
// the read-only accessors above, per the concurrency model.
func (w *World) Submit(e *eventlog.Event) uint64 {
	return w.Events.Submit(e)
}

// SimulateTick runs one full pipeline pass. Must not be called
// concurrently with itself; dt is nominal seconds elapsed.
func (w *World) SimulateTick(dtSeconds float64) TickResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	tickID := atomic.LoadUint64(&w.currentTick) + 1
	atomic.StoreUint64(&w.currentTick, tickID)
	w.stateVersion.Add(1)

	// 2. advance world-time
	w.worldHours += (dtSeconds * w.cfg.GameSpeed) / w.cfg.RealSecondsPerGameHour
	dayRolled := false
	if w.worldHours >= 24 {
		w.worldHours = math.Mod(w.worldHours, 24)
		dayRolled = true
		w.dayCount++
	}

	// 3. zone subsystem update (may enqueue spawn events via spawnFn)
	w.zones.Update(tickID, w.Registry, func(e *eventlog.Event) { w.Events.Submit(e) })

	// 4. per-entity per-type update
	w.tickEntities(tickID, dtSeconds)

	// 5. faction relation decay/events
	w.factions.Advance(dtSeconds)

	// 6. economy advance
	w.economy.Advance(dtSeconds)

	// 7. drain and apply pending events
	pending := w.Events.DrainPending()
	processed := 0
	for _, e := range pending {
		w.applyEvent(tickID, e)
		processed++
	}
	if dayRolled {
		w.Events.RecordApplied(&eventlog.Event{
			Type:       eventlog.TimeAdvanced,
			TickID:     tickID,
			WasApplied: true,
			Data:       map[string]interface{}{"dayRolled": true},
		})
	}

	// 8. cleanup marked-for-removal entities
	cleaned := w.cleanupRemoved()

	// 9. snapshot on interval
	if w.cfg.SnapshotIntervalTicks > 0 && int64(tickID)%w.cfg.SnapshotIntervalTicks == 0 {
		w.captureSnapshotLocked(tickID)
	}

	// 10. AOI delta computation happens in package interest, driven by the
	// caller after SimulateTick returns (it needs the dispatcher, which
	// this package must not import).

	w.Events.Cleanup(tickID)

	return TickResult{
		TickID:          tickID,
		Success:         true,
		StateVersion:    w.stateVersion.Load(),
		EventsProcessed: processed,
		EntitiesCleaned: cleaned,
	}
}

func (w *World) tickEntities(tickID uint64, dt float64) {
	for _, e := range w.Registry.All() {
		if !e.Active || e.MarkedForRemoval {
			continue
		}
		updateByType(e, dt)
		e.LastUpdateTick = tickID
	}
}

func (w *World) cleanupRemoved() int {
	cleaned := 0
	for _, e := range w.Registry.All() {
		if e.MarkedForRemoval {
			w.Registry.Remove(e.NetID)
			cleaned++
		}
	}
	return cleaned
}

func (w *World) captureSnapshotLocked(tickID uint64) {
	ws := snapshot.WorldState{
		WorldID:          w.cfg.WorldID,
		TickID:           tickID,
		StateVersion:     w.stateVersion.Load(),
		WorldTimeHours:   w.worldHours,
		Entities:         w.Registry.All(),
		FactionRelations: w.factions.Snapshot(),
		Zones:            w.zones.Names(),
		EconomyPrices:    w.economy.Snapshot(),
	}
	snap := snapshot.Capture(ws, tickNanosPlaceholder(tickID))
	// The copy is complete; disk I/O happens outside the world lock's
	// critical section conceptually, but Store.Add's own lock is disjoint
	// from w.mu so this does not hold w.mu during the write syscall.
	go func() {
		if err := w.Snaps.Add(snap); err != nil {
			w.log.Error("snapshot write failed", map[string]interface{}{"tick": tickID, "error": err.Error()})
		}
	}()
}

// tickNanosPlaceholder stands in for a wall-clock timestamp. Snapshots are
// keyed and ordered by tick-id, not by this value; it exists only for
// diagnostics, so a caller-supplied monotonic counter is sufficient and
// keeps SimulateTick free of time.Now() (kept out of the deterministic
// replay path per the float/determinism design note).
func tickNanosPlaceholder(tickID uint64) int64 { return int64(tickID) }

func updateByType(e *entity.Entity, dt float64) {
	switch e.Type {
	case entity.TypeProjectile:
		// Projectiles are neither advanced nor expired here; their
		// position, like that of player/NPC-controlled entities, changes
		// only through EntityMoved events (client-authoritative intent,
		// server-validated).
	default:
	}
}

// applyEvent runs one event's pure transform and records the outcome. A
// panic inside the transform is recovered and the event is recorded as
// rejected, so one bad event cannot take down the tick.
func (w *World) applyEvent(tickID uint64, e *eventlog.Event) {
	e.TickID = tickID
	reason, ok := func() (reason string, ok bool) {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("event transform panicked", map[string]interface{}{"eventId": e.EventID, "panic": fmt.Sprint(r)})
				reason, ok = eventlog.RejectInvalidPayload, false
			}
		}()
		return w.transform(e)
	}()
	e.WasApplied = ok
	if !ok {
		e.RejectionReason = reason
	}
	w.Events.RecordApplied(e)
}

// transform applies one event's state change. Returns ("", true) on
// success or (rejectionReason, false) on failure; state is left untouched
// on failure.
func (w *World) transform(e *eventlog.Event) (string, bool) {
	switch e.Type {
	case eventlog.EntitySpawned:
		return w.applySpawn(e)
	case eventlog.EntityRemoved, eventlog.EntityDied:
		return w.applyRemoval(e)
	case eventlog.EntityMoved, eventlog.EntityTeleported:
		return w.applyMove(e)
	case eventlog.DamageDealt:
		return w.applyDamage(e)
	case eventlog.HealingApplied:
		return w.applyHealing(e)
	case eventlog.InventoryChanged, eventlog.ItemDropped, eventlog.ItemPickedUp,
		eventlog.ItemEquipped, eventlog.ItemUnequipped:
		return w.applyInventoryMutation(e)
	case eventlog.FactionRelationChanged, eventlog.FactionMemberJoined, eventlog.FactionMemberLeft:
		return w.factions.Apply(e)
	case eventlog.ZoneChanged:
		return w.zones.Apply(e, w.Registry)
	case eventlog.TimeAdvanced:
		return w.applyTimeAdvanced(e)
	case eventlog.CombatAction, eventlog.StatusEffectApplied, eventlog.StatusEffectRemoved,
		eventlog.InteractionStarted, eventlog.InteractionCompleted, eventlog.BuildingPlaced,
		eventlog.BuildingDestroyed, eventlog.PlayerConnected, eventlog.PlayerDisconnected,
		eventlog.PlayerControlTransferred:
		// No additional world-state transform beyond recording; these are
		// informational/broadcast-triggering events the interest manager
		// and session manager react to directly.
		return "", true
	default:
		return eventlog.RejectUnknownType, false
	}
}

func (w *World) ownerCheck(e *eventlog.Event, target *entity.Entity) bool {
	return e.SourcePlayerID == 0 || target.Owner == e.SourcePlayerID
}

func (w *World) applySpawn(e *eventlog.Event) (string, bool) {
	id := e.EntityID
	if id == 0 {
		id = w.Registry.Allocate()
	}
	ent := &entity.Entity{NetID: id, Owner: e.SourcePlayerID, Active: true}
	if data := e.Data; data != nil {
		if t, ok := data["type"].(float64); ok {
			ent.Type = entity.Type(uint8(t))
		}
		if name, ok := data["templateName"].(string); ok {
			ent.TemplateName = name
		}
		if zone, ok := data["zone"].(string); ok {
			ent.Zone = zone
		}
		x, xok := data["x"].(float64)
		y, yok := data["y"].(float64)
		z, zok := data["z"].(float64)
		if xok && yok && zok {
			ent.Position = entity.Vec3{X: float32(x), Y: float32(y), Z: float32(z)}
		}
	}
	if err := w.Registry.Register(ent); err != nil {
		return eventlog.RejectInvalidPayload, false
	}
	e.EntityID = id
	return "", true
}

func (w *World) applyRemoval(e *eventlog.Event) (string, bool) {
	ent := w.Registry.Get(e.EntityID)
	if ent == nil {
		return eventlog.RejectMissingEntity, false
	}
	if !w.ownerCheck(e, ent) {
		return eventlog.RejectPermissionDenied, false
	}
	ent.MarkedForRemoval = true
	ent.Active = false
	return "", true
}

func (w *World) applyMove(e *eventlog.Event) (string, bool) {
	ent := w.Registry.Get(e.EntityID)
	if ent == nil {
		return eventlog.RejectMissingEntity, false
	}
	if !w.ownerCheck(e, ent) {
		return eventlog.RejectPermissionDenied, false
	}
	data := e.Data
	if data == nil {
		return eventlog.RejectInvalidPayload, false
	}
	x, xok := data["x"].(float64)
	y, yok := data["y"].(float64)
	z, zok := data["z"].(float64)
	if !xok || !yok || !zok {
		return eventlog.RejectInvalidPayload, false
	}
	ent.Position = entity.Vec3{X: float32(x), Y: float32(y), Z: float32(z)}
	if rot, ok := data["rot"].(float64); ok {
		ent.Rotation = codec.DecompressQuat(uint32(rot))
	}
	return "", true
}

func (w *World) applyDamage(e *eventlog.Event) (string, bool) {
	target := w.Registry.Get(e.TargetEntityID)
	if target == nil {
		return eventlog.RejectMissingEntity, false
	}
	source := w.Registry.Get(e.EntityID)
	if !w.cfg.PVPEnabled && source != nil && target.Owner != 0 && source.Owner != 0 {
		return eventlog.RejectPermissionDenied, false
	}
	amount, ok := e.Data["amount"].(float64)
	if !ok {
		return eventlog.RejectInvalidPayload, false
	}
	target.Health.Current -= float32(amount)
	if target.Health.Current <= -100 {
		target.MarkedForRemoval = true
		target.Active = false
	}
	return "", true
}

func (w *World) applyHealing(e *eventlog.Event) (string, bool) {
	target := w.Registry.Get(e.EntityID)
	if target == nil {
		return eventlog.RejectMissingEntity, false
	}
	amount, ok := e.Data["amount"].(float64)
	if !ok {
		return eventlog.RejectInvalidPayload, false
	}
	target.Health.Current += float32(amount)
	if target.Health.Current > target.Health.Max && target.Health.Max > 0 {
		target.Health.Current = target.Health.Max
	}
	return "", true
}

func (w *World) applyInventoryMutation(e *eventlog.Event) (string, bool) {
	ent := w.Registry.Get(e.EntityID)
	if ent == nil {
		return eventlog.RejectMissingEntity, false
	}
	if !w.ownerCheck(e, ent) {
		return eventlog.RejectPermissionDenied, false
	}
	item, ok := e.Data["item"].(string)
	if !ok {
		return eventlog.RejectInvalidPayload, false
	}
	switch e.Type {
	case eventlog.ItemPickedUp, eventlog.InventoryChanged:
		ent.Inventory = append(ent.Inventory, item)
	case eventlog.ItemDropped:
		ent.Inventory = removeFirst(ent.Inventory, item)
	case eventlog.ItemEquipped:
		if ent.Equipment == nil {
			ent.Equipment = make(map[string]string)
		}
		slot, _ := e.Data["slot"].(string)
		if slot == "" {
			return eventlog.RejectInvalidPayload, false
		}
		ent.Equipment[slot] = item
	case eventlog.ItemUnequipped:
		slot, _ := e.Data["slot"].(string)
		delete(ent.Equipment, slot)
	}
	return "", true
}

// applyTimeAdvanced handles the operator-driven variants of TimeAdvanced
// (settime/setspeed/pause/unpause/setweather/nextday in the admin
// interpreter): these carry a world-level control knob in Data rather than
// a per-entity mutation, so they can still be event-sourced and replayed
// like everything else instead of reaching around the pipeline.
func (w *World) applyTimeAdvanced(e *eventlog.Event) (string, bool) {
	data := e.Data
	if data == nil {
		return "", true // the per-tick day-roll bookkeeping event carries no Data
	}
	if v, ok := data["setHours"].(float64); ok {
		h := math.Mod(v, 24)
		if h < 0 {
			h += 24
		}
		w.worldHours = h
	}
	if v, ok := data["advanceDays"].(float64); ok {
		w.dayCount += uint64(v)
		w.worldHours = 0
	}
	if v, ok := data["weather"].(string); ok {
		w.weather = v
	}
	if v, ok := data["pause"].(bool); ok {
		if v && w.prePauseSpeed == 0 {
			w.prePauseSpeed = w.cfg.GameSpeed
			w.cfg.GameSpeed = 0
		} else if !v && w.prePauseSpeed != 0 {
			w.cfg.GameSpeed = w.prePauseSpeed
			w.prePauseSpeed = 0
		}
	}
	if v, ok := data["setGameSpeed"].(float64); ok {
		w.cfg.GameSpeed = v
	}
	return "", true
}

func removeFirst(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// ReplayToTick restores world state from the nearest snapshot at or
// before target and reapplies every logged event with tick-id in
// (snapshot.tick, target], per the replay contract. It mutates w in
// place and must not be called while the tick clock is driving w.
func (w *World) ReplayToTick(target uint64) error {
	snap, ok := w.Snaps.NearestAtOrBefore(target)
	if !ok {
		return fmt.Errorf("world: no snapshot at or before tick %d", target)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.restoreFromSnapshotLocked(snap)

	events := w.Events.EventsInRange(snap.TickID+1, target)
	for _, e := range events {
		if !e.WasApplied {
			continue
		}
		// Replaying applies the already-recorded event's transform again
		// without re-appending to the event log: the log entry already
		// exists from the original application.
		clone := *e
		w.transform(&clone)
	}
	atomic.StoreUint64(&w.currentTick, target)
	return nil
}

func (w *World) restoreFromSnapshotLocked(snap *snapshot.Snapshot) {
	w.Registry = entity.NewRegistry()
	for _, es := range snap.Entities {
		ent := &entity.Entity{
			NetID:     es.NetID,
			Type:      es.Type,
			Owner:     es.Owner,
			Position:  es.Position,
			Rotation:  es.Rotation,
			Health:    es.Health,
			Inventory: append([]string(nil), es.Inventory...),
			Faction:   es.Faction,
			Zone:      es.Zone,
			Active:    true,
		}
		if es.Equipment != nil {
			ent.Equipment = make(map[string]string, len(es.Equipment))
			for k, v := range es.Equipment {
				ent.Equipment[k] = v
			}
		}
		_ = w.Registry.Register(ent)
	}
	w.worldHours = snap.WorldTimeHours
	w.stateVersion.Store(snap.StateVersion)
	w.factions.Restore(snap.FactionRelations)
	w.zones.Restore(snap.Zones)
	w.economy.Restore(snap.EconomyPrices)
}
