package world

import (
	"fmt"
	"sync"

	"worldcore/entity"
	"worldcore/eventlog"
)

// npcZone is a named spawn region: NPCs tagged to it are kept topped up to
// maxPopulation, respawning one per spawnIntervalTicks while under cap.
// Grounded on dragonfly's loader-area bookkeeping (world/tick.go) for the
// shape of "a named region the tick loop checks every pass", adapted from
// chunk-loader membership to an NPC spawn budget.
type npcZone struct {
	Name                string
	Center              entity.Vec3
	Radius              float64
	Template            uint32
	MaxPopulation       int
	SpawnIntervalTicks  uint64
}

// ZoneState owns the set of NPC spawn zones the per-tick pipeline's step 3
// drives, and doubles as the destination for ZoneChanged events that move
// an entity between named regions.
type ZoneState struct {
	mu    sync.Mutex
	zones map[string]*npcZone
}

func newZoneState() ZoneState {
	return ZoneState{zones: make(map[string]*npcZone)}
}

// Register adds or replaces a named spawn zone. Intended to be called at
// startup from world configuration, not from event application.
func (z *ZoneState) Register(name string, center entity.Vec3, radius float64, template uint32, maxPop int, spawnIntervalTicks uint64) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.zones[name] = &npcZone{
		Name:               name,
		Center:             center,
		Radius:             radius,
		Template:           template,
		MaxPopulation:      maxPop,
		SpawnIntervalTicks: spawnIntervalTicks,
	}
}

// Update runs the per-tick zone pass (pipeline step 3): for each zone under
// its population cap and due for a spawn this tick, enqueue a spawn event
// via spawnFn rather than registering directly, so NPC spawns remain
// replayable like any other world mutation.
func (z *ZoneState) Update(tickID uint64, reg *entity.Registry, spawnFn func(*eventlog.Event)) {
	z.mu.Lock()
	zones := make([]*npcZone, 0, len(z.zones))
	for _, zn := range z.zones {
		zones = append(zones, zn)
	}
	z.mu.Unlock()

	if len(zones) == 0 {
		return
	}

	population := make(map[string]int, len(zones))
	for _, e := range reg.All() {
		if e.Active && e.Type == entity.TypeNPC && e.Zone != "" {
			population[e.Zone]++
		}
	}

	for _, zn := range zones {
		if population[zn.Name] >= zn.MaxPopulation {
			continue
		}
		if zn.SpawnIntervalTicks == 0 || tickID%zn.SpawnIntervalTicks != 0 {
			continue
		}
		spawnFn(&eventlog.Event{
			Type:           eventlog.EntitySpawned,
			SourcePlayerID: 0,
			Data: map[string]interface{}{
				"type":         float64(entity.TypeNPC),
				"templateName": fmt.Sprintf("npc_%s", zn.Name),
				"templateId":   float64(zn.Template),
				"zone":         zn.Name,
				"x":            float64(zn.Center.X),
				"y":            float64(zn.Center.Y),
				"z":            float64(zn.Center.Z),
			},
		})
	}
}

// Apply handles ZoneChanged: moves the named entity into a new zone tag.
// Used directly by the admin teleport command (§4.9) alongside a movement
// event, and by any NPC AI that crosses a region boundary.
func (z *ZoneState) Apply(e *eventlog.Event, reg *entity.Registry) (string, bool) {
	zone, ok := e.Data["zone"].(string)
	if !ok {
		return eventlog.RejectInvalidPayload, false
	}
	ent := reg.Get(e.EntityID)
	if ent == nil {
		return eventlog.RejectMissingEntity, false
	}
	ent.Zone = zone
	return "", true
}

// Names returns the registered zone names, for snapshot capture.
func (z *ZoneState) Names() []string {
	z.mu.Lock()
	defer z.mu.Unlock()
	out := make([]string, 0, len(z.zones))
	for name := range z.zones {
		out = append(out, name)
	}
	return out
}

// Restore is a no-op: zone definitions are
// static configuration, not per-tick state, so replay does not need to
// reconstruct them from a snapshot's name list.
func (z *ZoneState) Restore(names []string) {}
