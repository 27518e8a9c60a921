package interest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"worldcore/codec"
	"worldcore/entity"
)

func TestAOIEnterAndExit(t *testing.T) {
	m := NewManager(200, 0.1)
	observer := entity.Vec3{X: 0, Y: 0, Z: 0}
	npc := &entity.Entity{NetID: 5, Type: entity.TypeNPC, Active: true, Position: entity.Vec3{X: 10, Y: 0, Z: 0}}

	update := m.Compute("sess-1", observer, []*entity.Entity{npc})
	assert.Len(t, update.Spawns, 1)
	assert.Equal(t, uint32(5), update.Spawns[0].NetID)
	assert.Empty(t, update.Despawns)

	// Within AOI again, unmoved: no spawn, no batch entry.
	update = m.Compute("sess-1", observer, []*entity.Entity{npc})
	assert.Empty(t, update.Spawns)
	assert.Empty(t, update.Batch)

	// Moves far out of radius: exit.
	npc.Position = entity.Vec3{X: 5000, Y: 0, Z: 0}
	update = m.Compute("sess-1", observer, []*entity.Entity{npc})
	assert.Equal(t, []uint32{5}, update.Despawns)
}

func TestAOIMoveBeyondThresholdBatches(t *testing.T) {
	m := NewManager(200, 0.1)
	observer := entity.Vec3{X: 0, Y: 0, Z: 0}
	npc := &entity.Entity{NetID: 7, Type: entity.TypeNPC, Active: true, Position: entity.Vec3{X: 10, Y: 0, Z: 0}}

	m.Compute("sess-1", observer, []*entity.Entity{npc}) // enter

	npc.Position = entity.Vec3{X: 10.5, Y: 0, Z: 0} // > 0.1m threshold
	update := m.Compute("sess-1", observer, []*entity.Entity{npc})
	assert.Len(t, update.Batch, 1)
	assert.Equal(t, uint32(7), update.Batch[0].EntityID)
}

func TestAOISmallMoveNotBroadcast(t *testing.T) {
	m := NewManager(200, 0.1)
	observer := entity.Vec3{X: 0, Y: 0, Z: 0}
	npc := &entity.Entity{NetID: 9, Type: entity.TypeNPC, Active: true, Position: entity.Vec3{X: 10, Y: 0, Z: 0}}

	m.Compute("sess-1", observer, []*entity.Entity{npc})

	npc.Position = entity.Vec3{X: 10.01, Y: 0, Z: 0} // below POS_CHANGE_THRESHOLD
	update := m.Compute("sess-1", observer, []*entity.Entity{npc})
	assert.Empty(t, update.Batch)
}

func TestBuildingAlwaysInAOI(t *testing.T) {
	m := NewManager(200, 0.1)
	observer := entity.Vec3{X: 0, Y: 0, Z: 0}
	building := &entity.Entity{NetID: 11, Type: entity.TypeBuilding, Active: true, Position: entity.Vec3{X: 100000, Y: 0, Z: 0}}

	update := m.Compute("sess-1", observer, []*entity.Entity{building})
	assert.Len(t, update.Spawns, 1)
}

// TestAOIBatchOverflowCarriesOverNextTick checks §4.6's 255-entry batch cap:
// moves past the cap are not silently dropped, they are re-queued (and
// re-compared against their pre-move position) on the following tick.
func TestAOIBatchOverflowCarriesOverNextTick(t *testing.T) {
	m := NewManager(200, 0.1)
	observer := entity.Vec3{X: 0, Y: 0, Z: 0}

	entities := make([]*entity.Entity, codec.MaxBatchEntries+1)
	for i := range entities {
		entities[i] = &entity.Entity{
			NetID:    uint32(i + 1),
			Type:     entity.TypeNPC,
			Active:   true,
			Position: entity.Vec3{X: float32(i) * 0.1, Y: 0, Z: 0},
		}
	}
	m.Compute("sess-1", observer, entities) // enter, no moves yet

	for _, e := range entities {
		e.Position.X += 1 // every entity moves past the threshold
	}
	update := m.Compute("sess-1", observer, entities)
	assert.Len(t, update.Batch, codec.MaxBatchEntries, "batch must not exceed the wire cap")

	// The one entity dropped by the cap kept its pre-move stored position,
	// so it must reappear in the very next tick's batch without moving
	// again.
	update = m.Compute("sess-1", observer, entities)
	assert.Len(t, update.Batch, 1, "the entity left over from the cap must carry over, not vanish")
}

func TestForgetClearsState(t *testing.T) {
	m := NewManager(200, 0.1)
	observer := entity.Vec3{}
	npc := &entity.Entity{NetID: 3, Type: entity.TypeNPC, Active: true, Position: entity.Vec3{X: 1}}
	m.Compute("sess-1", observer, []*entity.Entity{npc})
	m.Forget("sess-1")

	update := m.Compute("sess-1", observer, []*entity.Entity{npc})
	assert.Len(t, update.Spawns, 1, "after Forget, the entity must be re-announced as a fresh enter")
}
