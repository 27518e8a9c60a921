package world

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"worldcore/entity"
	"worldcore/eventlog"
	"worldcore/snapshot"
)

func newTestWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	events, err := eventlog.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	snaps, err := snapshot.NewStore(t.TempDir(), 10)
	require.NoError(t, err)

	if cfg.WorldID == "" {
		cfg.WorldID = "test-world"
	}
	return New(cfg, entity.NewRegistry(), events, snaps, nil)
}

func TestSimulateTickAdvancesTickAndStateVersion(t *testing.T) {
	w := newTestWorld(t, Config{})
	result := w.SimulateTick(1.0 / 20)
	require.True(t, result.Success)
	require.Equal(t, uint64(1), result.TickID)
	require.Equal(t, uint64(1), w.CurrentTick())
	require.Equal(t, uint64(1), w.StateVersion())
}

func TestSubmittedSpawnIsAppliedNextTick(t *testing.T) {
	w := newTestWorld(t, Config{})
	w.Submit(&eventlog.Event{
		Type: eventlog.EntitySpawned,
		Data: map[string]interface{}{"type": float64(entity.TypeNPC), "x": 1.0, "y": 0.0, "z": 2.0},
	})
	result := w.SimulateTick(1.0 / 20)
	require.Equal(t, 1, result.EventsProcessed)
	require.Equal(t, 1, w.Registry.Count())
}

func TestMoveRejectedForNonOwner(t *testing.T) {
	w := newTestWorld(t, Config{})
	w.Submit(&eventlog.Event{Type: eventlog.EntitySpawned, SourcePlayerID: 1})
	w.SimulateTick(1.0 / 20)

	var entID uint32
	for _, e := range w.Registry.All() {
		entID = e.NetID
	}
	require.NotZero(t, entID)

	w.Submit(&eventlog.Event{
		Type:           eventlog.EntityMoved,
		EntityID:       entID,
		SourcePlayerID: 2, // not the owner
		Data:           map[string]interface{}{"x": 5.0, "y": 0.0, "z": 5.0},
	})
	w.SimulateTick(1.0 / 20)

	moved := w.Registry.Get(entID)
	require.Equal(t, entity.Vec3{}, moved.Position, "a non-owner's move must be rejected, leaving position untouched")
}

func TestMoveWithRotationFieldAppliesPosition(t *testing.T) {
	w := newTestWorld(t, Config{})
	w.Submit(&eventlog.Event{Type: eventlog.EntitySpawned, SourcePlayerID: 1})
	w.SimulateTick(1.0 / 20)

	var entID uint32
	for _, e := range w.Registry.All() {
		entID = e.NetID
	}

	w.Submit(&eventlog.Event{
		Type:           eventlog.EntityMoved,
		EntityID:       entID,
		SourcePlayerID: 1,
		Data:           map[string]interface{}{"x": 1.0, "y": 0.0, "z": 1.0, "rot": float64(0)},
	})
	w.SimulateTick(1.0 / 20)

	moved := w.Registry.Get(entID)
	require.Equal(t, entity.Vec3{X: 1, Y: 0, Z: 1}, moved.Position)
}

func TestDamageRejectedWithoutPVPAcrossOwners(t *testing.T) {
	w := newTestWorld(t, Config{PVPEnabled: false})
	w.Submit(&eventlog.Event{Type: eventlog.EntitySpawned, SourcePlayerID: 1})
	w.Submit(&eventlog.Event{Type: eventlog.EntitySpawned, SourcePlayerID: 2})
	w.SimulateTick(1.0 / 20)

	var attacker, target uint32
	for _, e := range w.Registry.All() {
		if e.Owner == 1 {
			attacker = e.NetID
		} else {
			target = e.NetID
		}
	}

	w.Submit(&eventlog.Event{
		Type:           eventlog.DamageDealt,
		EntityID:       attacker,
		TargetEntityID: target,
		SourcePlayerID: 1,
		Data:           map[string]interface{}{"amount": 50.0},
	})
	w.SimulateTick(1.0 / 20)

	victim := w.Registry.Get(target)
	require.Equal(t, float32(0), victim.Health.Current, "PVP disabled: damage between two player-owned entities must be rejected")
}

func TestDeathMarksEntityForCleanup(t *testing.T) {
	w := newTestWorld(t, Config{PVPEnabled: true})
	w.Submit(&eventlog.Event{Type: eventlog.EntitySpawned})
	w.SimulateTick(1.0 / 20)

	var id uint32
	for _, e := range w.Registry.All() {
		id = e.NetID
	}

	w.Submit(&eventlog.Event{
		Type:     eventlog.DamageDealt,
		TargetEntityID: id,
		Data:     map[string]interface{}{"amount": 500.0},
	})
	result := w.SimulateTick(1.0 / 20)

	require.Equal(t, 1, result.EntitiesCleaned)
	require.Nil(t, w.Registry.Get(id))
}

func TestSnapshotCapturedOnInterval(t *testing.T) {
	w := newTestWorld(t, Config{SnapshotIntervalTicks: 2})
	w.SimulateTick(1.0 / 20)
	w.SimulateTick(1.0 / 20)
	require.Eventually(t, func() bool {
		return w.Snaps.Count() >= 1
	}, 200*time.Millisecond, 5*time.Millisecond)
}
