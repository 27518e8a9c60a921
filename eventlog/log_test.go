package eventlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestSubmitAssignsMonotonicIDs(t *testing.T) {
	l := newTestLog(t)
	id1 := l.Submit(&Event{Type: EntityMoved})
	id2 := l.Submit(&Event{Type: EntityMoved})
	require.Equal(t, id1+1, id2)
}

func TestDrainPendingReturnsAndClears(t *testing.T) {
	l := newTestLog(t)
	l.Submit(&Event{Type: EntitySpawned})
	l.Submit(&Event{Type: EntityMoved})

	drained := l.DrainPending()
	require.Len(t, drained, 2)
	require.Empty(t, l.DrainPending())
}

func TestRecordAppliedIndexesByEntityAndRange(t *testing.T) {
	l := newTestLog(t)
	e1 := &Event{EventID: 1, Type: EntityMoved, EntityID: 7, TickID: 10}
	e2 := &Event{EventID: 2, Type: DamageDealt, EntityID: 7, TickID: 12}
	e3 := &Event{EventID: 3, Type: EntityMoved, EntityID: 9, TickID: 15}
	l.RecordApplied(e1)
	l.RecordApplied(e2)
	l.RecordApplied(e3)

	require.Len(t, l.ByEntity(7, 10), 2)
	require.Len(t, l.ByEntity(9, 10), 1)

	inRange := l.EventsInRange(10, 12)
	require.Len(t, inRange, 2)

	recent := l.Recent(2)
	require.Len(t, recent, 2)
	require.Equal(t, uint64(2), recent[0].EventID)
	require.Equal(t, uint64(3), recent[1].EventID)
}

func TestCleanupTrimsOldEvents(t *testing.T) {
	l := newTestLog(t)
	l.SetRetention(5)
	l.RecordApplied(&Event{EventID: 1, TickID: 1})
	l.RecordApplied(&Event{EventID: 2, TickID: 100})

	l.Cleanup(105)

	require.Len(t, l.Recent(10), 1)
	require.Equal(t, uint64(2), l.Recent(10)[0].EventID)
}

func TestReadAllRoundTripsAppendedEvents(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	l.RecordApplied(&Event{EventID: 1, Type: EntitySpawned, EntityID: 3, TickID: 1, WasApplied: true})
	l.RecordApplied(&Event{EventID: 2, Type: EntityRemoved, EntityID: 3, TickID: 2, WasApplied: true})
	require.NoError(t, l.Close())

	events, err := ReadAll(dir + "/events.jsonl")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, EntitySpawned, events[0].Type)
}
