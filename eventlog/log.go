package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"worldcore/logging"
)

// Log is the event log: a monotonic id allocator, a pending queue the
// simulator drains once per tick, an in-memory applied window for range
// queries, and an append-only on-disk mirror.
type Log struct {
	nextID uint64 // atomic

	mu      sync.Mutex
	pending []*Event
	applied []*Event
	byID    map[uint64]*Event
	byEntity map[uint32][]*Event

	file *os.File

	// retainTicks bounds the in-memory applied window; the on-disk file is
	// never truncated by the running process.
	retainTicks uint64
}

// Open creates or appends to the event log file under dir.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("eventlog: create dir: %w", err)
	}
	path := filepath.Join(dir, "events.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %q: %w", path, err)
	}
	return &Log{
		nextID:      0,
		byID:        make(map[uint64]*Event),
		byEntity:    make(map[uint32][]*Event),
		file:        f,
		retainTicks: 50_000, // ~40 minutes of history at 20Hz; tunable via SetRetention
	}, nil
}

// SetRetention overrides the in-memory retention window, in ticks.
func (l *Log) SetRetention(ticks uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retainTicks = ticks
}

// Submit assigns a monotonic event-id, stamps the submit time, and enqueues
// the event for the simulator to apply on its next tick. Threadsafe; safe
// to call from a transport goroutine. Returns the event-id immediately —
// the event is not yet applied.
func (l *Log) Submit(e *Event) uint64 {
	id := atomic.AddUint64(&l.nextID, 1)
	e.EventID = id
	e.SubmittedAt = time.Now()
	l.mu.Lock()
	l.pending = append(l.pending, e)
	l.mu.Unlock()
	return id
}

// DrainPending removes and returns every event submitted since the last
// drain, in submission order. Called once per tick by the simulator.
func (l *Log) DrainPending() []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil
	}
	out := l.pending
	l.pending = nil
	return out
}

// RecordApplied appends an event (applied or rejected) to the in-memory
// window and the on-disk append log. Called by the simulator after it
// decides an event's outcome.
func (l *Log) RecordApplied(e *Event) {
	l.mu.Lock()
	l.applied = append(l.applied, e)
	l.byID[e.EventID] = e
	if e.EntityID != 0 {
		l.byEntity[e.EntityID] = append(l.byEntity[e.EntityID], e)
	}
	l.mu.Unlock()

	if b, err := json.Marshal(e); err == nil {
		if _, err := l.file.Write(append(b, '\n')); err != nil {
			logging.Error("eventlog: append failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// EventsInRange returns applied events with fromTick <= tickId <= toTick,
// ordered by tick then event-id.
func (l *Log) EventsInRange(fromTick, toTick uint64) []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Event, 0)
	for _, e := range l.applied {
		if e.TickID >= fromTick && e.TickID <= toTick {
			out = append(out, e)
		}
	}
	return out
}

// Recent returns the most recent n applied events.
func (l *Log) Recent(n int) []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.applied) {
		n = len(l.applied)
	}
	out := make([]*Event, n)
	copy(out, l.applied[len(l.applied)-n:])
	return out
}

// ByEntity returns the most recent n applied events touching entityID.
func (l *Log) ByEntity(entityID uint32, n int) []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := l.byEntity[entityID]
	if n > len(events) {
		n = len(events)
	}
	out := make([]*Event, n)
	copy(out, events[len(events)-n:])
	return out
}

// Cleanup trims the in-memory applied window to events at or after tick
// currentTick-retainTicks. Mirrors ReliableSync.cleanup's watermark
// policy; the disk log is untouched.
func (l *Log) Cleanup(currentTick uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if currentTick <= l.retainTicks {
		return
	}
	cutoff := currentTick - l.retainTicks
	idx := 0
	for idx < len(l.applied) && l.applied[idx].TickID < cutoff {
		delete(l.byID, l.applied[idx].EventID)
		idx++
	}
	if idx == 0 {
		return
	}
	l.applied = l.applied[idx:]
	// byEntity slices are not trimmed here, so ByEntity can still return
	// events older than the cutoff; a full rebuild would require an O(N)
	// entity scan.
}

// Close flushes and closes the on-disk log.
func (l *Log) Close() error {
	return l.file.Close()
}

// ReadAll replays every line of the on-disk log at path, skipping
// malformed lines, for external tooling/tests.
func ReadAll(path string) ([]*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []*Event
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err == nil {
			events = append(events, &e)
		}
	}
	return events, scanner.Err()
}
