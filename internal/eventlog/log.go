// Package eventlog implements the append-only event log that is the
// sole source of truth for conversation history, goals, and tool-call
// activity. See pkg/models for the Event and derived-view types.
package eventlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

// Log is a totally ordered, append-only sequence of events. A Log is
// safe for concurrent use, though the agent core itself is
// single-threaded cooperative (see spec §5) and does not rely on that
// safety for correctness.
type Log struct {
	mu     sync.RWMutex
	events []models.Event
	nextSeq uint64
	now    func() time.Time
}

// New creates an empty event log. now is injectable for deterministic
// tests; if nil, time.Now is used.
func New(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now}
}

// Append assigns an id and sequence number to a new event and appends
// it to the log. Append never fails.
func (l *Log) Append(typ models.EventType, data models.EventData, source models.EventSource) models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.nextSeq
	l.nextSeq++

	ts := l.now()
	ev := models.Event{
		ID:        fmt.Sprintf("evt_%d_%d", ts.UnixNano(), seq),
		Seq:       seq,
		Timestamp: ts,
		Type:      typ,
		Source:    source,
		Data:      data,
	}
	l.events = append(l.events, ev)
	return ev
}

// Emit implements agent.EventSink so a Log can be wired directly into
// the core's event-sink fan-out: any component that only knows about
// EventSink (tracing, UI relays) can observe appends as they happen
// without the log's append-only contract changing. Pre-sequenced
// events (e.g. replayed from another log) are accepted as-is; events
// with Seq == 0 and no prior append are assigned the next sequence.
func (l *Log) Emit(_ context.Context, e models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	if e.Seq >= l.nextSeq {
		l.nextSeq = e.Seq + 1
	}
}

// Events returns a copy of the full event sequence.
func (l *Log) Events() []models.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of events currently in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// At returns the event at the given sequence number, if present.
func (l *Log) At(seq uint64) (models.Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.events {
		if e.Seq == seq {
			return e, true
		}
	}
	return models.Event{}, false
}
