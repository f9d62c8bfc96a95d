package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

// ToJSONL serializes the log as one JSON-encoded event per line, UTF-8.
func (l *Log) ToJSONL() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range l.events {
		if err := enc.Encode(e); err != nil {
			return nil, fmt.Errorf("eventlog: encode event %s: %w", e.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// FromJSONL decodes a JSONL event stream into a new Log. Blank or
// whitespace-only lines are skipped. A malformed line fails the whole
// decode: the log is never partially materialized.
func FromJSONL(data []byte, now func() time.Time) (*Log, error) {
	l := New(now)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var maxSeq uint64
	hasEvents := false
	var decoded []models.Event

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var ev models.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, fmt.Errorf("eventlog: malformed event at line %d: %w", lineNo, err)
		}
		decoded = append(decoded, ev)
		if !hasEvents || ev.Seq > maxSeq {
			maxSeq = ev.Seq
		}
		hasEvents = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: scan failed: %w", err)
	}

	l.events = decoded
	if hasEvents {
		l.nextSeq = maxSeq + 1
	}
	return l, nil
}
