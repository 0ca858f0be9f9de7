package logger

import (
	"encoding/json"
	"sync"
)

const defaultStreamCapacity = 500

// Broadcaster pushes parsed log entries to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{})
}

// Entry is a structured log line captured for streaming and the
// recent-logs API.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Stream captures the zerolog JSON output into a ring buffer and relays
// each entry to a hub once one is attached. It implements io.Writer and
// is passed to New as an extra writer.
type Stream struct {
	hub    Broadcaster
	buffer *RingBuffer[Entry]
	mu     sync.RWMutex
}

// NewStream creates a log stream holding up to capacity recent entries.
func NewStream(capacity int) *Stream {
	if capacity <= 0 {
		capacity = defaultStreamCapacity
	}
	return &Stream{buffer: NewRingBuffer[Entry](capacity)}
}

// AttachHub connects the hub that receives live entries. Entries written
// before attachment remain available through Recent.
func (s *Stream) AttachHub(hub Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hub = hub
}

// Write implements io.Writer. It receives JSON log entries from zerolog.
func (s *Stream) Write(p []byte) (n int, err error) {
	n = len(p)

	entry, parseErr := parseEntry(p)
	if parseErr != nil {
		return n, nil //nolint:nilerr // malformed entries are dropped
	}

	s.buffer.Push(entry)

	s.mu.RLock()
	hub := s.hub
	s.mu.RUnlock()

	if hub != nil {
		hub.Broadcast("logs:entry", entry)
	}

	return n, nil
}

// Recent returns up to n buffered entries, oldest first. A non-positive
// n returns everything in the buffer.
func (s *Stream) Recent(n int) []Entry {
	if n <= 0 {
		return s.buffer.GetAll()
	}
	return s.buffer.Tail(n)
}

// parseEntry decodes one zerolog JSON line. The well-known keys become
// typed fields; whatever else the event carried lands in Fields.
func parseEntry(data []byte) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Timestamp: takeString(raw, "time"),
		Level:     takeString(raw, "level"),
		Component: takeString(raw, "component"),
		Message:   takeString(raw, "message"),
	}
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, nil
}

// takeString removes key from raw and returns its string value, "" when
// the key is absent or holds a non-string.
func takeString(raw map[string]any, key string) string {
	v, ok := raw[key].(string)
	if ok {
		delete(raw, key)
	}
	return v
}
