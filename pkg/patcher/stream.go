package patcher

import (
	"encoding/json"
	"strconv"
	"strings"
)

// EventType distinguishes the two kinds of structured patcher output.
type EventType string

const (
	EventLog      EventType = "log"
	EventProgress EventType = "progress"
)

// Event is one line of the patcher's JSON output stream.
type Event struct {
	Type     EventType `json:"type"`
	Level    string    `json:"level,omitempty"`
	Message  string    `json:"message,omitempty"`
	Progress *float64  `json:"progress,omitempty"`
}

// ParseEvent decodes one output line. ok is false for lines that are not
// structured events.
func ParseEvent(line string) (ev Event, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] != '{' {
		return Event{}, false
	}
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return Event{}, false
	}
	return ev, ev.Type == EventLog || ev.Type == EventProgress
}

var sizeUnits = map[string]float64{
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
}

// ParseSizeLine extracts the byte total from a "Downloading <N> <Unit>" log
// message. Unknown units count as bytes.
func ParseSizeLine(message string) (int64, bool) {
	if !strings.HasPrefix(message, "Downloading") {
		return 0, false
	}
	parts := strings.Fields(message)
	if len(parts) < 2 {
		return 0, false
	}
	size, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || size < 0 {
		return 0, false
	}
	mult := 1.0
	if len(parts) > 2 {
		if m, ok := sizeUnits[parts[2]]; ok {
			mult = m
		}
	}
	return int64(size * mult), true
}

// ByteCounter turns a stream of Events into byte progress. The total stays 1
// until a size line is seen.
type ByteCounter struct {
	total   int64
	current int64
}

// NewByteCounter returns a counter with the default total of 1.
func NewByteCounter() *ByteCounter {
	return &ByteCounter{total: 1}
}

// Total returns the currently inferred byte total.
func (c *ByteCounter) Total() int64 {
	return c.total
}

// Observe feeds ev to the counter and reports whether it produced a progress
// update.
func (c *ByteCounter) Observe(ev Event) (current, total int64, ok bool) {
	switch ev.Type {
	case EventLog:
		if n, found := ParseSizeLine(ev.Message); found && n > 0 {
			c.total = n
		}
		return 0, 0, false
	case EventProgress:
		if ev.Progress == nil {
			return 0, 0, false
		}
		p := *ev.Progress
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		c.current = int64(p * float64(c.total))
		return c.current, c.total, true
	}
	return 0, 0, false
}

// Complete returns the final (total, total) pair.
func (c *ByteCounter) Complete() (int64, int64) {
	c.current = c.total
	return c.total, c.total
}
