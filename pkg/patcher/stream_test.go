package patcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	ev, ok := ParseEvent(`{"type":"log","level":"info","message":"Downloading 2.5 MiB"}`)
	require.True(t, ok)
	assert.Equal(t, EventLog, ev.Type)
	assert.Equal(t, "Downloading 2.5 MiB", ev.Message)

	ev, ok = ParseEvent(`  {"type":"progress","progress":0.25}`)
	require.True(t, ok)
	require.NotNil(t, ev.Progress)
	assert.InDelta(t, 0.25, *ev.Progress, 1e-9)

	for _, line := range []string{"", "plain text", `{"type":"result"}`, `{broken`} {
		_, ok := ParseEvent(line)
		assert.False(t, ok, line)
	}
}

func TestParseSizeLine(t *testing.T) {
	tests := []struct {
		msg  string
		want int64
		ok   bool
	}{
		{"Downloading 1 KiB", 1024, true},
		{"Downloading 2.5 MiB", 2621440, true},
		{"Downloading 3 GiB", 3 << 30, true},
		{"Downloading 1 TiB", 1 << 40, true},
		{"Downloading 512 B", 512, true},
		{"Downloading 100", 100, true},
		{"Downloading lots", 0, false},
		{"Patching 1 MiB", 0, false},
		{"Downloading", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, ok := ParseSizeLine(tt.msg)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestByteCounter(t *testing.T) {
	c := NewByteCounter()
	assert.Equal(t, int64(1), c.Total())

	half := 0.5
	cur, total, ok := c.Observe(Event{Type: EventProgress, Progress: &half})
	require.True(t, ok)
	assert.Equal(t, int64(0), cur)
	assert.Equal(t, int64(1), total)

	_, _, ok = c.Observe(Event{Type: EventLog, Message: "Downloading 4 KiB"})
	assert.False(t, ok)
	assert.Equal(t, int64(4096), c.Total())

	cur, total, ok = c.Observe(Event{Type: EventProgress, Progress: &half})
	require.True(t, ok)
	assert.Equal(t, int64(2048), cur)
	assert.Equal(t, int64(4096), total)

	over := 1.7
	cur, _, _ = c.Observe(Event{Type: EventProgress, Progress: &over})
	assert.Equal(t, int64(4096), cur)

	cur, total = c.Complete()
	assert.Equal(t, cur, total)
}

func TestByteCounter_IgnoresEmptyProgress(t *testing.T) {
	c := NewByteCounter()
	_, _, ok := c.Observe(Event{Type: EventProgress})
	assert.False(t, ok)
}
