package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(b *Bus) []Event {
	var got []Event
	for ev := range b.Events() {
		got = append(got, ev)
	}
	return got
}

func TestBus_DeliversInOrder(t *testing.T) {
	b := NewBus(16)
	e := For(b, "u/r")
	e.Started()
	e.Log("info", "hello")
	e.Finished()
	b.Close()

	got := collect(b)
	require.Len(t, got, 3)
	assert.Equal(t, []Kind{Started, Log, Finished}, []Kind{got[0].Kind, got[1].Kind, got[2].Kind})
	assert.Equal(t, "u/r", got[1].Name)
	assert.Equal(t, "hello", got[1].Message)
	assert.False(t, got[1].Time.IsZero())
}

func TestBus_EmitNeverBlocks(t *testing.T) {
	b := NewBus(0)
	e := For(b, "u/r")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			e.Log("debug", "line")
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Emit blocked without a consumer")
	}
	b.Close()
	assert.Len(t, collect(b), 10000)
}

func TestBus_CoalescesQueuedProgress(t *testing.T) {
	b := NewBus(0)
	a := For(b, "a")
	other := For(b, "b")

	// Nobody reads yet, so everything but the first event stays queued.
	a.Started()
	time.Sleep(20 * time.Millisecond)
	for i := int64(1); i <= 100; i++ {
		a.Progress(i, 100)
	}
	other.Progress(1, 2)
	a.Progress(100, 100)
	a.Finished()
	b.Close()

	got := collect(b)
	var kinds []Kind
	for _, ev := range got {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []Kind{Started, Progress, Progress, Progress, Finished}, kinds)
	assert.Equal(t, int64(100), got[1].Current, "newest progress wins")
	assert.Equal(t, "b", got[2].Name)
}

func TestBus_DropsAfterClose(t *testing.T) {
	b := NewBus(4)
	b.Close()
	For(b, "x").Started()
	assert.Empty(t, collect(b))
}

func TestEmitter_FailedCarriesError(t *testing.T) {
	var got Event
	e := For(SinkFunc(func(ev Event) { got = ev }), "u/r")
	err := errors.New("boom")
	e.Failed(err)
	assert.Equal(t, Failed, got.Kind)
	assert.Equal(t, err, got.Err)
	assert.Equal(t, "boom", got.Message)
	assert.True(t, got.Kind.Terminal())
	assert.False(t, Progress.Terminal())
}

func TestEmitter_Listener(t *testing.T) {
	var got []Event
	l := For(SinkFunc(func(ev Event) { got = append(got, ev) }), "n").Listener()
	l.Log("warn", "careful")
	l.Progress(3, 9)
	require.Len(t, got, 2)
	assert.Equal(t, "warn", got[0].Level)
	assert.Equal(t, int64(9), got[1].Total)
}

func TestFor_NilSink(t *testing.T) {
	For(nil, "x").Started()
}
