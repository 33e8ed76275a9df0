// Package events carries progress, log and lifecycle notifications from
// long-running operations to whoever renders them.
package events

import (
	"time"

	"github.com/fulmenhq/pkgsync/pkg/patcher"
)

// Kind classifies an Event.
type Kind string

const (
	Started  Kind = "started"
	Progress Kind = "progress"
	Log      Kind = "log"
	Finished Kind = "finished"
	Failed   Kind = "failed"
	Aborted  Kind = "aborted"
)

// Terminal reports whether k ends an operation.
func (k Kind) Terminal() bool {
	return k == Finished || k == Failed || k == Aborted
}

// Event is one notification. Name identifies the package (or phase, e.g.
// "user/repo: metadata") the event belongs to.
type Event struct {
	Kind    Kind      `json:"kind"`
	Name    string    `json:"name"`
	Time    time.Time `json:"time"`
	Level   string    `json:"level,omitempty"`
	Message string    `json:"message,omitempty"`
	Current int64     `json:"current,omitempty"`
	Total   int64     `json:"total,omitempty"`
	Err     error     `json:"-"`
}

// Sink consumes events. Emit must not block the caller for long.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Emitter stamps events for one name and forwards them to a Sink.
type Emitter struct {
	Sink Sink
	Name string
}

// For returns an Emitter for name. A nil sink discards.
func For(sink Sink, name string) Emitter {
	if sink == nil {
		sink = Discard
	}
	return Emitter{Sink: sink, Name: name}
}

func (e Emitter) emit(ev Event) {
	ev.Name = e.Name
	ev.Time = time.Now()
	e.Sink.Emit(ev)
}

func (e Emitter) Started()              { e.emit(Event{Kind: Started}) }
func (e Emitter) Finished()             { e.emit(Event{Kind: Finished}) }
func (e Emitter) Aborted()              { e.emit(Event{Kind: Aborted}) }
func (e Emitter) Failed(err error)      { e.emit(Event{Kind: Failed, Err: err, Message: errString(err)}) }
func (e Emitter) Log(level, msg string) { e.emit(Event{Kind: Log, Level: level, Message: msg}) }

func (e Emitter) Progress(current, total int64) {
	e.emit(Event{Kind: Progress, Current: current, Total: total})
}

// Listener exposes the emitter as a patcher.Listener.
func (e Emitter) Listener() patcher.Listener {
	return patcher.ListenerFuncs{OnLog: e.Log, OnProgress: e.Progress}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
