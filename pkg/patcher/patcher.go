/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package patcher

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProcessLaunch indicates the patcher could not be started at all.
	ErrProcessLaunch = errors.New("failed to launch patcher")
	// ErrPatcherFailed indicates the patcher ran and reported failure.
	ErrPatcherFailed = errors.New("patcher failed")
	// ErrAborted indicates the operation was cancelled by the caller.
	ErrAborted = errors.New("aborted")
)

// Listener receives the structured stream of a patcher operation.
// Implementations must not block; they are called from the goroutine that
// reads the patcher's output.
type Listener interface {
	// Log receives a log line with its level (info, warn, ...).
	Log(level, message string)
	// Progress receives byte progress. current never exceeds total.
	Progress(current, total int64)
}

// ListenerFuncs adapts optional functions to a Listener. Nil members are ignored.
type ListenerFuncs struct {
	OnLog      func(level, message string)
	OnProgress func(current, total int64)
}

func (f ListenerFuncs) Log(level, message string) {
	if f.OnLog != nil {
		f.OnLog(level, message)
	}
}

func (f ListenerFuncs) Progress(current, total int64) {
	if f.OnProgress != nil {
		f.OnProgress(current, total)
	}
}

// Discard is a Listener that drops everything.
var Discard Listener = ListenerFuncs{}

// Downloader fetches a single URL to destPath. destPath must only appear once
// the download is complete.
type Downloader interface {
	Download(ctx context.Context, url, destPath string, l Listener) error
}

// Applier applies one patch file to targetDir.
type Applier interface {
	Apply(ctx context.Context, patchPath, targetDir string, l Listener) error
}

// Patcher is the external engine performing raw downloads and byte-level
// patch application.
type Patcher interface {
	Downloader
	Applier
}

type composite struct {
	Downloader
	Applier
}

// WithDownloader returns a Patcher that downloads through d and applies through p.
func WithDownloader(p Applier, d Downloader) Patcher {
	return composite{Downloader: d, Applier: p}
}

// ExitError reports a non-zero patcher exit.
type ExitError struct {
	Op     string // "download" or "apply"
	Target string // URL or patch path
	Code   int
	Stderr string // last stderr line, if any
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s %s failed with exit code %d", e.Op, e.Target, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return ErrPatcherFailed
}

// IsAborted reports whether err stems from caller cancellation.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}
