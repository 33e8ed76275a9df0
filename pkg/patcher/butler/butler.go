/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package butler drives the external butler binary as the patch engine.
package butler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/fulmenhq/pkgsync/pkg/patcher"
)

// DefaultBinary is the executable name looked up on PATH.
const DefaultBinary = "butler"

// ErrNotFound is returned by Locate when no butler binary can be found.
var ErrNotFound = errors.New("butler binary not found")

// Butler runs butler subprocesses. The zero value is not usable; use New.
type Butler struct {
	path  string
	args  []string
	env   []string
	names *patcher.TempNames
}

// Option configures a Butler.
type Option func(*Butler)

// WithArgs prepends args to every invocation.
func WithArgs(args ...string) Option {
	return func(b *Butler) { b.args = append(b.args, args...) }
}

// WithEnv appends environment entries (KEY=VALUE) for every invocation.
func WithEnv(env ...string) Option {
	return func(b *Butler) { b.env = append(b.env, env...) }
}

// New returns a Butler executing path. Temporary download targets and staging
// directories are allocated from names.
func New(path string, names *patcher.TempNames, opts ...Option) *Butler {
	b := &Butler{path: path, names: names}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Path returns the executable being run.
func (b *Butler) Path() string {
	return b.path
}

// Locate resolves the butler executable. An explicit path must exist;
// otherwise PATH and then dir are searched.
func Locate(explicit, dir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNotFound, explicit)
		}
		return explicit, nil
	}
	if p, err := exec.LookPath(DefaultBinary); err == nil {
		return p, nil
	}
	if dir != "" {
		candidate := filepath.Join(dir, DefaultBinary)
		if runtime.GOOS == "windows" {
			candidate += ".exe"
		}
		if _, err := os.Stat(candidate); err == nil {
			logger.Debug(fmt.Sprintf("found butler in %s", dir))
			return candidate, nil
		}
	}
	return "", ErrNotFound
}

// Download fetches url into a temporary file and renames it to destPath once
// butler reports success.
func (b *Butler) Download(ctx context.Context, url, destPath string, l patcher.Listener) error {
	tmp := b.names.Next(destPath)
	defer func() { _ = os.Remove(tmp) }()

	if err := b.run(ctx, "download", url, l, "-j", "-v", "dl", url, tmp); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(destPath), err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		return fmt.Errorf("move download into place: %w", err)
	}
	return nil
}

// Apply applies patchPath to targetDir using a fresh staging directory.
func (b *Butler) Apply(ctx context.Context, patchPath, targetDir string, l patcher.Listener) error {
	staging := b.names.Next("staging")
	defer func() { _ = os.RemoveAll(staging) }()

	return b.run(ctx, "apply", patchPath, l,
		"-j", "apply", "--staging-dir="+staging, patchPath, targetDir)
}

func (b *Butler) run(ctx context.Context, op, target string, l patcher.Listener, args ...string) error {
	if l == nil {
		l = patcher.Discard
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s %s: %w", op, target, patcher.ErrAborted)
	}

	argv := append(append([]string{}, b.args...), args...)
	// #nosec G204 - path is resolved by Locate or configured explicitly
	cmd := exec.CommandContext(ctx, b.path, argv...)
	if len(b.env) > 0 {
		cmd.Env = append(os.Environ(), b.env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", patcher.ErrProcessLaunch, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", patcher.ErrProcessLaunch, err)
	}

	logger.Debug(fmt.Sprintf("butler %s", strings.Join(argv, " ")))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %v", patcher.ErrProcessLaunch, b.path, err)
	}

	var (
		wg       sync.WaitGroup
		lastErr  string
		counter  = patcher.NewByteCounter()
		failMsgs []string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		lastErr = lastLine(stderr)
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			ev, ok := patcher.ParseEvent(scanner.Text())
			if !ok {
				logger.Trace("butler: " + scanner.Text())
				continue
			}
			if ev.Type == patcher.EventLog {
				level := ev.Level
				if level == "" {
					level = "info"
				}
				if level == "error" {
					failMsgs = append(failMsgs, ev.Message)
				}
				l.Log(level, ev.Message)
			}
			if cur, total, ok := counter.Observe(ev); ok {
				l.Progress(cur, total)
			}
		}
		_, _ = io.Copy(io.Discard, stdout)
	}()
	wg.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return fmt.Errorf("%s %s: %w", op, target, patcher.ErrAborted)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			detail := lastErr
			if detail == "" && len(failMsgs) > 0 {
				detail = failMsgs[len(failMsgs)-1]
			}
			return &patcher.ExitError{Op: op, Target: target, Code: exitErr.ExitCode(), Stderr: detail}
		}
		return fmt.Errorf("%s %s: %w: %v", op, target, patcher.ErrPatcherFailed, waitErr)
	}

	l.Progress(counter.Complete())
	return nil
}

func lastLine(r io.Reader) string {
	var last string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if s := strings.TrimSpace(scanner.Text()); s != "" {
			last = s
		}
	}
	return last
}
