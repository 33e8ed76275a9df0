// Package origin downloads remote artifacts from a primary content origin and
// retries once against a fallback mirror.
package origin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/fulmenhq/pkgsync/pkg/patcher"
)

// Default origins.
const (
	DefaultPrimary  = "https://content.spring-launcher.com/pkg"
	DefaultFallback = "https://spring-launcher.ams3.digitaloceanspaces.com/pkg"
)

// ErrFetchFailed indicates an artifact could not be retrieved from any origin.
var ErrFetchFailed = errors.New("fetch failed")

// FetchError carries the per-origin causes of a failed fetch.
type FetchError struct {
	Remote   string
	Primary  error
	Fallback error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch %s failed: primary: %v", e.Remote, e.Primary)
	if e.Fallback != nil {
		fmt.Fprintf(&b, "; fallback: %v", e.Fallback)
	}
	return b.String()
}

func (e *FetchError) Unwrap() []error {
	errs := []error{ErrFetchFailed}
	if e.Primary != nil {
		errs = append(errs, e.Primary)
	}
	if e.Fallback != nil {
		errs = append(errs, e.Fallback)
	}
	return errs
}

// Observer is notified about fallback usage. Nil functions are skipped.
type Observer struct {
	OnFallback func(remote string, cause error)
}

// Mirrors resolves remote-relative paths against two origins.
type Mirrors struct {
	Primary    string
	Fallback   string
	Downloader patcher.Downloader
	Observer   Observer
}

// New returns Mirrors over the given origins. Empty values select the defaults.
func New(primary, fallback string, d patcher.Downloader) *Mirrors {
	if primary == "" {
		primary = DefaultPrimary
	}
	if fallback == "" {
		fallback = DefaultFallback
	}
	return &Mirrors{Primary: primary, Fallback: fallback, Downloader: d}
}

// URL joins an origin base with a remote-relative path.
func URL(base, remote string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(remote, "/")
}

// Download fetches remote into destPath, trying the primary origin and then,
// once, the fallback. Cancellation and a patcher that cannot be launched are
// never retried.
func (m *Mirrors) Download(ctx context.Context, remote, destPath string, l patcher.Listener) error {
	primaryErr := m.Downloader.Download(ctx, URL(m.Primary, remote), destPath, l)
	if primaryErr == nil {
		return nil
	}
	if patcher.IsAborted(primaryErr) || ctx.Err() != nil {
		return primaryErr
	}
	if errors.Is(primaryErr, patcher.ErrProcessLaunch) {
		return primaryErr
	}
	if m.Fallback == "" || m.Fallback == m.Primary {
		return &FetchError{Remote: remote, Primary: primaryErr}
	}

	logger.Warn("primary origin failed, trying fallback",
		logger.String("remote", remote), logger.Err(primaryErr))
	if m.Observer.OnFallback != nil {
		m.Observer.OnFallback(remote, primaryErr)
	}

	fallbackErr := m.Downloader.Download(ctx, URL(m.Fallback, remote), destPath, l)
	if fallbackErr == nil {
		return nil
	}
	if patcher.IsAborted(fallbackErr) {
		return fallbackErr
	}
	return &FetchError{Remote: remote, Primary: primaryErr, Fallback: fallbackErr}
}
