package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/fulmenhq/pkgsync/pkg/buildinfo"
	"github.com/fulmenhq/pkgsync/pkg/patcher"
)

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

func (e *StatusError) Unwrap() error {
	return patcher.ErrPatcherFailed
}

// Downloader is a native HTTP implementation of patcher.Downloader. It follows
// the same contract as the subprocess patcher: a log line announcing the size,
// byte progress, and an atomic rename into destPath on success.
type Downloader struct {
	fetcher HTTPFetcher
	names   *patcher.TempNames
}

// NewDownloader returns a Downloader using fetcher for requests and names for
// temporary files.
func NewDownloader(fetcher HTTPFetcher, names *patcher.TempNames) *Downloader {
	return &Downloader{fetcher: fetcher, names: names}
}

func (d *Downloader) Download(ctx context.Context, url, destPath string, l patcher.Listener) error {
	if l == nil {
		l = patcher.Discard
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "pkgsync/"+buildinfo.Version())

	resp, err := d.fetcher.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("download %s: %w", url, patcher.ErrAborted)
		}
		return fmt.Errorf("download %s: %w: %v", url, patcher.ErrPatcherFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, Code: resp.StatusCode}
	}

	total := resp.ContentLength
	if total > 0 {
		l.Log("info", "Downloading "+humanize.IBytes(uint64(total)))
	} else {
		total = 1
	}

	tmp := d.names.Next(destPath)
	if err := os.MkdirAll(filepath.Dir(tmp), 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp) }()

	w := &progressWriter{w: f, total: total, l: l}
	_, copyErr := io.Copy(w, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		if ctx.Err() != nil || errors.Is(copyErr, context.Canceled) {
			return fmt.Errorf("download %s: %w", url, patcher.ErrAborted)
		}
		return fmt.Errorf("download %s: %w: %v", url, patcher.ErrPatcherFailed, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("write %s: %w", tmp, closeErr)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(destPath), err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		return fmt.Errorf("move download into place: %w", err)
	}
	final := w.written
	if final < total {
		final = total
	}
	l.Progress(final, final)
	return nil
}

type progressWriter struct {
	w       io.Writer
	l       patcher.Listener
	total   int64
	written int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	cur := p.written
	if cur > p.total {
		cur = p.total
	}
	p.l.Progress(cur, p.total)
	return n, err
}
