// Package metacache keeps remote metadata documents in a local directory that
// mirrors the remote layout, refreshing them after a time-to-live.
package metacache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"sync"
	"time"

	"github.com/fulmenhq/pkgsync/internal/schema"
	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/fulmenhq/pkgsync/pkg/patcher"
	"github.com/fulmenhq/pkgsync/pkg/safeio"
)

// Default time-to-live values.
const (
	PackageInfoTTL = time.Hour
	LatestTTL      = 5 * time.Minute
)

// Remote downloads a remote-relative path to a local file. *origin.Mirrors
// satisfies it.
type Remote interface {
	Download(ctx context.Context, remote, destPath string, l patcher.Listener) error
}

// Observer receives cache outcomes. Nil functions are skipped.
type Observer struct {
	OnHit     func(remote string)
	OnMiss    func(remote string)
	OnCorrupt func(remote string)
}

// Stats counts cache outcomes since construction.
type Stats struct {
	Hits      int
	Misses    int
	Corrupt   int
	Refetches int
}

// Cache serves metadata from dir, fetching through remote when needed.
type Cache struct {
	dir      string
	remote   Remote
	now      func() time.Time
	Observer Observer

	mu    sync.Mutex
	stats Stats
}

// New returns a cache rooted at dir.
func New(dir string, remote Remote) *Cache {
	return &Cache{dir: dir, remote: remote, now: time.Now}
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Path returns the local file mirroring remote.
func (c *Cache) Path(remote string) (string, error) {
	return safeio.JoinContained(c.dir, remote)
}

// Fetch decodes remote into out. A local copy younger than ttl is used as is;
// anything else is fetched first. A local copy that fails to decode is
// refetched exactly once.
func (c *Cache) Fetch(ctx context.Context, remote string, ttl time.Duration, out any) error {
	local, err := c.Path(remote)
	if err != nil {
		return err
	}
	fresh := false
	if info, err := os.Stat(local); err == nil && !info.IsDir() {
		fresh = c.now().Sub(info.ModTime()) < ttl
	}
	return c.load(ctx, remote, local, !fresh, out)
}

// FetchIfAbsent decodes remote into out, fetching only when no local copy
// exists. Used for immutable documents.
func (c *Cache) FetchIfAbsent(ctx context.Context, remote string, out any) error {
	local, err := c.Path(remote)
	if err != nil {
		return err
	}
	return c.load(ctx, remote, local, !safeio.Exists(local), out)
}

func (c *Cache) load(ctx context.Context, remote, local string, fetch bool, out any) error {
	if fetch {
		c.count(func(s *Stats) { s.Misses++ }, c.Observer.OnMiss, remote)
		if err := c.download(ctx, remote, local); err != nil {
			return err
		}
	} else {
		c.count(func(s *Stats) { s.Hits++ }, c.Observer.OnHit, remote)
	}

	err := Decode(local, remote, out)
	if err == nil {
		return nil
	}
	var de *decodeError
	if !errors.As(err, &de) {
		return err
	}
	c.count(func(s *Stats) { s.Corrupt++ }, c.Observer.OnCorrupt, remote)
	if fetch {
		return &CorruptError{Remote: remote, Path: local, Err: de.err}
	}

	logger.Warn("cached metadata unreadable, refetching",
		logger.String("remote", remote), logger.Err(de.err))
	c.count(func(s *Stats) { s.Refetches++ }, nil, remote)
	if err := c.download(ctx, remote, local); err != nil {
		return err
	}
	if err := Decode(local, remote, out); err != nil {
		if errors.As(err, &de) {
			return &CorruptError{Remote: remote, Path: local, Err: de.err}
		}
		return err
	}
	return nil
}

func (c *Cache) download(ctx context.Context, remote, local string) error {
	logger.Debug("fetching metadata", logger.String("remote", remote))
	if err := c.remote.Download(ctx, remote, local, nil); err != nil {
		return fmt.Errorf("fetch %s: %w", remote, err)
	}
	return nil
}

func (c *Cache) count(update func(*Stats), hook func(string), remote string) {
	c.mu.Lock()
	update(&c.stats)
	c.mu.Unlock()
	if hook != nil {
		hook(remote)
	}
}

var (
	versionDoc = regexp.MustCompile(`^[0-9]+\.json$`)
	patchDoc   = regexp.MustCompile(`^[0-9]+-[0-9]+\.json$`)
)

// SchemaFor returns the schema name for a remote path, or "" when the document
// kind is unknown.
func SchemaFor(remote string) string {
	base := path.Base(remote)
	switch {
	case base == "package-info.json":
		return schema.PackageInfo
	case base == "latest.json":
		return schema.Latest
	case path.Base(path.Dir(remote)) == "patch" && patchDoc.MatchString(base):
		return schema.Patch
	case path.Base(path.Dir(remote)) == "patch" && versionDoc.MatchString(base):
		return schema.Version
	}
	return ""
}

// Decode reads a local metadata file, validates it against the schema for
// remote and unmarshals it into out. Unusable content is reported as a
// decode failure; I/O errors are returned unchanged.
func Decode(local, remote string, out any) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return fmt.Errorf("read %s: %w", local, err)
	}
	if name := SchemaFor(remote); name != "" {
		res, err := schema.ValidateJSON(data, name)
		if err != nil {
			return &decodeError{err: err}
		}
		if err := res.Err(); err != nil {
			return &decodeError{err: err}
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

// IsCorrupt reports whether err came from undecodable content, either a
// CorruptError or a failed Decode.
func IsCorrupt(err error) bool {
	var de *decodeError
	return errors.Is(err, ErrCacheCorrupt) || errors.As(err, &de)
}
