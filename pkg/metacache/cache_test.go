package metacache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/pkgsync/internal/schema"
	"github.com/fulmenhq/pkgsync/pkg/patcher"
)

// fakeRemote serves a queue of bodies per remote path.
type fakeRemote struct {
	mu     sync.Mutex
	bodies map[string][]string
	calls  map[string]int
	err    error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{bodies: map[string][]string{}, calls: map[string]int{}}
}

func (f *fakeRemote) serve(remote string, bodies ...string) {
	f.bodies[remote] = append(f.bodies[remote], bodies...)
}

func (f *fakeRemote) Download(_ context.Context, remote, dest string, _ patcher.Listener) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[remote]++
	if f.err != nil {
		return f.err
	}
	queue := f.bodies[remote]
	if len(queue) == 0 {
		return errors.New("no body for " + remote)
	}
	body := queue[0]
	if len(queue) > 1 {
		f.bodies[remote] = queue[1:]
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(body), 0o644)
}

type latest struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
}

const latestPath = "u/r/main/any/latest.json"

func writeCached(t *testing.T, c *Cache, remote, body string, age time.Duration) {
	t.Helper()
	p, err := c.Path(remote)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(p, mtime, mtime))
}

func TestFetch_FreshHitSkipsRemote(t *testing.T) {
	remote := newFakeRemote()
	c := New(t.TempDir(), remote)
	writeCached(t, c, latestPath, `{"version":4,"name":"v4"}`, time.Minute)

	var got latest
	require.NoError(t, c.Fetch(context.Background(), latestPath, LatestTTL, &got))
	assert.Equal(t, latest{4, "v4"}, got)
	assert.Zero(t, remote.calls[latestPath])
	assert.Equal(t, 1, c.Stats().Hits)
}

func TestFetch_StaleRefetches(t *testing.T) {
	remote := newFakeRemote()
	remote.serve(latestPath, `{"version":5,"name":"v5"}`)
	c := New(t.TempDir(), remote)
	writeCached(t, c, latestPath, `{"version":4,"name":"v4"}`, 10*time.Minute)

	var got latest
	require.NoError(t, c.Fetch(context.Background(), latestPath, LatestTTL, &got))
	assert.Equal(t, 5, got.Version)
	assert.Equal(t, 1, remote.calls[latestPath])
	assert.Equal(t, 1, c.Stats().Misses)
}

func TestFetch_MissingFetches(t *testing.T) {
	remote := newFakeRemote()
	remote.serve(latestPath, `{"version":1,"name":"v1"}`)
	c := New(t.TempDir(), remote)

	var got latest
	require.NoError(t, c.Fetch(context.Background(), latestPath, LatestTTL, &got))
	assert.Equal(t, 1, got.Version)

	p, _ := c.Path(latestPath)
	assert.FileExists(t, p)
}

func TestFetch_CorruptHitRefetchesOnce(t *testing.T) {
	remote := newFakeRemote()
	remote.serve(latestPath, `{"version":7,"name":"v7"}`)
	c := New(t.TempDir(), remote)
	writeCached(t, c, latestPath, `{"version":7`, time.Second)

	var corrupt []string
	c.Observer.OnCorrupt = func(r string) { corrupt = append(corrupt, r) }

	var got latest
	require.NoError(t, c.Fetch(context.Background(), latestPath, LatestTTL, &got))
	assert.Equal(t, 7, got.Version)
	assert.Equal(t, 1, remote.calls[latestPath])
	assert.Equal(t, []string{latestPath}, corrupt)
	assert.Equal(t, 1, c.Stats().Refetches)
}

func TestFetch_SchemaInvalidHitCountsAsCorrupt(t *testing.T) {
	remote := newFakeRemote()
	remote.serve(latestPath, `{"version":7,"name":"v7"}`)
	c := New(t.TempDir(), remote)
	writeCached(t, c, latestPath, `{"version":7}`, time.Second)

	var got latest
	require.NoError(t, c.Fetch(context.Background(), latestPath, LatestTTL, &got))
	assert.Equal(t, "v7", got.Name)
	assert.Equal(t, 1, remote.calls[latestPath])
}

func TestFetch_CorruptAfterRefetchFails(t *testing.T) {
	remote := newFakeRemote()
	remote.serve(latestPath, `not json`)
	c := New(t.TempDir(), remote)
	writeCached(t, c, latestPath, `also not json`, time.Second)

	var got latest
	err := c.Fetch(context.Background(), latestPath, LatestTTL, &got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCacheCorrupt))
	assert.True(t, IsCorrupt(err))
	assert.Equal(t, 1, remote.calls[latestPath], "no retry loop")

	var ce *CorruptError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, latestPath, ce.Remote)
}

func TestFetch_FreshFetchCorruptIsNotRetried(t *testing.T) {
	remote := newFakeRemote()
	remote.serve(latestPath, `{`)
	c := New(t.TempDir(), remote)

	var got latest
	err := c.Fetch(context.Background(), latestPath, LatestTTL, &got)
	assert.True(t, errors.Is(err, ErrCacheCorrupt))
	assert.Equal(t, 1, remote.calls[latestPath])
}

func TestFetch_RemoteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.err = patcher.ErrPatcherFailed
	c := New(t.TempDir(), remote)

	var got latest
	err := c.Fetch(context.Background(), latestPath, LatestTTL, &got)
	assert.True(t, errors.Is(err, patcher.ErrPatcherFailed))
	assert.False(t, IsCorrupt(err))
}

func TestFetchIfAbsent(t *testing.T) {
	const pinned = "u/r/main/any/patch/3.json"
	remote := newFakeRemote()
	remote.serve(pinned, `{"name":"v3"}`)
	c := New(t.TempDir(), remote)

	var got latest
	require.NoError(t, c.FetchIfAbsent(context.Background(), pinned, &got))
	assert.Equal(t, "v3", got.Name)

	// Very old local copies are still used.
	p, _ := c.Path(pinned)
	old := time.Now().Add(-365 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(p, old, old))
	require.NoError(t, c.FetchIfAbsent(context.Background(), pinned, &got))
	assert.Equal(t, 1, remote.calls[pinned])
}

func TestFetch_RejectsEscapingPaths(t *testing.T) {
	c := New(t.TempDir(), newFakeRemote())
	var got latest
	assert.Error(t, c.Fetch(context.Background(), "../outside.json", LatestTTL, &got))
}

func TestSchemaFor(t *testing.T) {
	tests := map[string]string{
		"u/r/package-info.json":           schema.PackageInfo,
		"u/r/main/any/latest.json":        schema.Latest,
		"u/r/main/any/patch/3.json":       schema.Version,
		"u/r/main/any/patch/3-4.json":     schema.Patch,
		"u/r/main/any/patch/3-4":          "",
		"u/r/main/any/other/3-4.json":     "",
		"u/r/main/any/patch/latest.json":  schema.Latest,
		"u/r/main/any/patch/x-4.json":     "",
		"u/r/main/any/patch/3-4.json.sig": "",
	}
	for remote, want := range tests {
		assert.Equal(t, want, SchemaFor(remote), remote)
	}
}
