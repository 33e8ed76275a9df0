package versions

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/pkgsync/pkg/layout"
)

func TestBuildChain(t *testing.T) {
	tests := []struct {
		name   string
		local  *Version
		target int
		want   []Step
	}{
		{"not installed", nil, 7, []Step{{0, 7}}},
		{"not installed target zero", nil, 0, []Step{{0, 0}}},
		{"up to date", &Version{Version: 3}, 3, []Step{}},
		{"forward", &Version{Version: 3}, 6, []Step{{3, 4}, {4, 5}, {5, 6}}},
		{"backward", &Version{Version: 6}, 4, []Step{{6, 5}, {5, 4}}},
		{"from zero", &Version{Version: 0}, 1, []Step{{0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildChain(tt.local, Version{Version: tt.target})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildChain_UnitSteps(t *testing.T) {
	for l := 0; l < 6; l++ {
		for target := 0; target < 6; target++ {
			chain := BuildChain(&Version{Version: l}, Version{Version: target})
			require.Len(t, chain, abs(target-l))
			cur := l
			for _, s := range chain {
				assert.Equal(t, cur, s.From)
				assert.Equal(t, 1, abs(s.To-s.From))
				cur = s.To
			}
			assert.Equal(t, target, cur)
		}
	}
}

func TestUpToDate(t *testing.T) {
	assert.False(t, UpToDate(nil, Version{Version: 0}))
	assert.True(t, UpToDate(&Version{Version: 4, Name: "a"}, Version{Version: 4, Name: "b"}))
	assert.False(t, UpToDate(&Version{Version: 4}, Version{Version: 5}))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "(none)", Describe(nil))
	assert.Equal(t, "1-2, 2-3", Describe([]Step{{1, 2}, {2, 3}}))
}

func TestLocalStore_RoundTrip(t *testing.T) {
	l := layout.Local{WritePath: t.TempDir()}
	s := NewLocalStore(l)

	v, err := s.Load("u/r")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Save("u/r", Version{Version: 5, Name: "engine 5"}))
	v, err = s.Load("u/r")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, Version{Version: 5, Name: "engine 5"}, *v)

	data, err := os.ReadFile(l.LocalVersion("u/r"))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "version")
	assert.Contains(t, raw, "name")
}

func TestLocalStore_Corrupt(t *testing.T) {
	l := layout.Local{WritePath: t.TempDir()}
	p := l.LocalVersion("u/r")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(`{"version":"x"}`), 0o644))

	_, err := NewLocalStore(l).Load("u/r")
	assert.True(t, errors.Is(err, ErrLocalCorrupt))
}

type fakeMeta struct {
	docs   map[string]string
	ttls   map[string]time.Duration
	absent []string
}

func (f *fakeMeta) Fetch(_ context.Context, remote string, ttl time.Duration, out any) error {
	if f.ttls == nil {
		f.ttls = map[string]time.Duration{}
	}
	f.ttls[remote] = ttl
	return f.decode(remote, out)
}

func (f *fakeMeta) FetchIfAbsent(_ context.Context, remote string, out any) error {
	f.absent = append(f.absent, remote)
	return f.decode(remote, out)
}

func (f *fakeMeta) decode(remote string, out any) error {
	doc, ok := f.docs[remote]
	if !ok {
		return errors.New("not found: " + remote)
	}
	return json.Unmarshal([]byte(doc), out)
}

func TestResolver_Target(t *testing.T) {
	remote := layout.Remote{User: "u", Repo: "r", Channel: "main", Platform: "any"}
	meta := &fakeMeta{docs: map[string]string{
		"u/r/main/any/latest.json":  `{"version":9,"name":"latest nine"}`,
		"u/r/main/any/patch/4.json": `{"name":"four","version":400}`,
	}}
	r := NewResolver(NewLocalStore(layout.Local{WritePath: t.TempDir()}), meta, 5*time.Minute)

	latest, err := r.Target(context.Background(), remote, nil)
	require.NoError(t, err)
	assert.Equal(t, Version{Version: 9, Name: "latest nine"}, latest)
	assert.Equal(t, 5*time.Minute, meta.ttls["u/r/main/any/latest.json"])

	pin := 4
	pinned, err := r.Target(context.Background(), remote, &pin)
	require.NoError(t, err)
	assert.Equal(t, Version{Version: 4, Name: "four"}, pinned, "pin wins over descriptor version")
	assert.Equal(t, []string{"u/r/main/any/patch/4.json"}, meta.absent)

	missing := 5
	_, err = r.Target(context.Background(), remote, &missing)
	assert.Error(t, err)
}
