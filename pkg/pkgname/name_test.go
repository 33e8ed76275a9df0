package pkgname

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Name
	}{
		{"user/repo", Name{User: "user", Repo: "repo"}},
		{"spring/engine@main", Name{User: "spring", Repo: "engine", Channel: "main"}},
		{"spring/engine:12", Name{User: "spring", Repo: "engine", Version: 12, Pinned: true}},
		{"spring/engine:0", Name{User: "spring", Repo: "engine", Version: 0, Pinned: true}},
		{"spring/engine#any", Name{User: "spring", Repo: "engine", Platform: "any"}},
		{
			"Some_user.x/my-repo.v2@test:7#linux-amd64",
			Name{User: "Some_user.x", Repo: "my-repo.v2", Channel: "test", Version: 7, Pinned: true, Platform: PlatformLinux},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String(), "round trip")
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"user",
		"user/",
		"/repo",
		"user/repo/extra",
		"user/repo@",
		"user/repo@te-st",
		"user/repo:",
		"user/repo:-1",
		"user/repo:1.5",
		"user/repo#freebsd-amd64",
		"user/repo#linux-amd64@main",
		"user/repo:1@main",
		"us er/repo",
		" user/repo",
		"user/repo:99999999999999999999999",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidName))
		})
	}
}

func TestName_ID(t *testing.T) {
	n, err := Parse("spring/bar@test:3")
	require.NoError(t, err)
	assert.Equal(t, "spring/bar", n.ID())
}

func TestPlatformFor(t *testing.T) {
	for goos, want := range map[string]string{
		"windows": PlatformWindows,
		"linux":   PlatformLinux,
		"darwin":  PlatformDarwin,
	} {
		got, err := platformFor(goos)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := platformFor("plan9")
	assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
}

func TestPackageInfo_UnmarshalKeepsOrder(t *testing.T) {
	doc := `{
		"path": "games/bar",
		"rapid": "byar",
		"channels": {
			"zeta": ["linux-amd64"],
			"broken": "not-a-list",
			"alpha": ["any", "windows-amd64"]
		}
	}`

	var info PackageInfo
	require.NoError(t, json.Unmarshal([]byte(doc), &info))

	assert.Equal(t, "games/bar", info.Path)
	assert.Equal(t, "byar", info.Rapid)
	require.Len(t, info.Channels, 3)
	assert.Equal(t, "zeta", info.Channels[0].Name)
	assert.Equal(t, "broken", info.Channels[1].Name)
	assert.False(t, info.Channels[1].WellFormed)
	assert.Equal(t, "alpha", info.Channels[2].Name)
	assert.Equal(t, []string{"any", "windows-amd64"}, info.Channels[2].Platforms)

	out, err := json.Marshal(info)
	require.NoError(t, err)
	var again PackageInfo
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, info, again)
}

func TestPackageInfo_NoRapid(t *testing.T) {
	var info PackageInfo
	require.NoError(t, json.Unmarshal([]byte(`{"path":"maps","channels":{"main":["any"]}}`), &info))
	assert.Empty(t, info.Rapid)
}
