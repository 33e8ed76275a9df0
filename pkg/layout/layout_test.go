package layout

import (
	"path/filepath"
	"testing"

	"github.com/fulmenhq/pkgsync/pkg/pkgname"
	"github.com/stretchr/testify/assert"
)

func TestRemotePaths(t *testing.T) {
	r := RemoteFor(pkgname.Resolved{
		Name:     pkgname.Name{User: "spring", Repo: "bar"},
		Channel:  "main",
		Platform: "any",
	})

	assert.Equal(t, "spring/bar/main/any", r.Base())
	assert.Equal(t, "spring/bar/main/any/latest.json", r.Latest())
	assert.Equal(t, "spring/bar/main/any/patch/7.json", r.VersionDescriptor(7))
	assert.Equal(t, "spring/bar/main/any/patch/3-4.json", r.PatchDescriptor(3, 4))
	assert.Equal(t, "spring/bar/main/any/patch/5-4", r.PatchBlob(5, 4))
	assert.Equal(t, "spring/bar/main/any/patch/0-9.sig", r.PatchSignature(0, 9))
	assert.Equal(t, "spring/bar/package-info.json", PackageInfo("spring/bar"))
}

func TestLocalPaths(t *testing.T) {
	l := Local{WritePath: filepath.FromSlash("/data/spring")}

	assert.Equal(t, filepath.FromSlash("/data/spring/pkg"), l.PackageDir())
	assert.Equal(t, filepath.FromSlash("/data/spring/tmp"), l.TmpDir())
	assert.Equal(t, filepath.FromSlash("/data/spring/pkg/spring/bar/main/any/latest.json"), l.CachePath("spring/bar/main/any/latest.json"))
	assert.Equal(t, filepath.FromSlash("/data/spring/pkg/spring/bar/local-version.json"), l.LocalVersion("spring/bar"))
	assert.Equal(t, filepath.FromSlash("/data/spring/pkg/system.json"), l.System())
	assert.Equal(t, filepath.FromSlash("/data/spring/pkg/touched_rapid.json"), l.TouchedRegistry())
}

func TestIsStateFile(t *testing.T) {
	assert.True(t, IsStateFile("spring/bar/local-version.json"))
	assert.True(t, IsStateFile("system.json"))
	assert.True(t, IsStateFile("touched_rapid.json"))
	assert.False(t, IsStateFile("spring/bar/main/any/latest.json"))
	assert.False(t, IsStateFile("spring/bar/main/any/patch/1-2"))
}
