// Package layout names the remote and local files used by pkgsync.
//
// Remote paths are slash-separated and relative to an origin base URL. The
// local metadata cache mirrors them under the package directory.
package layout

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/pkgsync/pkg/pkgname"
)

const (
	// PackageDirName is the directory under the write path holding the
	// metadata cache, downloaded patches and local version records.
	PackageDirName = "pkg"
	// TmpDirName holds in-flight downloads and patch staging directories.
	TmpDirName = "tmp"

	SystemFile         = "system.json"
	LocalVersionFile   = "local-version.json"
	PackageInfoFile    = "package-info.json"
	LatestFile         = "latest.json"
	TouchedRapidFile   = "touched_rapid.json"
	patchDir           = "patch"
	signatureExtension = ".sig"
)

// Remote addresses one channel/platform build stream of a package.
type Remote struct {
	User     string
	Repo     string
	Channel  string
	Platform string
}

// RemoteFor builds the Remote for a negotiated package name.
func RemoteFor(r pkgname.Resolved) Remote {
	return Remote{User: r.Name.User, Repo: r.Name.Repo, Channel: r.Channel, Platform: r.Platform}
}

// Base is "<user>/<repo>/<channel>/<platform>".
func (r Remote) Base() string {
	return path.Join(r.User, r.Repo, r.Channel, r.Platform)
}

// Latest is the descriptor of the newest build.
func (r Remote) Latest() string {
	return path.Join(r.Base(), LatestFile)
}

// VersionDescriptor describes one historical build ({name}).
func (r Remote) VersionDescriptor(version int) string {
	return path.Join(r.Base(), patchDir, fmt.Sprintf("%d.json", version))
}

// PatchDescriptor holds the sizes of the from->to patch.
func (r Remote) PatchDescriptor(from, to int) string {
	return r.PatchBlob(from, to) + ".json"
}

// PatchBlob is the patch artifact transforming from into to.
func (r Remote) PatchBlob(from, to int) string {
	return path.Join(r.Base(), patchDir, fmt.Sprintf("%d-%d", from, to))
}

// PatchSignature is the signature file accompanying PatchBlob.
func (r Remote) PatchSignature(from, to int) string {
	return r.PatchBlob(from, to) + signatureExtension
}

// PackageInfo is the package-level metadata path for "user/repo".
func PackageInfo(id string) string {
	return path.Join(id, PackageInfoFile)
}

// Local maps remote paths and package state onto a write path.
type Local struct {
	WritePath string
}

// PackageDir is the metadata cache root.
func (l Local) PackageDir() string {
	return filepath.Join(l.WritePath, PackageDirName)
}

// TmpDir holds temporary downloads.
func (l Local) TmpDir() string {
	return filepath.Join(l.WritePath, TmpDirName)
}

// CachePath maps a remote relative path into the cache.
func (l Local) CachePath(remote string) string {
	return filepath.Join(l.PackageDir(), filepath.FromSlash(strings.TrimPrefix(remote, "/")))
}

// LocalVersion is the LocalVersionRecord for package id ("user/repo").
func (l Local) LocalVersion(id string) string {
	return filepath.Join(l.PackageDir(), filepath.FromSlash(id), LocalVersionFile)
}

// System is the on-disk schema version marker.
func (l Local) System() string {
	return filepath.Join(l.PackageDir(), SystemFile)
}

// TouchedRegistry lists legacy registry files written by pkgsync.
func (l Local) TouchedRegistry() string {
	return filepath.Join(l.PackageDir(), TouchedRapidFile)
}

// IsStateFile reports whether a cache-relative path names bookkeeping that
// must survive cache cleaning.
func IsStateFile(rel string) bool {
	switch path.Base(filepath.ToSlash(rel)) {
	case SystemFile, LocalVersionFile, TouchedRapidFile:
		return true
	}
	return false
}
