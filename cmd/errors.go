package cmd

import (
	"errors"
	"io/fs"

	"github.com/fulmenhq/pkgsync/pkg/apply"
	"github.com/fulmenhq/pkgsync/pkg/config"
	"github.com/fulmenhq/pkgsync/pkg/exitcode"
	"github.com/fulmenhq/pkgsync/pkg/metacache"
	"github.com/fulmenhq/pkgsync/pkg/origin"
	"github.com/fulmenhq/pkgsync/pkg/patcher"
	"github.com/fulmenhq/pkgsync/pkg/patcher/butler"
	"github.com/fulmenhq/pkgsync/pkg/pkgname"
	"github.com/fulmenhq/pkgsync/pkg/versions"
)

// exitCodeFor classifies err into a process exit code. The first matching
// rule wins, so more specific causes are listed before broader ones.
func exitCodeFor(err error) int {
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return exitcode.Success
	case patcher.IsAborted(err):
		return exitcode.Aborted
	case errors.Is(err, config.ErrInvalid):
		return exitcode.ConfigError
	case errors.Is(err, pkgname.ErrInvalidName):
		return exitcode.InvalidName
	case errors.Is(err, butler.ErrNotFound):
		return exitcode.PatcherNotFound
	case errors.Is(err, pkgname.ErrUnsupportedPlatform),
		errors.Is(err, pkgname.ErrNoMatchingChannel),
		errors.Is(err, pkgname.ErrNoMatchingPlatform),
		errors.Is(err, versions.ErrLocalCorrupt):
		return exitcode.ResolutionError
	case errors.Is(err, apply.ErrPatchApplyFailed),
		errors.Is(err, patcher.ErrProcessLaunch):
		return exitcode.PatchError
	case errors.Is(err, metacache.ErrCacheCorrupt):
		return exitcode.CacheError
	case errors.Is(err, origin.ErrFetchFailed):
		return exitcode.NetworkError
	case errors.Is(err, patcher.ErrPatcherFailed):
		return exitcode.PatchError
	case errors.As(err, &pathErr):
		return exitcode.FileSystemError
	default:
		return exitcode.GeneralError
	}
}
