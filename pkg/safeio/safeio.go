package safeio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideBase is returned when a path resolves outside its base directory.
var ErrOutsideBase = errors.New("path is outside base directory")

// CleanUserPath cleans a user-provided path and rejects traversal attempts.
// Returns paths with forward slashes for cross-platform consistency.
func CleanUserPath(p string) (string, error) {
	c := filepath.Clean(p)
	if strings.Contains(c, "..") {
		return "", errors.New("path traversal detected")
	}
	return filepath.ToSlash(c), nil
}

// JoinContained joins a remote-supplied relative path onto baseDir and
// rejects results that escape baseDir or are absolute.
func JoinContained(baseDir, rel string) (string, error) {
	if rel == "" {
		return "", errors.New("empty path")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("absolute path %q not allowed", rel)
	}
	cleaned, err := CleanUserPath(rel)
	if err != nil {
		return "", fmt.Errorf("%q: %w", rel, err)
	}
	joined := filepath.Join(baseDir, filepath.FromSlash(cleaned))
	if err := checkContained(baseDir, joined); err != nil {
		return "", err
	}
	return joined, nil
}

// ReadFileContained reads a file only if it is contained within baseDir.
func ReadFileContained(baseDir, filePath string) ([]byte, error) {
	filePathAbs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, errors.New("failed to resolve file path")
	}
	if err := checkContained(baseDir, filePathAbs); err != nil {
		return nil, err
	}
	// #nosec G304 -- filePathAbs has been verified to be contained within baseDir
	return os.ReadFile(filePathAbs)
}

func checkContained(baseDir, p string) error {
	baseDirAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return errors.New("failed to resolve base directory")
	}
	pAbs, err := filepath.Abs(p)
	if err != nil {
		return errors.New("failed to resolve path")
	}
	rel, err := filepath.Rel(baseDirAbs, pAbs)
	if err != nil {
		return errors.New("failed to compute relative path")
	}
	if strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return ErrOutsideBase
	}
	return nil
}

// MakeParentDir creates the parent directory of path.
func MakeParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o750)
}

// WriteFileAtomic writes data to a sibling temporary file and renames it over
// path, so readers observe either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := MakeParentDir(path); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// Exists reports whether path exists. Stat errors other than not-exist count as present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
