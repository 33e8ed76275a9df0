package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/pkgsync/internal/schema"
	"github.com/fulmenhq/pkgsync/pkg/layout"
	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/fulmenhq/pkgsync/pkg/safeio"
)

// SystemVersion is the on-disk layout version of the package directory.
const SystemVersion = 3

type systemDoc struct {
	Version int `json:"version"`
}

// readSystemVersion returns the recorded layout version, or 0 when absent or
// unreadable.
func readSystemVersion(l layout.Local) int {
	data, err := os.ReadFile(l.System())
	if err != nil {
		return 0
	}
	res, err := schema.ValidateJSON(data, schema.System)
	if err == nil {
		err = res.Err()
	}
	var doc systemDoc
	if err == nil {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		logger.Info(fmt.Sprintf("Failed to parse %s, resetting", l.System()))
		return 0
	}
	return doc.Version
}

// ensureSystem wipes and recreates the package directory when its layout
// version differs from SystemVersion. It reports whether a reset happened.
func ensureSystem(l layout.Local) (bool, error) {
	existing := readSystemVersion(l)
	if existing == SystemVersion {
		return false, nil
	}
	logger.Info(fmt.Sprintf("System upgrade: %d -> %d", existing, SystemVersion))

	pkgDir := l.PackageDir()
	if err := os.RemoveAll(pkgDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reset %s: %w", pkgDir, err)
	}
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", pkgDir, err)
	}
	data, err := json.Marshal(systemDoc{Version: SystemVersion})
	if err != nil {
		return false, err
	}
	if err := safeio.WriteFileAtomic(l.System(), data, 0o644); err != nil {
		return false, fmt.Errorf("write system version: %w", err)
	}
	return true, nil
}
