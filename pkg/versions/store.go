package versions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/pkgsync/internal/schema"
	"github.com/fulmenhq/pkgsync/pkg/layout"
	"github.com/fulmenhq/pkgsync/pkg/safeio"
)

// ErrLocalCorrupt indicates an unreadable local version record.
var ErrLocalCorrupt = errors.New("local version record is corrupt")

// LocalStore persists the installed version of each package.
type LocalStore struct {
	layout layout.Local
}

// NewLocalStore returns a store writing under l's package directory.
func NewLocalStore(l layout.Local) *LocalStore {
	return &LocalStore{layout: l}
}

// Load returns the recorded version of id, or nil when nothing is installed.
func (s *LocalStore) Load(id string) (*Version, error) {
	p := s.layout.LocalVersion(id)
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	res, err := schema.ValidateJSON(data, schema.LocalVersion)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLocalCorrupt, p, err)
	}
	var v Version
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLocalCorrupt, p, err)
	}
	return &v, nil
}

// Save atomically records v as installed for id.
func (s *LocalStore) Save(id string, v Version) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p := s.layout.LocalVersion(id)
	if err := safeio.MakeParentDir(p); err != nil {
		return err
	}
	if err := safeio.WriteFileAtomic(p, data, 0o644); err != nil {
		return fmt.Errorf("save local version for %s: %w", id, err)
	}
	return nil
}
