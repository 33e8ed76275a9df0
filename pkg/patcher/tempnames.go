package patcher

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
)

// TempNames hands out unique temporary paths inside one directory. Names
// combine a per-instance random prefix with a counter, so concurrent
// instances sharing a directory never collide.
type TempNames struct {
	dir    string
	prefix string
	seq    atomic.Uint64
}

// NewTempNames creates a name source rooted at dir.
func NewTempNames(dir string) *TempNames {
	return &TempNames{dir: dir, prefix: uuid.NewString()[:8]}
}

// Dir returns the directory names are created in.
func (t *TempNames) Dir() string {
	return t.dir
}

// Next returns a fresh path whose file name starts with base.
func (t *TempNames) Next(base string) string {
	n := t.seq.Add(1)
	return filepath.Join(t.dir, fmt.Sprintf("%s.%s.%d", filepath.Base(base), t.prefix, n))
}
