package legacy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/fulmenhq/pkgsync/pkg/safeio"
)

// Touched records which registry files pkgsync has written, so other tools
// can tell them apart from files they own.
type Touched struct {
	path string
	mu   sync.Mutex
}

// NewTouched returns a registry stored at path.
func NewTouched(path string) *Touched {
	return &Touched{path: path}
}

// Path returns the backing file.
func (t *Touched) Path() string {
	return t.path
}

// List returns the recorded files. An unreadable registry reads as empty.
func (t *Touched) List() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load()
}

// IsTouched reports whether file is recorded.
func (t *Touched) IsTouched(file string) bool {
	for _, f := range t.List() {
		if f == file {
			return true
		}
	}
	return false
}

// Set adds or removes file.
func (t *Touched) Set(file string, touched bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	files := t.load()
	idx := sort.SearchStrings(files, file)
	present := idx < len(files) && files[idx] == file
	switch {
	case touched && !present:
		files = append(files, "")
		copy(files[idx+1:], files[idx:])
		files[idx] = file
	case !touched && present:
		files = append(files[:idx], files[idx+1:]...)
	default:
		return nil
	}
	return t.save(files)
}

// Clear forgets every recorded file.
func (t *Touched) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear touched registry: %w", err)
	}
	return nil
}

func (t *Touched) load() []string {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return []string{}
	}
	var files []string
	if err := json.Unmarshal(data, &files); err != nil {
		logger.Warn("touched registry unreadable, treating as empty",
			logger.String("path", t.path), logger.Err(err))
		return []string{}
	}
	sort.Strings(files)
	return files
}

func (t *Touched) save(files []string) error {
	if files == nil {
		files = []string{}
	}
	data, err := json.Marshal(files)
	if err != nil {
		return err
	}
	if err := safeio.MakeParentDir(t.path); err != nil {
		return err
	}
	return safeio.WriteFileAtomic(t.path, data, 0o644)
}
