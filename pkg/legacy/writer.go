// Package legacy keeps the gzip-compressed tag registry of the older rapid
// distribution system pointing at packages installed by pkgsync.
package legacy

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/fulmenhq/pkgsync/pkg/safeio"
	"github.com/fulmenhq/pkgsync/pkg/versions"
)

// Defaults for the registry layout.
const (
	DefaultHost       = "repos.springrts.com"
	DefaultTagSuffix  = ":test"
	DefaultArchiveExt = ".sdz"
	RegistryFile      = "versions.gz"
)

// Writer updates registry files below <writePath>/rapid/<host>.
type Writer struct {
	writePath  string
	host       string
	tagSuffix  string
	archiveExt string
	touched    *Touched
}

// Option configures a Writer.
type Option func(*Writer)

// WithHost overrides the registry host directory.
func WithHost(host string) Option { return func(w *Writer) { w.host = host } }

// WithTagSuffix overrides the suffix appended to tags.
func WithTagSuffix(s string) Option { return func(w *Writer) { w.tagSuffix = s } }

// WithArchiveExt overrides the extension stripped from archive names.
func WithArchiveExt(ext string) Option { return func(w *Writer) { w.archiveExt = ext } }

// NewWriter returns a Writer recording touched files in touched.
func NewWriter(writePath string, touched *Touched, opts ...Option) *Writer {
	w := &Writer{
		writePath:  writePath,
		host:       DefaultHost,
		tagSuffix:  DefaultTagSuffix,
		archiveExt: DefaultArchiveExt,
		touched:    touched,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the registry file for tag. Tags come from remote metadata, so
// a tag resolving outside the host directory is rejected.
func (w *Writer) Path(tag string) (string, error) {
	if tag == "" {
		return "", errors.New("empty registry tag")
	}
	p, err := safeio.JoinContained(filepath.Join(w.writePath, "rapid", w.host), filepath.Join(tag, RegistryFile))
	if err != nil {
		return "", fmt.Errorf("registry tag %q: %w", tag, err)
	}
	return p, nil
}

// Line renders the registry line for tag pointing at target.
func (w *Writer) Line(tag string, target versions.Version) string {
	return w.Tag(tag) + ",,," + w.Archive(target)
}

// Tag returns the registry line tag for tag.
func (w *Writer) Tag(tag string) string {
	return tag + w.tagSuffix
}

// Archive returns the archive name the registry refers to for target.
func (w *Writer) Archive(target versions.Version) string {
	return strings.TrimSuffix(target.Name, w.archiveExt)
}

// Update points tag at target. The first line carrying the tag is replaced
// and later duplicates are dropped; if no line carries it, the new line is
// appended. Other lines, including their line endings, are preserved verbatim
// and in order. The file is replaced atomically.
func (w *Writer) Update(tag string, target versions.Version) (string, error) {
	p, err := w.Path(tag)
	if err != nil {
		return "", err
	}
	if err := w.touched.Set(p, true); err != nil {
		return "", fmt.Errorf("record touched registry: %w", err)
	}

	newLine := w.Line(tag, target)
	lines, err := readLines(p)
	if err != nil {
		return "", err
	}

	fullTag := w.Tag(tag)
	kept := lines[:0]
	replaced := false
	for _, line := range lines {
		body, eol := splitEOL(line)
		if first, _, _ := strings.Cut(body, ","); first == fullTag {
			if replaced {
				continue
			}
			if eol == "" {
				eol = "\n"
			}
			line = newLine + eol
			replaced = true
		}
		kept = append(kept, line)
	}
	if !replaced {
		if n := len(kept); n > 0 && !strings.HasSuffix(kept[n-1], "\n") {
			kept[n-1] += "\n"
		}
		kept = append(kept, newLine+"\n")
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	for _, line := range kept {
		if _, err := zw.Write([]byte(line)); err != nil {
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	if err := safeio.MakeParentDir(p); err != nil {
		return "", err
	}
	if err := safeio.WriteFileAtomic(p, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	logger.Debug("legacy registry updated", logger.String("path", p), logger.String("line", newLine))
	return newLine, nil
}

// splitEOL separates a line from its "\n" or "\r\n" terminator.
func splitEOL(line string) (body, eol string) {
	body = strings.TrimSuffix(line, "\n")
	body = strings.TrimSuffix(body, "\r")
	return body, line[len(body):]
}

// readLines returns the decompressed lines of p with their terminators, or nil
// when p is absent. The final line may lack a terminator.
func readLines(p string) ([]string, error) {
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer func() { _ = f.Close() }()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", p, err)
	}
	defer func() { _ = zr.Close() }()

	var lines []string
	r := bufio.NewReader(zr)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
	}
}
