// Package catalog lists the files of a repository that may be offered to the
// oracle as context, and reads their content.
package catalog

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnore lists directory names that are never offered as context.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	"vendor",
	"dist",
	"build",
	"target",
	"__pycache__",
	".venv",
	"venv",
	"coverage",
}

// IgnoreFile is the root-level ignore file honored in addition to DefaultIgnore.
const IgnoreFile = ".gitignore"

// DefaultMaxFileSize caps the content returned by Read.
const DefaultMaxFileSize = 256 * 1024

// Lister walks a repository root and returns its candidate files.
type Lister interface {
	List(root string) ([]string, error)
}

// Fetcher reads one file. It never fails: an unreadable file yields a
// placeholder string describing the error.
type Fetcher interface {
	Read(root, rel string) string
}

// FS implements Lister and Fetcher on the local filesystem.
type FS struct {
	ignore      map[string]bool
	maxFileSize int64
	logger      zerolog.Logger
}

// Option configures FS.
type Option func(*FS)

// WithIgnore adds directory or file names to skip anywhere in the tree.
func WithIgnore(names ...string) Option {
	return func(f *FS) {
		for _, n := range names {
			f.ignore[n] = true
		}
	}
}

// WithMaxFileSize caps the bytes returned by Read; larger files are truncated.
func WithMaxFileSize(n int64) Option {
	return func(f *FS) { f.maxFileSize = n }
}

// New creates a filesystem catalog.
func New(logger zerolog.Logger, opts ...Option) *FS {
	f := &FS{
		ignore:      make(map[string]bool, len(DefaultIgnore)),
		maxFileSize: DefaultMaxFileSize,
		logger:      logger.With().Str("component", "catalog").Logger(),
	}
	for _, n := range DefaultIgnore {
		f.ignore[n] = true
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// List returns slash-separated paths relative to root, sorted. Hidden
// entries, DefaultIgnore names and paths matched by root/.gitignore are
// skipped. The ignore file itself is hidden and therefore never listed.
func (f *FS) List(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog: %s is not a directory", root)
	}

	matcher := f.loadIgnoreFile(root)

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			f.logger.Warn().Err(walkErr).Str("path", p).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		skip := strings.HasPrefix(name, ".") || f.ignore[name]
		if !skip && matcher != nil {
			skip = matcher.MatchesPath(rel) || (d.IsDir() && matcher.MatchesPath(rel+"/"))
		}
		if skip {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: walk %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

func (f *FS) loadIgnoreFile(root string) *ignore.GitIgnore {
	p := filepath.Join(root, IgnoreFile)
	if _, err := os.Stat(p); err != nil {
		return nil
	}
	m, err := ignore.CompileIgnoreFile(p)
	if err != nil {
		f.logger.Warn().Err(err).Str("file", p).Msg("ignore file unreadable, continuing without it")
		return nil
	}
	return m
}

// Read returns the content of rel under root, or a placeholder when the file
// cannot be read. Paths escaping root are refused the same way. Content past
// the size cap is cut and marked.
func (f *FS) Read(root, rel string) string {
	full, err := Resolve(root, rel)
	if err != nil {
		return Placeholder(rel, err)
	}
	fh, err := os.Open(full)
	if err != nil {
		return Placeholder(rel, err)
	}
	defer fh.Close()

	data, err := io.ReadAll(io.LimitReader(fh, f.maxFileSize+1))
	if err != nil {
		return Placeholder(rel, err)
	}
	if int64(len(data)) > f.maxFileSize {
		f.logger.Debug().Str("path", rel).Int64("limit", f.maxFileSize).Msg("file truncated")
		return string(data[:f.maxFileSize]) + TruncatedMarker
	}
	return string(data)
}

// TruncatedMarker is appended to content cut at the size cap.
const TruncatedMarker = "\n[... truncated ...]"

// Placeholder is the content recorded for a file that could not be read.
func Placeholder(rel string, err error) string {
	return fmt.Sprintf("[error reading %s: %v]", rel, err)
}

// Resolve joins rel onto root, refusing absolute paths and paths that leave root.
func Resolve(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("absolute path %q not allowed", rel)
	}
	clean := path.Clean(filepath.ToSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q escapes repository root", rel)
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}
