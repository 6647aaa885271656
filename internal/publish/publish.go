// Package publish replaces the contents of a job's output directory with the
// staged layer files.
package publish

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/dbsmedya/accesstally/internal/logger"
)

// Stats summarises a publish.
type Stats struct {
	Removed      int
	RemoveFailed []string
	Published    []string
}

// Publisher moves staged files into an output directory.
type Publisher struct {
	fs     afero.Fs
	logger *logger.Logger
}

// New creates a Publisher over fs.
func New(fs afero.Fs, log *logger.Logger) *Publisher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Publisher{fs: fs, logger: log}
}

// Clear removes every file directly inside dir. A file that cannot be removed
// is logged and skipped; the remaining files are still removed.
func (p *Publisher) Clear(dir string) (*Stats, error) {
	stats := &Stats{}

	exists, err := afero.DirExists(p.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat output directory %s: %w", dir, err)
	}
	if !exists {
		return stats, nil
	}

	entries, err := afero.ReadDir(p.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list output directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := p.fs.Remove(path); err != nil {
			p.logger.Warnw("Failed to remove output file, skipping", "path", path, "error", err)
			stats.RemoveFailed = append(stats.RemoveFailed, path)
			continue
		}
		stats.Removed++
		p.logger.Debugw("Removed output file", "path", path)
	}
	return stats, nil
}

// Publish clears dir and moves each staged file into it. The directory is
// created when missing.
func (p *Publisher) Publish(dir string, staged ...string) (*Stats, error) {
	for _, src := range staged {
		if filepath.Clean(filepath.Dir(src)) == filepath.Clean(dir) {
			return nil, fmt.Errorf("staged file %s is already inside output directory %s", src, dir)
		}
	}

	if err := p.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	stats, err := p.Clear(dir)
	if err != nil {
		return nil, err
	}

	sorted := append([]string(nil), staged...)
	sort.Strings(sorted)
	for _, src := range sorted {
		dst := filepath.Join(dir, filepath.Base(src))
		if err := p.move(src, dst); err != nil {
			return stats, err
		}
		stats.Published = append(stats.Published, dst)
	}

	p.logger.Infow("Output published",
		"dir", dir,
		"removed", stats.Removed,
		"remove_failed", len(stats.RemoveFailed),
		"published", len(stats.Published),
	)
	return stats, nil
}

// move renames src to dst, falling back to copy and remove when the rename
// crosses filesystems.
func (p *Publisher) move(src, dst string) error {
	if err := p.fs.Rename(src, dst); err == nil {
		return nil
	}

	data, err := afero.ReadFile(p.fs, src)
	if err != nil {
		return fmt.Errorf("failed to read staged file %s: %w", src, err)
	}
	if err := afero.WriteFile(p.fs, dst, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	if err := p.fs.Remove(src); err != nil {
		p.logger.Warnw("Failed to remove staged file after copy", "path", src, "error", err)
	}
	return nil
}
