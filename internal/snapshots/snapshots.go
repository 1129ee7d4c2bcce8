// Package snapshots archives raw page HTML captured during scraping so
// selector breakage and CAPTCHA walls can be diagnosed after the fact.
// Pages compress extremely well, so each snapshot is zstd-compressed, and
// a retention sweep keeps the archive bounded.
package snapshots

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
)

const snapshotPattern = "**/*.html.zst"

// Store writes and prunes snapshot files under a root directory.
type Store struct {
	root      string
	retention time.Duration
	log       *logging.Logger
	now       func() time.Time
}

// New creates the store, making the root directory if needed.
func New(root string, retention time.Duration, log *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, faults.Wrap(faults.KindValidation, "snapshots.new", err)
	}
	return &Store{
		root:      root,
		retention: retention,
		log:       log.Component("snapshots"),
		now:       time.Now,
	}, nil
}

// Save compresses and writes one page, returning the file path. Snapshots
// are grouped per source and named by capture time.
func (s *Store) Save(source string, html []byte) (string, error) {
	dir := filepath.Join(s.root, source)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", faults.Wrap(faults.KindValidation, "snapshots.save", err)
	}

	name := s.now().UTC().Format("20060102T150405.000000000") + ".html.zst"
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", faults.Wrap(faults.KindValidation, "snapshots.save", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return "", faults.Wrap(faults.KindValidation, "snapshots.save", err)
	}
	if _, err := zw.Write(html); err != nil {
		zw.Close()
		return "", faults.Wrap(faults.KindValidation, "snapshots.save", err)
	}
	if err := zw.Close(); err != nil {
		return "", faults.Wrap(faults.KindValidation, "snapshots.save", err)
	}

	s.log.Debug("snapshot saved", zap.String("path", path), zap.Int("raw_bytes", len(html)))
	return path, nil
}

// Load decompresses one snapshot.
func (s *Store) Load(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, faults.Wrap(faults.KindValidation, "snapshots.load", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, faults.Wrap(faults.KindValidation, "snapshots.load", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, faults.Wrap(faults.KindValidation, "snapshots.load", err)
	}
	return out, nil
}

// Sweep removes snapshots older than the retention window and returns how
// many were deleted. A zero retention disables pruning.
func (s *Store) Sweep() (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.retention)

	var stale []string
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		if ok, _ := doublestar.Match(snapshotPattern, filepath.ToSlash(rel)); !ok {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr == nil && info.ModTime().Before(cutoff) {
			stale = append(stale, path)
		}
		return nil
	})
	if err != nil {
		return 0, faults.Wrap(faults.KindValidation, "snapshots.sweep", err)
	}

	removed := 0
	for _, path := range stale {
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("snapshots pruned", zap.Int("removed", removed))
	}
	return removed, nil
}
