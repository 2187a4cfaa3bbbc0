package store

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/hack-pad/hackpadfs"
)

// Default seed thresholds, taken from the shipped bible.db: an existing
// file smaller than this is treated as a truncated copy and redone.
const DefaultMinSeedBytes = 15 * 1024 * 1024

// Seeder copies the bundled read-only database into the destination
// filesystem once, and again whenever the bundled seed version changes or
// the existing copy looks truncated. Destination is a hackpadfs.FS so the
// same code runs against the OS filesystem natively, an in-memory
// filesystem in tests, and an IndexedDB filesystem under wasm.
type Seeder struct {
	Source   fs.FS  // bundle containing the seed asset (e.g. embed.FS)
	Asset    string // path of the seed asset within Source
	Dest     hackpadfs.FS
	Dir      string // destination directory, e.g. "SQLite"
	File     string // destination file name, e.g. "bible.db"
	Version  string // bundled seed version; empty disables the check
	MinBytes int64  // minimum plausible size; 0 disables the check
	Logger   *slog.Logger
}

// Path returns the destination path of the store file within Dest.
func (s *Seeder) Path() string {
	return path.Join(s.Dir, s.File)
}

func (s *Seeder) versionPath() string {
	return s.Path() + ".seedver"
}

func (s *Seeder) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// EnsureSeed makes sure a valid copy of the bundled asset exists at Path.
// An existing copy is kept unless it is undersized or carries a different
// seed version.
func (s *Seeder) EnsureSeed() error {
	if err := hackpadfs.MkdirAll(s.Dest, s.Dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	info, err := hackpadfs.Stat(s.Dest, s.Path())
	if err == nil {
		if s.currentCopyValid(info.Size()) {
			return nil
		}
		s.log().Info("existing seed invalid, recopying",
			"path", s.Path(), "size", info.Size())
		if err := hackpadfs.Remove(s.Dest, s.Path()); err != nil {
			return fmt.Errorf("remove stale seed: %w", err)
		}
	}

	return s.copy()
}

// ForceReseed deletes any existing copy and reseeds from the bundle.
func (s *Seeder) ForceReseed() error {
	if err := hackpadfs.MkdirAll(s.Dest, s.Dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	if _, err := hackpadfs.Stat(s.Dest, s.Path()); err == nil {
		if err := hackpadfs.Remove(s.Dest, s.Path()); err != nil {
			return fmt.Errorf("remove seed: %w", err)
		}
	}
	return s.copy()
}

func (s *Seeder) currentCopyValid(size int64) bool {
	if s.MinBytes > 0 && size < s.MinBytes {
		return false
	}
	if s.Version != "" {
		marker, err := fs.ReadFile(s.Dest, s.versionPath())
		if err != nil || strings.TrimSpace(string(marker)) != s.Version {
			return false
		}
	}
	return true
}

func (s *Seeder) copy() error {
	data, err := fs.ReadFile(s.Source, s.Asset)
	if err != nil {
		return fmt.Errorf("read bundled seed %q: %w", s.Asset, err)
	}
	if err := hackpadfs.WriteFullFile(s.Dest, s.Path(), data, 0o644); err != nil {
		return fmt.Errorf("write seed: %w", err)
	}
	if s.Version != "" {
		if err := hackpadfs.WriteFullFile(s.Dest, s.versionPath(), []byte(s.Version), 0o644); err != nil {
			return fmt.Errorf("write seed version marker: %w", err)
		}
	}
	s.log().Info("seed copied", "path", s.Path(), "bytes", len(data), "version", s.Version)
	return nil
}
