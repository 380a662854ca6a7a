package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

const (
	// LockFileName is the lock file kept in the data dir.
	LockFileName = "relic.lock"

	guardSuffix     = ".flock"
	guardRetryDelay = 50 * time.Millisecond
)

// LockFile records what each fetched package resolved to.
type LockFile struct {
	Version  int                `toml:"version"`
	Packages []PackageLockEntry `toml:"packages,omitempty"`
}

type PackageLockEntry struct {
	Name        string `toml:"name"`
	Repo        string `toml:"repo"`
	Branch      string `toml:"branch"`
	Commit      string `toml:"commit,omitempty"`
	Integrity   string `toml:"integrity,omitempty"`
	Destination string `toml:"destination"`
}

// LoadLockFile reads the lock file at path. A missing file yields an empty
// lock file.
func LoadLockFile(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &LockFile{Version: CurrentVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	lf := &LockFile{}
	if err := toml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if lf.Version == 0 {
		lf.Version = CurrentVersion
	}
	return lf, nil
}

func SaveLockFile(path string, lf *LockFile) error {
	data, err := toml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// UpdateLockFile loads the lock file at path, applies fn and saves the
// result while holding an exclusive lock on path.flock.
func UpdateLockFile(ctx context.Context, path string, fn func(*LockFile)) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	guard := flock.New(path + guardSuffix)
	locked, err := guard.TryLockContext(ctx, guardRetryDelay)
	if err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("locking %s: lock not acquired", path)
	}
	defer guard.Unlock()

	lf, err := LoadLockFile(path)
	if err != nil {
		return err
	}
	fn(lf)
	return SaveLockFile(path, lf)
}

// Upsert replaces the entry with the same name and destination, or adds it.
// Entries stay sorted by name then destination.
func (lf *LockFile) Upsert(entry PackageLockEntry) {
	replaced := false
	for i, e := range lf.Packages {
		if e.Name == entry.Name && e.Destination == entry.Destination {
			lf.Packages[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		lf.Packages = append(lf.Packages, entry)
	}

	sort.Slice(lf.Packages, func(i, j int) bool {
		if lf.Packages[i].Name != lf.Packages[j].Name {
			return lf.Packages[i].Name < lf.Packages[j].Name
		}
		return lf.Packages[i].Destination < lf.Packages[j].Destination
	})
}

// Find returns the entries recorded for name.
func (lf *LockFile) Find(name string) []PackageLockEntry {
	var out []PackageLockEntry
	for _, e := range lf.Packages {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
