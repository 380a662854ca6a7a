package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

const (
	dirPerm    = 0o755
	hashPrefix = "sha256:"

	symlinkMarker = "symlink:"
)

// Store is a directory tree rooted at a single path. The fetcher uses it as
// the destination for a package's build files.
type Store interface {
	// Path returns the absolute filesystem path for the given segments
	// joined under the store root. Does not create or verify the path.
	Path(segments ...string) string
	// Exists reports whether the path at the given segments exists.
	Exists(segments ...string) (bool, error)
	// EnsureDir creates the directory at segments (starting at store root),
	// including parents. Existing directories are left alone.
	EnsureDir(segments ...string) error
	// Remove deletes the entire tree at segments. Missing paths are not an
	// error.
	Remove(segments ...string) error
	// CopyFrom copies every entry under src into the directory at segments,
	// overwriting files that already exist there.
	CopyFrom(src string, segments ...string) error
	// HashDir computes a "sha256:<hex>" integrity hash over all file
	// contents in the directory at segments, walking recursively in sorted
	// order for determinism. Symlinks contribute their target path, and
	// other special files are skipped, as in CopyFrom.
	HashDir(segments ...string) (string, error)
}

func New(root string) Store {
	return &store{root: root}
}

type store struct {
	root string
}

var _ Store = &store{}

func (s *store) Path(segments ...string) string {
	return filepath.Join(append([]string{s.root}, segments...)...)
}

func (s *store) Exists(segments ...string) (bool, error) {
	_, err := os.Stat(s.Path(segments...))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *store) EnsureDir(segments ...string) error {
	dir := s.Path(segments...)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

func (s *store) Remove(segments ...string) error {
	path := s.Path(segments...)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

func (s *store) CopyFrom(src string, segments ...string) error {
	dst := s.Path(segments...)

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("copy source is not a directory: %s", src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, dirPerm); err != nil {
				return fmt.Errorf("creating %s: %w", target, err)
			}
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			return copySymlink(path, target)
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			// sockets, devices and pipes have no place in a build tree
			return nil
		}
	})
}

func (s *store) HashDir(segments ...string) (string, error) {
	dir := s.Path(segments...)
	h := sha256.New()

	type entry struct {
		rel     string
		symlink bool
	}
	var entries []entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		symlink := d.Type()&fs.ModeSymlink != 0
		if !symlink && !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{rel: rel, symlink: symlink})
		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	for _, e := range entries {
		path := filepath.Join(dir, e.rel)
		h.Write([]byte(e.rel))
		// A link is hashed by its target, never by what it points at.
		if e.symlink {
			link, err := os.Readlink(path)
			if err != nil {
				return "", fmt.Errorf("reading link %s: %w", path, err)
			}
			h.Write([]byte(symlinkMarker + link))
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		h.Write(data)
	}

	return hashPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}

func copySymlink(src, dst string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("reading link %s: %w", src, err)
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("replacing %s: %w", dst, err)
	}
	if err := os.Symlink(link, dst); err != nil {
		return fmt.Errorf("linking %s: %w", dst, err)
	}
	return nil
}
