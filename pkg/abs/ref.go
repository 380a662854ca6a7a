package abs

import (
	"fmt"
	"strings"
)

// Ref is a package name, optionally pinned to one repo with the pacman
// form repo/name (e.g. community/acme).
type Ref struct {
	Repo Repo // empty when unpinned
	Name string
}

// ParseRef parses a user-provided package reference.
func ParseRef(ref string) (Ref, error) {
	repoPart, name, pinned := strings.Cut(ref, "/")
	if !pinned {
		if err := ValidatePackageName(ref); err != nil {
			return Ref{}, err
		}
		return Ref{Name: ref}, nil
	}

	repo, err := ParseRepo(repoPart)
	if err != nil {
		return Ref{}, err
	}
	if err := ValidatePackageName(name); err != nil {
		return Ref{}, fmt.Errorf("invalid ref %q: %w", ref, err)
	}
	return Ref{Repo: repo, Name: name}, nil
}

func (r Ref) String() string {
	if r.Repo == "" {
		return r.Name
	}
	return string(r.Repo) + "/" + r.Name
}

// Narrow returns the entries of c that ref may be looked up in: all of them
// when unpinned, otherwise just the pinned repo. Pinning a repo the catalog
// does not carry fails with RepoNotFoundError.
func (c Catalog) Narrow(ref Ref) (Catalog, error) {
	if ref.Repo == "" {
		return c, nil
	}
	for _, entry := range c {
		if entry.Repo == ref.Repo {
			return Catalog{entry}, nil
		}
	}
	return nil, &RepoNotFoundError{Name: string(ref.Repo)}
}
