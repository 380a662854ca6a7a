// Package abs locates and retrieves package build files from the Arch Build
// System's git mirrors, where each package lives on its own branch.
//
// https://wiki.archlinux.org/index.php/Arch_Build_System
package abs

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultBaseURL is where the svntogit mirrors are served from.
const DefaultBaseURL = "https://git.archlinux.org/svntogit"

// branchPrefix is prepended to a package name to form its branch.
const branchPrefix = "packages/"

// Repo identifies one upstream repository.
type Repo string

const (
	Packages  Repo = "packages"
	Community Repo = "community"
)

// Repos lists every known repo in default probe order.
var Repos = []Repo{Packages, Community}

// validPackageNameRegex follows makepkg: alphanumerics and @._+-, not
// starting with a hyphen or dot.
var validPackageNameRegex = regexp.MustCompile(`^[a-zA-Z0-9@_+][a-zA-Z0-9@._+-]*$`)

// ParseRepo converts a repo name into a Repo.
func ParseRepo(name string) (Repo, error) {
	for _, r := range Repos {
		if string(r) == name {
			return r, nil
		}
	}
	return "", &RepoNotFoundError{Name: name}
}

func (r Repo) String() string {
	return string(r)
}

// Entry pairs a repo with the base URL it is served from.
type Entry struct {
	Repo    Repo
	BaseURL string
}

// URL returns the git remote for the entry: {base}/{repo}.git.
func (e Entry) URL() string {
	return strings.TrimSuffix(e.BaseURL, "/") + "/" + string(e.Repo) + ".git"
}

// Catalog is an ordered list of entries. Earlier entries win when a package
// exists in more than one repo.
type Catalog []Entry

// DefaultCatalog returns every known repo at DefaultBaseURL.
func DefaultCatalog() Catalog {
	c, _ := NewCatalog(DefaultBaseURL, nil)
	return c
}

// NewCatalog builds a catalog of the named repos, in the given order, served
// from baseURL. An empty baseURL means DefaultBaseURL and no names means all
// known repos.
func NewCatalog(baseURL string, names []string) (Catalog, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	repos := Repos
	if len(names) > 0 {
		repos = make([]Repo, 0, len(names))
		seen := make(map[Repo]bool, len(names))
		for _, name := range names {
			r, err := ParseRepo(name)
			if err != nil {
				return nil, err
			}
			if seen[r] {
				return nil, fmt.Errorf("repo %q listed more than once", name)
			}
			seen[r] = true
			repos = append(repos, r)
		}
	}

	c := make(Catalog, len(repos))
	for i, r := range repos {
		c[i] = Entry{Repo: r, BaseURL: baseURL}
	}
	return c, nil
}

// BranchName returns the branch a package's build files live on.
func BranchName(pkg string) string {
	return branchPrefix + pkg
}

// ValidatePackageName checks that pkg is usable as a branch suffix.
func ValidatePackageName(pkg string) error {
	if !validPackageNameRegex.MatchString(pkg) {
		return fmt.Errorf("invalid package name %q: must be non-empty, use only alphanumerics and @._+- and not start with a hyphen or dot", pkg)
	}
	return nil
}
