package abs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentpkg/relic/pkg/git"
	"github.com/agentpkg/relic/pkg/store"
	"go.uber.org/zap"
)

const (
	// RecipeFile is the primary build file every fetched package carries.
	RecipeFile = "PKGBUILD"

	trunkDir       = "trunk"
	scratchPattern = "abs-"
)

// Resolver finds and fetches packages from the repos in its catalog. The
// zero value probes the default catalog with the go-git client and keeps
// scratch workspaces under the system temp dir.
type Resolver struct {
	Catalog Catalog
	Git     git.Client
	// TempDir is the parent of scratch workspaces. Empty means os.TempDir().
	TempDir string
	Logger  *zap.Logger
}

// FetchResult describes a package's build files copied to Dir.
type FetchResult struct {
	Dir       string
	Repo      Repo
	Branch    string
	Commit    string
	Integrity string // sha256 over the fetched build files
}

// Find returns the first repo in the catalog that has a branch for pkg.
// Repos are probed one at a time in catalog order; a probe error counts as
// the branch being absent.
func (r *Resolver) Find(ctx context.Context, pkg string) (Repo, error) {
	if err := ValidatePackageName(pkg); err != nil {
		return "", err
	}

	branch := BranchName(pkg)
	for _, entry := range r.catalog() {
		ok, err := r.git().RemoteBranchExists(ctx, entry.URL(), branch)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			r.logger().Debug("probe failed",
				zap.Stringer("repo", entry.Repo), zap.String("branch", branch), zap.Error(err))
			continue
		}
		if ok {
			r.logger().Debug("package found", zap.Stringer("repo", entry.Repo), zap.String("branch", branch))
			return entry.Repo, nil
		}
	}
	return "", &RepoNotFoundError{Name: pkg}
}

// Fetch copies the build files of pkg into dst, creating dst if needed.
// Each repo is tried in catalog order by cloning the package branch directly;
// a failed clone moves on to the next repo. dst is only written once a clone
// has succeeded and holds a PKGBUILD.
func (r *Resolver) Fetch(ctx context.Context, pkg, dst string) (*FetchResult, error) {
	if err := ValidatePackageName(pkg); err != nil {
		return nil, err
	}

	dir, err := filepath.Abs(dst)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path for %q: %w", dst, err)
	}

	for _, entry := range r.catalog() {
		result, err := r.fetchFrom(ctx, entry, pkg, dir)
		if err != nil {
			return nil, err
		}
		if result != nil {
			r.logger().Info("fetched package",
				zap.String("package", pkg), zap.Stringer("repo", result.Repo),
				zap.String("commit", result.Commit), zap.String("dir", result.Dir))
			return result, nil
		}
	}
	return nil, &PackageNotFoundError{Name: pkg}
}

// FetchTemp fetches pkg into a private directory under TempDir, passes the
// result to fn and removes the directory once fn returns.
func (r *Resolver) FetchTemp(ctx context.Context, pkg string, fn func(*FetchResult) error) error {
	if err := ValidatePackageName(pkg); err != nil {
		return err
	}

	tmp, err := os.MkdirTemp(r.TempDir, scratchPattern+pkg+"-")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer r.cleanup(tmp)

	result, err := r.Fetch(ctx, pkg, tmp)
	if err != nil {
		return err
	}
	return fn(result)
}

// fetchFrom tries a single catalog entry inside its own scratch workspace.
// It returns nil, nil when the entry does not host pkg.
func (r *Resolver) fetchFrom(ctx context.Context, entry Entry, pkg, dst string) (*FetchResult, error) {
	scratch, err := os.MkdirTemp(r.TempDir, scratchPattern)
	if err != nil {
		return nil, fmt.Errorf("creating scratch workspace: %w", err)
	}
	defer r.cleanup(scratch)

	log := r.logger().With(zap.Stringer("repo", entry.Repo), zap.String("package", pkg))

	branch := BranchName(pkg)
	commit, err := r.git().CloneBranch(ctx, entry.URL(), branch, scratch)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Debug("clone failed, trying next repo", zap.Error(err))
		return nil, nil
	}

	src := store.New(filepath.Join(scratch, trunkDir))
	if ok, err := src.Exists(RecipeFile); !ok || err != nil {
		log.Debug("branch has no build recipe, trying next repo", zap.Error(err))
		return nil, nil
	}

	integrity, err := src.HashDir()
	if err != nil {
		return nil, fmt.Errorf("computing integrity hash: %w", err)
	}

	s := store.New(dst)
	if err := s.EnsureDir(); err != nil {
		return nil, err
	}
	if err := s.CopyFrom(src.Path()); err != nil {
		return nil, fmt.Errorf("copying build files for %s: %w", pkg, err)
	}

	return &FetchResult{
		Dir:       dst,
		Repo:      entry.Repo,
		Branch:    branch,
		Commit:    commit,
		Integrity: integrity,
	}, nil
}

// cleanup removes a scratch workspace. Failures are logged and never replace
// the fetch result.
func (r *Resolver) cleanup(scratch string) {
	if err := os.RemoveAll(scratch); err != nil {
		r.logger().Warn("failed to remove scratch workspace", zap.String("path", scratch), zap.Error(err))
	}
}

func (r *Resolver) catalog() Catalog {
	if r.Catalog == nil {
		return DefaultCatalog()
	}
	return r.Catalog
}

func (r *Resolver) git() git.Client {
	if r.Git == nil {
		return git.NewClient()
	}
	return r.Git
}

func (r *Resolver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
