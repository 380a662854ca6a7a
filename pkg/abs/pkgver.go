package abs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// pkgverRegex captures the numeric prefix of a pkgver assignment, preferring
// MAJOR.MINOR.PATCH over MAJOR.MINOR over MAJOR. Anything after the
// numeric part (e.g. ".arch1") is not captured.
var pkgverRegex = regexp.MustCompile(`(?m)^pkgver=((\d+\.\d+\.\d+)|(\d+\.\d+)|(\d+)).*`)

// ExtractVersion returns the version declared by the first pkgver= line of
// the build file at path.
func ExtractVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	ver, err := extractVersion(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return ver, nil
}

func extractVersion(data []byte) (string, error) {
	m := pkgverRegex.FindSubmatch(data)
	if m == nil {
		return "", ErrExtractionFailed
	}
	return string(m[1]), nil
}

// PackageVersion fetches pkg into a private temp dir, which is removed
// before returning, and extracts its version.
func PackageVersion(ctx context.Context, r *Resolver, pkg string) (string, error) {
	var ver string
	err := r.FetchTemp(ctx, pkg, func(result *FetchResult) error {
		var err error
		ver, err = ExtractVersion(filepath.Join(result.Dir, RecipeFile))
		return err
	})
	return ver, err
}

// KernelVersion returns the version of the standard linux package.
func KernelVersion(ctx context.Context, r *Resolver) (string, error) {
	return PackageVersion(ctx, r, "linux")
}
