package abs

import (
	"errors"
	"fmt"
)

// ErrExtractionFailed is returned when a build file has no line the version
// pattern matches.
var ErrExtractionFailed = errors.New("failed to extract version string from file")

// RepoNotFoundError reports that no catalog repo hosts Name, or that Name is
// not a known repo identifier.
type RepoNotFoundError struct {
	Name string
}

func (e *RepoNotFoundError) Error() string {
	return fmt.Sprintf("failed to find repo: %s", e.Name)
}

// PackageNotFoundError reports that every catalog repo was tried and none
// could provide the package's build files.
type PackageNotFoundError struct {
	Name string
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("failed to find package: %s", e.Name)
}
