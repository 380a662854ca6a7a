// Package gittest builds throwaway repositories laid out like the Arch
// svntogit mirrors: one branch per package, build files under trunk/.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Branches maps a branch name to the files committed on it, keyed by
// slash-separated path relative to the repository root. Content made with
// Link is committed as a symlink.
type Branches map[string]map[string]string

const linkPrefix = "\x00symlink:"

// Link returns file content that writes a symlink to target instead of a
// regular file.
func Link(target string) string {
	return linkPrefix + target
}

// RequireGit skips the test if git is not available.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
}

// BareRepo creates a bare repository at path with a main branch holding a
// README and one orphan branch per entry in branches.
func BareRepo(t testing.TB, path string, branches Branches) {
	t.Helper()

	workDir := filepath.Join(t.TempDir(), "work")

	git(t, "init", "--initial-branch=main", workDir)
	git(t, "-C", workDir, "config", "user.email", "test@test.com")
	git(t, "-C", workDir, "config", "user.name", "Test")
	git(t, "-C", workDir, "config", "commit.gpgsign", "false")

	writeFiles(t, workDir, map[string]string{"README.md": "# test\n"})
	git(t, "-C", workDir, "add", ".")
	git(t, "-C", workDir, "commit", "-q", "-m", "initial commit")

	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		git(t, "-C", workDir, "checkout", "-q", "--orphan", name)
		git(t, "-C", workDir, "rm", "-rfq", "--ignore-unmatch", ".")
		writeFiles(t, workDir, branches[name])
		git(t, "-C", workDir, "add", ".")
		git(t, "-C", workDir, "commit", "-q", "-m", "add "+name)
	}

	git(t, "clone", "-q", "--bare", workDir, path)
}

// Mirror creates one bare repository per key of repos, named <key>.git, in a
// fresh directory and returns that directory for use as a catalog base URL.
func Mirror(t testing.TB, repos map[string]Branches) string {
	t.Helper()

	base := t.TempDir()
	for name, branches := range repos {
		BareRepo(t, filepath.Join(base, name+".git"), branches)
	}
	return base
}

// HeadOf returns the commit hash branch points to in the repository at path.
func HeadOf(t testing.TB, path, branch string) string {
	t.Helper()
	out, err := exec.Command("git", "-C", path, "rev-parse", "refs/heads/"+branch).Output()
	if err != nil {
		t.Fatalf("git rev-parse %s: %v", branch, err)
	}
	return strings.TrimSpace(string(out))
}

func git(t testing.TB, args ...string) {
	t.Helper()
	if out, err := exec.Command("git", args...).CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func writeFiles(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("creating %s: %v", filepath.Dir(full), err)
		}
		if target, ok := strings.CutPrefix(content, linkPrefix); ok {
			if err := os.Symlink(target, full); err != nil {
				t.Fatalf("linking %s: %v", full, err)
			}
			continue
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", full, err)
		}
	}
}
