package git

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentpkg/relic/pkg/git/gittest"
	"github.com/cenkalti/backoff/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// setupRepo creates a bare repo with branches packages/pkgfile and
// packages/linux, each carrying a trunk/PKGBUILD.
func setupRepo(t *testing.T) string {
	t.Helper()

	repo := filepath.Join(t.TempDir(), "packages.git")
	gittest.BareRepo(t, repo, gittest.Branches{
		"packages/pkgfile": {
			"trunk/PKGBUILD":      "pkgname=pkgfile\npkgver=21\npkgrel=1\n",
			"trunk/pkgfile.timer": "[Timer]\nOnCalendar=daily\n",
		},
		"packages/linux": {
			"trunk/PKGBUILD": "pkgbase=linux\npkgver=5.4.14.arch1\npkgrel=1\n",
		},
	})
	return repo
}

func TestRemoteBranchExists(t *testing.T) {
	gittest.RequireGit(t)
	repo := setupRepo(t)

	tests := map[string]struct {
		branch string
		want   bool
	}{
		"package branch": {
			branch: "packages/pkgfile",
			want:   true,
		},
		"other package branch": {
			branch: "packages/linux",
			want:   true,
		},
		"default branch": {
			branch: "main",
			want:   true,
		},
		"missing package": {
			branch: "packages/foobar",
			want:   false,
		},
		"prefix of an existing branch": {
			branch: "packages/pkg",
			want:   false,
		},
	}

	c := NewClient()
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := c.RemoteBranchExists(context.Background(), repo, tc.branch)
			if err != nil {
				t.Fatalf("RemoteBranchExists() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("RemoteBranchExists(%q) = %v, want %v", tc.branch, got, tc.want)
			}
		})
	}
}

func TestRemoteBranchExistsUnreachable(t *testing.T) {
	c := NewClient()

	missing := filepath.Join(t.TempDir(), "nope.git")
	_, err := c.RemoteBranchExists(context.Background(), missing, "packages/pkgfile")
	if err == nil {
		t.Fatal("expected error probing nonexistent remote, got nil")
	}
}

func TestCloneBranch(t *testing.T) {
	gittest.RequireGit(t)
	repo := setupRepo(t)

	dest := filepath.Join(t.TempDir(), "scratch")
	commit, err := NewClient().CloneBranch(context.Background(), repo, "packages/pkgfile", dest)
	if err != nil {
		t.Fatalf("CloneBranch() error: %v", err)
	}

	if want := gittest.HeadOf(t, repo, "packages/pkgfile"); commit != want {
		t.Errorf("commit = %q, want %q", commit, want)
	}

	for _, name := range []string{"PKGBUILD", "pkgfile.timer"} {
		if _, err := os.Stat(filepath.Join(dest, "trunk", name)); err != nil {
			t.Errorf("expected trunk/%s in clone: %v", name, err)
		}
	}

	// Only the requested branch is materialized.
	if _, err := os.Stat(filepath.Join(dest, "README.md")); !os.IsNotExist(err) {
		t.Errorf("expected README.md from main to be absent, got err = %v", err)
	}
}

func TestCloneBranchMissing(t *testing.T) {
	gittest.RequireGit(t)
	repo := setupRepo(t)

	dest := filepath.Join(t.TempDir(), "scratch")
	if _, err := NewClient().CloneBranch(context.Background(), repo, "packages/foobar", dest); err == nil {
		t.Fatal("expected error cloning missing branch, got nil")
	}
}

func TestIsTransient(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	tests := map[string]struct {
		err  error
		want bool
	}{
		"dial error":           {err: dialErr, want: true},
		"wrapped in url error": {err: &url.Error{Op: "Get", URL: "https://svntogit.test", Err: dialErr}, want: true},
		"wrapped with fmt":     {err: fmt.Errorf("listing refs: %w", dialErr), want: true},
		"repository not found": {err: transport.ErrRepositoryNotFound},
		"auth required":        {err: transport.ErrAuthenticationRequired},
		"canceled":             {err: context.Canceled},
		"canceled url error":   {err: &url.Error{Op: "Get", URL: "https://svntogit.test", Err: context.Canceled}},
		"plain error":          {err: errors.New("boom")},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := isTransient(tc.err); got != tc.want {
				t.Errorf("isTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestWithRetry(t *testing.T) {
	transient := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}

	tests := map[string]struct {
		errs      []error // returned by successive calls; nil means success
		maxTries  uint
		wantCalls int
		wantErr   error
	}{
		"first try succeeds": {
			errs:      []error{nil},
			maxTries:  3,
			wantCalls: 1,
		},
		"recovers after transient failures": {
			errs:      []error{transient, transient, nil},
			maxTries:  3,
			wantCalls: 3,
		},
		"gives up after max tries": {
			errs:      []error{transient, transient, transient, nil},
			maxTries:  3,
			wantCalls: 3,
			wantErr:   transient,
		},
		"permanent error is not retried": {
			errs:      []error{transport.ErrRepositoryNotFound, nil},
			maxTries:  3,
			wantCalls: 1,
			wantErr:   transport.ErrRepositoryNotFound,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := NewClient(WithMaxTries(tc.maxTries)).(*client)
			c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

			calls := 0
			got, err := withRetry(context.Background(), c, func() (int, error) {
				err := tc.errs[calls]
				calls++
				if err != nil {
					return 0, err
				}
				return 42, nil
			})

			if calls != tc.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tc.wantCalls)
			}
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("withRetry() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("withRetry() error: %v", err)
			}
			if got != 42 {
				t.Errorf("withRetry() = %d, want 42", got)
			}
		})
	}
}
