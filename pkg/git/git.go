// Package git talks to remote repositories for the fetcher: it can ask a
// remote whether a branch exists and make a narrow clone of one branch.
package git

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/cenkalti/backoff/v5"
	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
)

const (
	remoteName = "origin"

	// DefaultMaxTries bounds attempts per remote operation when the
	// failure looks like a network hiccup.
	DefaultMaxTries = 3
)

type Client interface {
	// RemoteBranchExists reports whether branch is advertised by the remote
	// at url. Transport and auth failures are returned as errors.
	RemoteBranchExists(ctx context.Context, url, branch string) (bool, error)
	// CloneBranch makes a shallow, single-branch clone of branch into dest
	// and returns the commit hash it checked out. dest must be empty or
	// absent.
	CloneBranch(ctx context.Context, url, branch, dest string) (string, error)
}

type Option func(*client)

// WithMaxTries sets how many times a remote operation is attempted when it
// fails with a network error. Values below 1 mean a single attempt.
func WithMaxTries(n uint) Option {
	return func(c *client) {
		if n < 1 {
			n = 1
		}
		c.maxTries = n
	}
}

func NewClient(opts ...Option) Client {
	c := &client{
		maxTries:   DefaultMaxTries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type client struct {
	maxTries   uint
	newBackOff func() backoff.BackOff
}

var _ Client = &client{}

func (c *client) RemoteBranchExists(ctx context.Context, url, branch string) (bool, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: remoteName,
		URLs: []string{url},
	})

	refs, err := withRetry(ctx, c, func() ([]*plumbing.Reference, error) {
		return remote.ListContext(ctx, &gogit.ListOptions{})
	})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return false, nil
		}
		return false, fmt.Errorf("listing refs of %s: %w", url, err)
	}

	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return true, nil
		}
	}
	return false, nil
}

func (c *client) CloneBranch(ctx context.Context, url, branch, dest string) (string, error) {
	attempt := 0
	repo, err := withRetry(ctx, c, func() (*gogit.Repository, error) {
		attempt++
		if attempt > 1 {
			// start over from an empty dest
			if err := os.RemoveAll(dest); err != nil {
				return nil, backoff.Permanent(err)
			}
		}
		return gogit.PlainCloneContext(ctx, dest, false, &gogit.CloneOptions{
			URL:           url,
			RemoteName:    remoteName,
			ReferenceName: plumbing.NewBranchReferenceName(branch),
			SingleBranch:  true,
			Depth:         1,
			Tags:          gogit.NoTags,
		})
	})
	if err != nil {
		return "", fmt.Errorf("cloning %s@%s: %w", url, branch, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading HEAD of %s@%s: %w", url, branch, err)
	}
	return head.Hash().String(), nil
}

// withRetry runs op until it succeeds, fails with a non-transient error, or
// c.maxTries attempts have been made.
func withRetry[T any](ctx context.Context, c *client, op func() (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !isTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(c.newBackOff()), backoff.WithMaxTries(c.maxTries))
}

// isTransient reports whether err is a network failure worth retrying.
// Missing repositories, missing branches and auth failures are final.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
