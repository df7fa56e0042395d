// Package gitcmd is a typed gateway over the git CLI, bound to the single
// on-disk repository that backs the snapshot registry.
package gitcmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aasharkey/gitbot/internal/shell"
)

// DefaultQuiesce is the delay applied before talking to the remote. The
// platform's ref advertisement is eventually consistent; fetching immediately
// after a webhook can miss the pushed objects.
const DefaultQuiesce = time.Second

// BranchInfo is one local branch as listed by ListBranches.
type BranchInfo struct {
	Ref string
	SHA string
}

// RemoteRef is one advertised ref as listed by LsRemote.
type RemoteRef struct {
	SHA string
	Ref string
}

// Repo executes git operations in one working repository.
type Repo struct {
	sh      *shell.Runner
	quiesce time.Duration
	sleep   func(time.Duration)

	// FETCH_HEAD is a single file shared by every fetch in the repository.
	fetchMu sync.Mutex
}

// Option configures a Repo.
type Option func(*Repo)

// WithQuiesce overrides the delay applied before Fetch and LsRemote.
func WithQuiesce(d time.Duration) Option {
	return func(r *Repo) { r.quiesce = d }
}

// WithSleep overrides the sleep function. Tests pass a no-op.
func WithSleep(fn func(time.Duration)) Option {
	return func(r *Repo) { r.sleep = fn }
}

// New returns a Repo operating on the repository at dir.
func New(dir string, opts ...Option) *Repo {
	r := &Repo{
		sh:      &shell.Runner{Dir: dir},
		quiesce: DefaultQuiesce,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithFetchHead runs fn while holding the FETCH_HEAD lock. Every sequence
// that fetches and then reads FETCH_HEAD must run inside one call so that
// concurrent deliveries cannot interleave their fetches.
func (r *Repo) WithFetchHead(fn func() error) error {
	r.fetchMu.Lock()
	defer r.fetchMu.Unlock()
	return fn()
}

// Fetch fetches a refspec from a remote into FETCH_HEAD.
func (r *Repo) Fetch(ctx context.Context, remote, refspec string) error {
	r.sleep(r.quiesce)
	if _, err := r.sh.Run(ctx, "git", "fetch", remote, refspec); err != nil {
		return fmt.Errorf("fetching %s from %s: %w", refspec, remote, err)
	}
	return nil
}

// LsRemote lists the remote's advertised refs matching pattern.
func (r *Repo) LsRemote(ctx context.Context, remote, pattern string) ([]RemoteRef, error) {
	r.sleep(r.quiesce)
	out, err := r.sh.Run(ctx, "git", "ls-remote", remote, pattern)
	if err != nil {
		return nil, fmt.Errorf("listing remote refs %s on %s: %w", pattern, remote, err)
	}

	var refs []RemoteRef
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		sha, ref, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("listing remote refs: unexpected line %q", line)
		}
		refs = append(refs, RemoteRef{SHA: sha, Ref: ref})
	}
	return refs, nil
}

// CreateBranch creates a branch at startPoint.
func (r *Repo) CreateBranch(ctx context.Context, name, startPoint string) error {
	if _, err := r.sh.Run(ctx, "git", "branch", name, startPoint); err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	return nil
}

// UpdateRef points the branch at the given committish.
func (r *Repo) UpdateRef(ctx context.Context, name, committish string) error {
	if _, err := r.sh.Run(ctx, "git", "update-ref", "refs/heads/"+name, committish); err != nil {
		return fmt.Errorf("updating ref %s: %w", name, err)
	}
	return nil
}

// ListBranches lists local branches matching the glob, in git's ref order.
func (r *Repo) ListBranches(ctx context.Context, glob string) ([]BranchInfo, error) {
	out, err := r.sh.Run(ctx, "git", "branch", "--list", glob, "--format=%(objectname) %(refname:short)")
	if err != nil {
		return nil, fmt.Errorf("listing branches %s: %w", glob, err)
	}

	var branches []BranchInfo
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		sha, ref, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("listing branches: unexpected line %q", line)
		}
		branches = append(branches, BranchInfo{Ref: ref, SHA: sha})
	}
	return branches, nil
}

// LogFull returns git log --pretty=full output for the range.
func (r *Repo) LogFull(ctx context.Context, rangeSpec string) (string, error) {
	out, err := r.sh.Run(ctx, "git", "log", "--pretty=full", rangeSpec)
	if err != nil {
		return "", fmt.Errorf("reading full log %s: %w", rangeSpec, err)
	}
	return out, nil
}

// Log returns plain git log output for the range, with patches when patch is
// set.
func (r *Repo) Log(ctx context.Context, rangeSpec string, patch bool) (string, error) {
	args := []string{"log"}
	if patch {
		args = append(args, "-p")
	}
	args = append(args, rangeSpec)
	out, err := r.sh.Run(ctx, "git", args...)
	if err != nil {
		return "", fmt.Errorf("reading log %s: %w", rangeSpec, err)
	}
	return out, nil
}

// LogOneline returns "<sha> <title>" lines for the range, newest first.
func (r *Repo) LogOneline(ctx context.Context, rangeSpec string) (string, error) {
	out, err := r.sh.Run(ctx, "git", "log", "--format=%H %s", rangeSpec)
	if err != nil {
		return "", fmt.Errorf("reading oneline log %s: %w", rangeSpec, err)
	}
	return out, nil
}

// Diff returns the diff for the range. When srcPrefix and dstPrefix are
// non-empty they replace git's a/ and b/ path prefixes.
func (r *Repo) Diff(ctx context.Context, rangeSpec, srcPrefix, dstPrefix string) (string, error) {
	args := []string{"diff"}
	if srcPrefix != "" {
		args = append(args, "--src-prefix="+srcPrefix)
	}
	if dstPrefix != "" {
		args = append(args, "--dst-prefix="+dstPrefix)
	}
	args = append(args, rangeSpec)
	out, err := r.sh.Run(ctx, "git", args...)
	if err != nil {
		return "", fmt.Errorf("diffing %s: %w", rangeSpec, err)
	}
	return out, nil
}

// ShowCheck reports whether the commit introduces whitespace errors, via
// git show --check. Exit 0 means clean; git signals findings with a small
// non-zero code, anything else is a real failure.
func (r *Repo) ShowCheck(ctx context.Context, sha string) (bool, error) {
	_, err := r.sh.Run(ctx, "git", "show", "--check", sha)
	if err != nil {
		var exitErr *shell.ExitError
		if errors.As(err, &exitErr) && (exitErr.Code == 1 || exitErr.Code == 2) {
			return true, nil
		}
		return false, fmt.Errorf("checking whitespace in %s: %w", sha, err)
	}
	return false, nil
}

// IsAncestor returns true when ancestor is an ancestor of descendant. The
// underlying command signals "not an ancestor" with exit 1, not an error.
func (r *Repo) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	_, err := r.sh.Run(ctx, "git", "merge-base", "--is-ancestor", ancestor, descendant)
	if err != nil {
		var exitErr *shell.ExitError
		if errors.As(err, &exitErr) && exitErr.Code == 1 {
			return false, nil
		}
		return false, fmt.Errorf("checking ancestry: %w", err)
	}
	return true, nil
}
