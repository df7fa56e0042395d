// Package registry keeps the immutable rebase snapshots of each pull request
// family as local branch pairs. Every rebase n of a family owns exactly two
// refs, rebase-base/n and rebase-head/n; the base pointer never moves once
// created, the head pointer advances on fast-forward pushes.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aasharkey/gitbot/internal/gitcmd"
	"github.com/aasharkey/gitbot/internal/refname"
)

// VCS is the slice of the git gateway the registry needs.
type VCS interface {
	CreateBranch(ctx context.Context, name, startPoint string) error
	UpdateRef(ctx context.Context, name, committish string) error
	ListBranches(ctx context.Context, glob string) ([]gitcmd.BranchInfo, error)
}

var (
	// ErrAlreadyInitialized reports that snapshot refs already exist for the
	// pull request.
	ErrAlreadyInitialized = errors.New("registry already initialized")

	// ErrNoFamily reports that no snapshot refs exist for the pull request.
	ErrNoFamily = errors.New("no snapshot refs for pull request")
)

// PartialCreationError reports a snapshot pair that was only half written.
// The created ref is left in place; the refs are cheap and an operator can
// see exactly how far the pair got.
type PartialCreationError struct {
	Created string
	Failed  string
	Err     error
}

func (e *PartialCreationError) Error() string {
	return fmt.Sprintf("registry: created %s but not %s: %v", e.Created, e.Failed, e.Err)
}

func (e *PartialCreationError) Unwrap() error { return e.Err }

// Registry manages the snapshot refs of one local repository.
type Registry struct {
	vcs VCS
}

// New returns a Registry backed by vcs.
func New(vcs VCS) *Registry {
	return &Registry{vcs: vcs}
}

// Initialize records the first snapshot pair of a family, both pointers at
// tip. It fails with ErrAlreadyInitialized when any snapshot ref for the
// pull request exists, whatever its base branch.
func (r *Registry) Initialize(ctx context.Context, coords refname.Coordinates, tip string) error {
	existing, err := r.scan(ctx, refname.RefsPattern(coords.Org, coords.Repo, coords.PRNumber))
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: found %s", ErrAlreadyInitialized, existing[0].Ref)
	}
	return r.createPair(ctx, coords, 0, tip)
}

// CurrentRebase returns the highest rebase number recorded for the family,
// or -1 when the family has no snapshots. Only head refs are counted, so a
// half-written pair does not inflate the number.
func (r *Registry) CurrentRebase(ctx context.Context, coords refname.Coordinates) (int, error) {
	branches, err := r.scan(ctx, refname.Pattern(coords))
	if err != nil {
		return 0, err
	}
	current := -1
	for _, b := range branches {
		_, _, n, err := refname.Parse(b.Ref)
		if err != nil {
			continue
		}
		if n > current {
			current = n
		}
	}
	return current, nil
}

// LookupFamily resolves the coordinates of the family holding snapshots for
// the pull request. Push payloads do not carry the base branch, so this is
// how a push delivery finds it.
func (r *Registry) LookupFamily(ctx context.Context, org, repo string, prNumber int) (refname.Coordinates, error) {
	branches, err := r.scan(ctx, refname.FamilyPattern(org, repo, prNumber))
	if err != nil {
		return refname.Coordinates{}, err
	}
	for _, b := range branches {
		coords, _, _, err := refname.Parse(b.Ref)
		if err != nil {
			continue
		}
		return coords, nil
	}
	return refname.Coordinates{}, fmt.Errorf("%w: %s/%s#%d", ErrNoFamily, org, repo, prNumber)
}

// AdvanceHead moves the head pointer of the current rebase to tip. The base
// pointer is untouched.
func (r *Registry) AdvanceHead(ctx context.Context, coords refname.Coordinates, tip string) error {
	current, err := r.CurrentRebase(ctx, coords)
	if err != nil {
		return err
	}
	if current < 0 {
		return fmt.Errorf("%w: %s", ErrNoFamily, coords)
	}
	ref, err := refname.Build(coords, refname.Head, current)
	if err != nil {
		return err
	}
	return r.vcs.UpdateRef(ctx, ref, tip)
}

// OpenNewRebase records a history rewrite: it creates the next snapshot
// pair, both pointers at tip, and returns the new rebase number.
func (r *Registry) OpenNewRebase(ctx context.Context, coords refname.Coordinates, tip string) (int, error) {
	current, err := r.CurrentRebase(ctx, coords)
	if err != nil {
		return 0, err
	}
	if current < 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoFamily, coords)
	}
	n := current + 1
	if err := r.createPair(ctx, coords, n, tip); err != nil {
		return 0, err
	}
	return n, nil
}

// scan lists local branches matching pattern. git's own glob is looser than
// the ref scheme tolerates (its * crosses slashes), so everything git
// returns is re-checked with path-aware matching.
func (r *Registry) scan(ctx context.Context, pattern string) ([]gitcmd.BranchInfo, error) {
	branches, err := r.vcs.ListBranches(ctx, pattern)
	if err != nil {
		return nil, err
	}
	var matched []gitcmd.BranchInfo
	for _, b := range branches {
		ok, err := doublestar.Match(pattern, b.Ref)
		if err != nil {
			return nil, fmt.Errorf("matching %s: %w", pattern, err)
		}
		if ok {
			matched = append(matched, b)
		}
	}
	return matched, nil
}

// createPair creates the base and head refs of rebase n at tip, in that
// order. When the head ref cannot be created the base ref is deliberately
// left in place.
func (r *Registry) createPair(ctx context.Context, coords refname.Coordinates, n int, tip string) error {
	baseRef, err := refname.Build(coords, refname.Base, n)
	if err != nil {
		return err
	}
	headRef, err := refname.Build(coords, refname.Head, n)
	if err != nil {
		return err
	}
	if err := r.vcs.CreateBranch(ctx, baseRef, tip); err != nil {
		return err
	}
	if err := r.vcs.CreateBranch(ctx, headRef, tip); err != nil {
		return &PartialCreationError{Created: baseRef, Failed: headRef, Err: err}
	}
	return nil
}
