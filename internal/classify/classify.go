// Package classify decides what a push did to a pull request branch.
package classify

import "context"

// AncestryChecker reports whether one commit is an ancestor of another.
type AncestryChecker interface {
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)
}

// Kind is what a push did to the branch history.
type Kind string

const (
	// FastForward means the push only appended commits.
	FastForward Kind = "fast_forward"

	// Rewrite means the push replaced history: an amend, rebase or reset.
	Rewrite Kind = "rewrite"
)

// Push classifies a push from its before and after commits. The relation
// reads "before is an ancestor of after": when it holds the old tip is still
// in the new history, so the push only appended. When it does not hold the
// history was rewritten.
func Push(ctx context.Context, vcs AncestryChecker, before, after string) (Kind, error) {
	ok, err := vcs.IsAncestor(ctx, before, after)
	if err != nil {
		return "", err
	}
	if ok {
		return FastForward, nil
	}
	return Rewrite, nil
}
