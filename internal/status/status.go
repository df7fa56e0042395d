// Package status publishes policy verdicts as commit statuses. Publishing is
// idempotent per (commit, context): a failure already on the platform is
// never posted twice, and a published failure is never taken back.
package status

import (
	"context"
	"strings"
	"time"

	"github.com/aasharkey/gitbot/internal/github"
	"github.com/aasharkey/gitbot/internal/policy"
)

const (
	// ContextPrefix namespaces every status context this system owns. The
	// reconciler only ever considers contexts under this prefix; statuses
	// posted by CI or other bots are left alone.
	ContextPrefix = "gitbot-"

	// BranchContext is the roll-up context posted to the branch head when
	// any commit in the scan is failing. The platform's branch-level merge
	// gate watches head statuses only, so without the roll-up a clean head
	// would mask failing commits below it.
	BranchContext = ContextPrefix + "branch-check"

	branchDescription = "Branch contains commits in failure state"
	stateFailure      = "failure"
)

// DefaultPostDelay spaces consecutive status posts to respect platform
// rate limits.
const DefaultPostDelay = time.Second

// Platform is the slice of the platform gateway the reconciler needs.
type Platform interface {
	ListStatuses(ctx context.Context, owner, repo, ref string) ([]github.Status, error)
	PostStatus(ctx context.Context, owner, repo, sha string, status github.Status) error
}

// CommitVerdict pairs a commit with its policy violations, in rule order.
type CommitVerdict struct {
	SHA        string
	Violations []policy.Violation
}

// Reconciler publishes verdicts against one platform.
type Reconciler struct {
	platform Platform
	delay    time.Duration
	sleep    func(time.Duration)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPostDelay overrides the delay applied after each post.
func WithPostDelay(d time.Duration) Option {
	return func(r *Reconciler) { r.delay = d }
}

// WithSleep overrides the sleep function. Tests pass a no-op.
func WithSleep(fn func(time.Duration)) Option {
	return func(r *Reconciler) { r.sleep = fn }
}

// New returns a Reconciler publishing through platform.
func New(platform Platform, opts ...Option) *Reconciler {
	r := &Reconciler{
		platform: platform,
		delay:    DefaultPostDelay,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile posts a failure status for every violation not already recorded
// on the platform, in (commit, rule) order, then posts the branch roll-up to
// headSHA when any commit was failing. Commits with no violations cost no
// API calls. Returns the number of statuses actually posted.
func (r *Reconciler) Reconcile(ctx context.Context, owner, repo string, verdicts []CommitVerdict, headSHA string) (int, error) {
	posted := 0
	failing := false
	for _, v := range verdicts {
		if len(v.Violations) == 0 {
			continue
		}
		failing = true
		n, err := r.publish(ctx, owner, repo, v.SHA, violationStatuses(v.Violations))
		posted += n
		if err != nil {
			return posted, err
		}
	}
	if !failing {
		return posted, nil
	}

	n, err := r.publish(ctx, owner, repo, headSHA, []github.Status{{
		Context:     BranchContext,
		State:       stateFailure,
		Description: branchDescription,
	}})
	return posted + n, err
}

// publish posts the given statuses to one commit, skipping any context that
// is already failing there.
func (r *Reconciler) publish(ctx context.Context, owner, repo, sha string, statuses []github.Status) (int, error) {
	existing, err := r.platform.ListStatuses(ctx, owner, repo, sha)
	if err != nil {
		return 0, err
	}
	alreadyFailing := make(map[string]bool, len(existing))
	for _, s := range existing {
		if strings.HasPrefix(s.Context, ContextPrefix) && s.State == stateFailure {
			alreadyFailing[s.Context] = true
		}
	}

	posted := 0
	for _, s := range statuses {
		if alreadyFailing[s.Context] {
			continue
		}
		if err := r.platform.PostStatus(ctx, owner, repo, sha, s); err != nil {
			return posted, err
		}
		posted++
		r.sleep(r.delay)
	}
	return posted, nil
}

func violationStatuses(violations []policy.Violation) []github.Status {
	statuses := make([]github.Status, 0, len(violations))
	for _, v := range violations {
		statuses = append(statuses, github.Status{
			Context:     ContextPrefix + v.RuleID,
			State:       stateFailure,
			Description: v.Message,
		})
	}
	return statuses
}
