// Package webhook turns parsed webhook deliveries into snapshot, comment and
// status effects.
//
// Deliveries for the same pull request family are serialized; unrelated
// families proceed in parallel. Within one delivery the effects land in a
// fixed order: snapshot mutation, then the rebase comment, then per-commit
// statuses, then the branch roll-up. A delivery aborts on the first error
// and leaves whatever it already did in place; the registry is monotonic and
// the status reconciler idempotent, so a redelivery converges.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aasharkey/gitbot/internal/classify"
	"github.com/aasharkey/gitbot/internal/comment"
	"github.com/aasharkey/gitbot/internal/commitlog"
	"github.com/aasharkey/gitbot/internal/events"
	"github.com/aasharkey/gitbot/internal/github"
	"github.com/aasharkey/gitbot/internal/gitcmd"
	"github.com/aasharkey/gitbot/internal/policy"
	"github.com/aasharkey/gitbot/internal/refname"
	"github.com/aasharkey/gitbot/internal/registry"
	"github.com/aasharkey/gitbot/internal/status"
)

// VCS is the slice of the git gateway the dispatcher drives directly.
type VCS interface {
	WithFetchHead(fn func() error) error
	Fetch(ctx context.Context, remote, refspec string) error
	LsRemote(ctx context.Context, remote, pattern string) ([]gitcmd.RemoteRef, error)
	LogFull(ctx context.Context, rangeSpec string) (string, error)
	ShowCheck(ctx context.Context, sha string) (bool, error)
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)
}

// Snapshots records rebase snapshots for pull request families.
type Snapshots interface {
	Initialize(ctx context.Context, coords refname.Coordinates, tip string) error
	CurrentRebase(ctx context.Context, coords refname.Coordinates) (int, error)
	LookupFamily(ctx context.Context, org, repo string, prNumber int) (refname.Coordinates, error)
	AdvanceHead(ctx context.Context, coords refname.Coordinates, tip string) error
	OpenNewRebase(ctx context.Context, coords refname.Coordinates, tip string) (int, error)
}

// CommentPoster posts issue comments on the platform.
type CommentPoster interface {
	PostIssueComment(ctx context.Context, owner, repo string, prNumber int, body string) error
}

// StatusReconciler publishes commit verdicts as platform statuses.
type StatusReconciler interface {
	Reconcile(ctx context.Context, owner, repo string, verdicts []status.CommitVerdict, headSHA string) (int, error)
}

// Config holds the dispatcher's collaborators.
type Config struct {
	VCS       VCS
	Snapshots Snapshots
	Platform  CommentPoster
	Statuses  StatusReconciler
	Checker   *policy.Checker
	Composer  comment.Composer
	Events    events.EventHandler // optional
}

// Dispatcher handles parsed webhook deliveries.
type Dispatcher struct {
	cfg   Config
	locks *familyLocks
}

func New(cfg Config) *Dispatcher {
	return &Dispatcher{cfg: cfg, locks: newFamilyLocks()}
}

// Start runs the idle family-lock sweep until ctx is cancelled. The
// dispatcher works without it; long-lived processes run it so the lock map
// does not grow with every pull request ever seen.
func (d *Dispatcher) Start(ctx context.Context) {
	d.locks.sweep(ctx, lockSweepInterval)
}

// HandlePullRequest records the first snapshot pair of a freshly opened pull
// request and checks its commits. A pull request whose snapshots already
// exist is skipped: an earlier delivery won the race and published whatever
// there was to publish.
func (d *Dispatcher) HandlePullRequest(ctx context.Context, deliveryID string, ev github.PullRequestOpened) error {
	start := time.Now()
	d.emit(events.DeliveryReceived{
		DeliveryID: deliveryID,
		Event:      "pull_request",
		Org:        ev.Org,
		Repo:       ev.Repo,
		Sender:     ev.Sender,
	})

	release, err := d.locks.acquire(ctx, familyKey{org: ev.Org, repo: ev.Repo, pr: ev.PRNumber})
	if err != nil {
		return d.fail(deliveryID, "locking family", err)
	}
	defer release()

	coords := refname.Coordinates{
		Org:        ev.Org,
		Repo:       ev.Repo,
		PRNumber:   ev.PRNumber,
		BaseBranch: ev.BaseBranch,
	}

	err = d.cfg.VCS.WithFetchHead(func() error {
		if err := d.cfg.VCS.Fetch(ctx, ev.SSHURL, fmt.Sprintf("refs/pull/%d/head", ev.PRNumber)); err != nil {
			return fmt.Errorf("fetching pull request head: %w", err)
		}
		return d.cfg.Snapshots.Initialize(ctx, coords, "FETCH_HEAD")
	})
	if errors.Is(err, registry.ErrAlreadyInitialized) {
		slog.Warn("pull request already has snapshots, skipping",
			"org", ev.Org, "repo", ev.Repo, "pr", ev.PRNumber)
		d.emit(events.DeliverySkipped{DeliveryID: deliveryID, Reason: "snapshots already initialized"})
		return nil
	}
	if err != nil {
		return d.fail(deliveryID, "initializing snapshots", err)
	}
	d.emit(events.SnapshotRecorded{
		DeliveryID: deliveryID,
		Family:     coords.String(),
		Rebase:     0,
		Operation:  "initialize",
	})

	if err := d.checkCommits(ctx, deliveryID, ev.SSHURL, coords, 0); err != nil {
		return d.fail(deliveryID, "checking commits", err)
	}

	d.emit(events.DeliveryDone{DeliveryID: deliveryID, DurationMS: int(time.Since(start).Milliseconds())})
	return nil
}

// HandlePush resolves the pushed commit to a pull request, classifies the
// push against the old tip, and records it: a rewrite opens the next
// snapshot pair and posts the rebase comment, a fast-forward advances the
// current head pointer. Both end with a policy pass over the branch.
func (d *Dispatcher) HandlePush(ctx context.Context, deliveryID string, ev github.Push) error {
	start := time.Now()
	d.emit(events.DeliveryReceived{
		DeliveryID: deliveryID,
		Event:      "push",
		Org:        ev.Org,
		Repo:       ev.Repo,
		Sender:     ev.Sender,
	})

	prNumber, err := d.matchPullRequest(ctx, ev)
	if err != nil {
		return d.fail(deliveryID, "matching pull request", err)
	}
	if prNumber == 0 {
		slog.Debug("pushed commit is not a pull request head",
			"org", ev.Org, "repo", ev.Repo, "ref", ev.Ref, "after", ev.After)
		d.emit(events.DeliverySkipped{DeliveryID: deliveryID, Reason: "no pull request for pushed commit"})
		return nil
	}

	release, err := d.locks.acquire(ctx, familyKey{org: ev.Org, repo: ev.Repo, pr: prNumber})
	if err != nil {
		return d.fail(deliveryID, "locking family", err)
	}
	defer release()

	coords, err := d.cfg.Snapshots.LookupFamily(ctx, ev.Org, ev.Repo, prNumber)
	if errors.Is(err, registry.ErrNoFamily) {
		slog.Warn("push for a pull request the bot never saw opened, skipping",
			"org", ev.Org, "repo", ev.Repo, "pr", prNumber)
		d.emit(events.DeliverySkipped{DeliveryID: deliveryID, Reason: "no snapshot family for pull request"})
		return nil
	}
	if err != nil {
		return d.fail(deliveryID, "looking up family", err)
	}

	current, err := d.cfg.Snapshots.CurrentRebase(ctx, coords)
	if err != nil {
		return d.fail(deliveryID, "reading current rebase", err)
	}

	var kind classify.Kind
	checkN := current
	err = d.cfg.VCS.WithFetchHead(func() error {
		if err := d.cfg.VCS.Fetch(ctx, ev.SSHURL, ev.Ref); err != nil {
			return fmt.Errorf("fetching pushed ref: %w", err)
		}
		kind, err = classify.Push(ctx, d.cfg.VCS, ev.Before, ev.After)
		if err != nil {
			return fmt.Errorf("classifying push: %w", err)
		}
		switch kind {
		case classify.Rewrite:
			n, err := d.cfg.Snapshots.OpenNewRebase(ctx, coords, "FETCH_HEAD")
			if err != nil {
				return fmt.Errorf("opening new rebase: %w", err)
			}
			checkN = n
		case classify.FastForward:
			if err := d.cfg.Snapshots.AdvanceHead(ctx, coords, "FETCH_HEAD"); err != nil {
				return fmt.Errorf("advancing head: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return d.fail(deliveryID, "recording snapshot", err)
	}

	d.emit(events.PushClassified{DeliveryID: deliveryID, PRNumber: prNumber, Kind: string(kind)})
	operation := "advance_head"
	if kind == classify.Rewrite {
		operation = "open_new_rebase"
	}
	d.emit(events.SnapshotRecorded{
		DeliveryID: deliveryID,
		Family:     coords.String(),
		Rebase:     checkN,
		Operation:  operation,
	})

	if kind == classify.Rewrite {
		body := d.cfg.Composer.Compose(coords, current, ev.Sender)
		if err := d.cfg.Platform.PostIssueComment(ctx, ev.Org, ev.Repo, prNumber, body); err != nil {
			return d.fail(deliveryID, "posting comment", err)
		}
		d.emit(events.CommentPosted{DeliveryID: deliveryID, PRNumber: prNumber, Rebases: current + 1})
	}

	if err := d.checkCommits(ctx, deliveryID, ev.SSHURL, coords, checkN); err != nil {
		return d.fail(deliveryID, "checking commits", err)
	}

	d.emit(events.DeliveryDone{DeliveryID: deliveryID, DurationMS: int(time.Since(start).Milliseconds())})
	return nil
}

// matchPullRequest finds the open pull request whose head the push moved, by
// asking the remote which pull head refs resolve to the pushed commit. Zero
// means none did. Payload branch names are never trusted for this; the
// remote's own ref advertisement is.
func (d *Dispatcher) matchPullRequest(ctx context.Context, ev github.Push) (int, error) {
	refs, err := d.cfg.VCS.LsRemote(ctx, ev.SSHURL, "refs/pull/*/head")
	if err != nil {
		return 0, fmt.Errorf("listing pull head refs: %w", err)
	}
	for _, ref := range refs {
		if ref.SHA != ev.After {
			continue
		}
		n, err := prNumberFromRef(ref.Ref)
		if err != nil {
			continue
		}
		return n, nil
	}
	return 0, nil
}

// checkCommits fetches the family's base branch, scans the commits the
// snapshot holds over it, and reconciles the published statuses with the
// violations found.
func (d *Dispatcher) checkCommits(ctx context.Context, deliveryID, sshURL string, coords refname.Coordinates, n int) error {
	headRef, err := refname.Build(coords, refname.Head, n)
	if err != nil {
		return err
	}

	var text string
	err = d.cfg.VCS.WithFetchHead(func() error {
		if err := d.cfg.VCS.Fetch(ctx, sshURL, "refs/heads/"+coords.BaseBranch); err != nil {
			return fmt.Errorf("fetching base branch: %w", err)
		}
		out, err := d.cfg.VCS.LogFull(ctx, "FETCH_HEAD..refs/heads/"+headRef)
		if err != nil {
			return fmt.Errorf("reading commit log: %w", err)
		}
		text = out
		return nil
	})
	if err != nil {
		return err
	}

	commits, err := commitlog.Parse(text)
	if err != nil {
		return fmt.Errorf("parsing commit log: %w", err)
	}
	if len(commits) == 0 {
		d.emit(events.StatusesPosted{DeliveryID: deliveryID, Commits: 0, Posted: 0})
		return nil
	}

	verdicts := make([]status.CommitVerdict, 0, len(commits))
	for _, c := range commits {
		dirty, err := d.cfg.VCS.ShowCheck(ctx, c.SHA)
		if err != nil {
			return fmt.Errorf("checking whitespace on %s: %w", c.SHA, err)
		}
		verdicts = append(verdicts, status.CommitVerdict{
			SHA:        c.SHA,
			Violations: d.cfg.Checker.Check(c, dirty),
		})
	}

	posted, err := d.cfg.Statuses.Reconcile(ctx, coords.Org, coords.Repo, verdicts, commits[0].SHA)
	if err != nil {
		return fmt.Errorf("reconciling statuses: %w", err)
	}
	d.emit(events.StatusesPosted{DeliveryID: deliveryID, Commits: len(commits), Posted: posted})
	return nil
}

// prNumberFromRef extracts N from "refs/pull/N/head".
func prNumberFromRef(ref string) (int, error) {
	rest, ok := strings.CutPrefix(ref, "refs/pull/")
	if !ok {
		return 0, fmt.Errorf("not a pull head ref: %s", ref)
	}
	num, ok := strings.CutSuffix(rest, "/head")
	if !ok {
		return 0, fmt.Errorf("not a pull head ref: %s", ref)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("not a pull head ref: %s", ref)
	}
	return n, nil
}

func (d *Dispatcher) fail(deliveryID, stage string, err error) error {
	d.emit(events.DeliveryError{DeliveryID: deliveryID, Stage: stage, Err: err.Error()})
	return fmt.Errorf("%s: %w", stage, err)
}

func (d *Dispatcher) emit(ev events.Event) {
	if d.cfg.Events == nil {
		return
	}
	d.cfg.Events.Handle(ev)
}
