package github

import (
	"context"
	"testing"

	gh "github.com/aasharkey/gitbot/internal/github"
)

func mustNew(t *testing.T, opts ...gh.Option) *gh.Client {
	t.Helper()
	c, err := gh.New("gitbot", "test-token", opts...)
	if err != nil {
		t.Fatalf("gh.New: %v", err)
	}
	return c
}

func TestMock_PostStatus_Tracked(t *testing.T) {
	mock := New()
	srv := mock.Server(t)

	client := mustNew(t, gh.WithBaseURL(srv.URL+"/"))
	err := client.PostStatus(context.Background(), "acme", "widget", "abc123", gh.Status{
		Context:     "gitbot-title-verb-check",
		State:       "failure",
		Description: "Title does not start with a known verb",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.PostedStatuses) != 1 {
		t.Fatalf("expected 1 posted status, got %d", len(mock.PostedStatuses))
	}
	ps := mock.PostedStatuses[0]
	if ps.Owner != "acme" || ps.Repo != "widget" || ps.SHA != "abc123" {
		t.Errorf("unexpected target: %+v", ps)
	}
	if ps.Status.Context != "gitbot-title-verb-check" {
		t.Errorf("expected context 'gitbot-title-verb-check', got %q", ps.Status.Context)
	}
	if ps.Status.State != "failure" {
		t.Errorf("expected state 'failure', got %q", ps.Status.State)
	}

	stored := mock.Statuses("acme", "widget", "abc123")
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored status, got %d", len(stored))
	}
}

func TestMock_ListStatuses_Empty(t *testing.T) {
	mock := New()
	srv := mock.Server(t)

	client := mustNew(t, gh.WithBaseURL(srv.URL+"/"))
	statuses, err := client.ListStatuses(context.Background(), "acme", "widget", "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statuses) != 0 {
		t.Errorf("expected 0 statuses, got %d", len(statuses))
	}
}

func TestMock_ListStatuses_SeededAndPosted(t *testing.T) {
	mock := New()
	mock.SeedStatus("acme", "widget", "abc123", Status{
		Context: "ci/build", State: "success",
	})
	srv := mock.Server(t)

	client := mustNew(t, gh.WithBaseURL(srv.URL+"/"))
	ctx := context.Background()

	err := client.PostStatus(ctx, "acme", "widget", "abc123", gh.Status{
		Context: "gitbot-body-check", State: "failure", Description: "Commit message has no body",
	})
	if err != nil {
		t.Fatalf("posting status: %v", err)
	}

	statuses, err := client.ListStatuses(ctx, "acme", "widget", "abc123")
	if err != nil {
		t.Fatalf("listing statuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Context != "ci/build" {
		t.Errorf("expected seeded status first, got %q", statuses[0].Context)
	}
	if statuses[1].Context != "gitbot-body-check" {
		t.Errorf("expected posted status second, got %q", statuses[1].Context)
	}
	if statuses[1].Description != "Commit message has no body" {
		t.Errorf("unexpected description %q", statuses[1].Description)
	}
}

func TestMock_PostIssueComment_Tracked(t *testing.T) {
	mock := New()
	srv := mock.Server(t)

	client := mustNew(t, gh.WithBaseURL(srv.URL+"/"))
	err := client.PostIssueComment(context.Background(), "acme", "widget", 7, "Branch rebased 1 time(s)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.PostedComments) != 1 {
		t.Fatalf("expected 1 posted comment, got %d", len(mock.PostedComments))
	}
	pc := mock.PostedComments[0]
	if pc.Owner != "acme" || pc.Repo != "widget" || pc.PRNumber != 7 {
		t.Errorf("unexpected target: %+v", pc)
	}
	if pc.Body != "Branch rebased 1 time(s)" {
		t.Errorf("expected tracked body, got %q", pc.Body)
	}
}

func TestMock_StatusesIsolatedPerCommit(t *testing.T) {
	mock := New()
	srv := mock.Server(t)

	client := mustNew(t, gh.WithBaseURL(srv.URL+"/"))
	ctx := context.Background()

	if err := client.PostStatus(ctx, "acme", "widget", "aaa111", gh.Status{
		Context: "gitbot-body-check", State: "failure",
	}); err != nil {
		t.Fatalf("posting status: %v", err)
	}

	statuses, err := client.ListStatuses(ctx, "acme", "widget", "bbb222")
	if err != nil {
		t.Fatalf("listing statuses: %v", err)
	}
	if len(statuses) != 0 {
		t.Errorf("expected other commit to have 0 statuses, got %d", len(statuses))
	}
}
