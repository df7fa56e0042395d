package github

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Status is a mock commit status, wire-compatible with go-github's RepoStatus.
type Status struct {
	State       string `json:"state"`
	Context     string `json:"context"`
	Description string `json:"description"`
}

// PostedStatus records a status creation request received by the mock.
type PostedStatus struct {
	Owner  string
	Repo   string
	SHA    string
	Status Status
}

// PostedComment records an issue comment posted via the mock API.
type PostedComment struct {
	Owner    string
	Repo     string
	PRNumber int
	Body     string
}

// Mock is an in-memory mock of the slice of the GitHub REST API the bot talks
// to: commit statuses and issue comments. Routes are served under /api/v3/ to
// match go-github's WithEnterpriseURLs.
type Mock struct {
	mu       sync.Mutex
	statuses map[string][]Status // "owner/repo@sha" → statuses in post order
	nextID   int64

	// Tracking for verification
	PostedStatuses []PostedStatus
	PostedComments []PostedComment
}

// New creates a new empty GitHub mock.
func New() *Mock {
	return &Mock{
		statuses: make(map[string][]Status),
		nextID:   1000,
	}
}

// Server starts an httptest.Server serving the mock and registers cleanup.
func (m *Mock) Server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)
	return srv
}

// Handler returns an http.Handler for the mock GitHub REST API.
func (m *Mock) Handler() http.Handler {
	mux := http.NewServeMux()
	// go-github WithEnterpriseURLs adds /api/v3/ prefix.
	mux.HandleFunc("/api/v3/repos/", m.handleRepos)
	return mux
}

// SeedStatus pre-loads a status on a commit, as if posted before the test ran.
func (m *Mock) SeedStatus(owner, repo, sha string, s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := statusKey(owner, repo, sha)
	m.statuses[key] = append(m.statuses[key], s)
}

// Statuses returns a copy of the statuses currently recorded on a commit.
func (m *Mock) Statuses(owner, repo, sha string) []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Status(nil), m.statuses[statusKey(owner, repo, sha)]...)
}

func (m *Mock) handleRepos(w http.ResponseWriter, r *http.Request) {
	// Parse: /api/v3/repos/{owner}/{repo}/...
	path := strings.TrimPrefix(r.URL.Path, "/api/v3/repos/")
	parts := strings.SplitN(path, "/", 3)
	if len(parts) < 3 {
		http.NotFound(w, r)
		return
	}
	owner := parts[0]
	repo := parts[1]
	rest := parts[2]

	switch {
	case strings.HasPrefix(rest, "commits/") && strings.HasSuffix(rest, "/statuses") && r.Method == http.MethodGet:
		m.handleListStatuses(w, r, owner, repo, rest)
	case strings.HasPrefix(rest, "statuses/") && r.Method == http.MethodPost:
		m.handleCreateStatus(w, r, owner, repo, rest)
	case strings.HasPrefix(rest, "issues/") && strings.HasSuffix(rest, "/comments") && r.Method == http.MethodPost:
		m.handleCreateIssueComment(w, r, owner, repo, rest)
	default:
		http.NotFound(w, r)
	}
}

func (m *Mock) handleListStatuses(w http.ResponseWriter, _ *http.Request, owner, repo, rest string) {
	// rest = "commits/{sha}/statuses"
	sha := strings.TrimSuffix(strings.TrimPrefix(rest, "commits/"), "/statuses")

	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := m.statuses[statusKey(owner, repo, sha)]
	if statuses == nil {
		statuses = []Status{}
	}
	json.NewEncoder(w).Encode(statuses)
}

func (m *Mock) handleCreateStatus(w http.ResponseWriter, r *http.Request, owner, repo, rest string) {
	// rest = "statuses/{sha}"
	sha := strings.TrimPrefix(rest, "statuses/")

	var s Status
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	key := statusKey(owner, repo, sha)
	m.statuses[key] = append(m.statuses[key], s)
	m.PostedStatuses = append(m.PostedStatuses, PostedStatus{
		Owner:  owner,
		Repo:   repo,
		SHA:    sha,
		Status: s,
	})

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"id":          m.nextID,
		"state":       s.State,
		"context":     s.Context,
		"description": s.Description,
	})
}

func (m *Mock) handleCreateIssueComment(w http.ResponseWriter, r *http.Request, owner, repo, rest string) {
	// rest = "issues/{number}/comments"
	prNum := extractIssueNumber(rest)

	var body struct {
		Body *string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.PostedComments = append(m.PostedComments, PostedComment{
		Owner:    owner,
		Repo:     repo,
		PRNumber: prNum,
		Body:     deref(body.Body),
	})

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"id":   m.nextID,
		"body": deref(body.Body),
		"user": map[string]any{"login": "gitbot"},
	})
}

func statusKey(owner, repo, sha string) string {
	return owner + "/" + repo + "@" + sha
}

func extractIssueNumber(rest string) int {
	// rest = "issues/{number}/..." — extract number
	parts := strings.Split(rest, "/")
	if len(parts) >= 2 {
		n, _ := strconv.Atoi(parts[1])
		return n
	}
	return 0
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
