package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aasharkey/gitbot/internal/comment"
	"github.com/aasharkey/gitbot/internal/gitcmd"
	gh "github.com/aasharkey/gitbot/internal/github"
	"github.com/aasharkey/gitbot/internal/policy"
	"github.com/aasharkey/gitbot/internal/registry"
	"github.com/aasharkey/gitbot/internal/server"
	"github.com/aasharkey/gitbot/internal/status"
	"github.com/aasharkey/gitbot/internal/webhook"
	mockgithub "github.com/aasharkey/gitbot/test/e2e/mocks/github"
)

const (
	owner    = "acme"
	repoName = "widget"
	sender   = "jdoe"
)

// Playground is a self-contained E2E environment: a mock GitHub API, an
// upstream repository standing in for the hosted one, the bot's snapshot
// repository, and the bot's HTTP server wired the way cmd/gitbot wires it.
// Deliveries go through the real webhook sink as GitHub-format JSON.
type Playground struct {
	t *testing.T

	GitHub *mockgithub.Mock

	// UpstreamDir is the repository deliveries point at. Its path doubles as
	// the ssh_url in payloads; git treats it as a local remote.
	UpstreamDir string
	// RegistryDir is the bot's own repository holding the snapshot refs.
	RegistryDir string

	Addr string
}

// StartPlayground starts a complete E2E playground: mock GitHub server, the
// two git repositories, and the bot's HTTP server. It registers cleanup via
// t.Cleanup.
func StartPlayground(t *testing.T) *Playground {
	t.Helper()

	githubMock := mockgithub.New()
	githubSrv := githubMock.Server(t)

	platform, err := gh.New("gitbot", "test-token", gh.WithBaseURL(githubSrv.URL+"/"))
	if err != nil {
		t.Fatalf("creating platform client: %v", err)
	}

	upstreamDir := t.TempDir()
	gitRun(t, upstreamDir, "init", "-b", "main")

	registryDir := t.TempDir()
	gitRun(t, registryDir, "init")
	gitRun(t, registryDir, "commit", "--allow-empty", "-m", "registry root")

	repo := gitcmd.New(registryDir, gitcmd.WithSleep(func(time.Duration) {}))

	dispatcher := webhook.New(webhook.Config{
		VCS:       repo,
		Snapshots: registry.New(repo),
		Platform:  platform,
		Statuses:  status.New(platform, status.WithSleep(func(time.Duration) {})),
		Checker:   policy.New([]string{"example.com"}),
		Composer:  comment.Composer{URLRoot: "http://gitbot.example.com"},
	})

	srv, err := server.New("127.0.0.1:0", server.Config{Dispatcher: dispatcher})
	if err != nil {
		t.Fatalf("starting playground server: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	pg := &Playground{
		t:           t,
		GitHub:      githubMock,
		UpstreamDir: upstreamDir,
		RegistryDir: registryDir,
		Addr:        srv.Addr(),
	}

	pg.waitForHealth()
	return pg
}

// BaseURL returns the full base URL of the running server.
func (pg *Playground) BaseURL() string {
	return "http://" + pg.Addr
}

// Commit writes a file in the upstream repository and commits it. Returns the
// new commit id.
func (pg *Playground) Commit(file, content, message string) string {
	pg.t.Helper()
	if err := os.WriteFile(filepath.Join(pg.UpstreamDir, file), []byte(content), 0644); err != nil {
		pg.t.Fatalf("writing %s: %v", file, err)
	}
	gitRun(pg.t, pg.UpstreamDir, "add", "-A")
	gitRun(pg.t, pg.UpstreamDir, "commit", "-m", message)
	return pg.UpstreamSHA("HEAD")
}

// Branch creates and checks out a branch in the upstream repository.
func (pg *Playground) Branch(name string) {
	pg.t.Helper()
	gitRun(pg.t, pg.UpstreamDir, "checkout", "-b", name)
}

// ResetHard moves the upstream working branch back to ref, dropping commits
// the way a rebase does before replaying them.
func (pg *Playground) ResetHard(ref string) {
	pg.t.Helper()
	gitRun(pg.t, pg.UpstreamDir, "reset", "--hard", ref)
}

// SetPullHead points refs/pull/{pr}/head at sha in the upstream repository,
// standing in for the platform's pull head mirror.
func (pg *Playground) SetPullHead(pr int, sha string) {
	pg.t.Helper()
	gitRun(pg.t, pg.UpstreamDir, "update-ref", "refs/pull/"+strconv.Itoa(pr)+"/head", sha)
}

// UpstreamSHA resolves a ref in the upstream repository.
func (pg *Playground) UpstreamSHA(ref string) string {
	pg.t.Helper()
	return gitOut(pg.t, pg.UpstreamDir, "rev-parse", ref)
}

// SnapshotSHA resolves a snapshot ref in the bot's registry repository.
func (pg *Playground) SnapshotSHA(ref string) string {
	pg.t.Helper()
	return gitOut(pg.t, pg.RegistryDir, "rev-parse", "refs/heads/"+ref)
}

// SnapshotRefs lists the snapshot refs currently in the registry repository.
func (pg *Playground) SnapshotRefs() []string {
	pg.t.Helper()
	out := gitOut(pg.t, pg.RegistryDir, "branch", "--list", "--format=%(refname:short)", owner+"/*")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// DeliverPullRequestOpened posts a pull_request opened delivery to the
// webhook sink and reports the response status code.
func (pg *Playground) DeliverPullRequestOpened(pr int, baseBranch, headSHA string) int {
	pg.t.Helper()
	return pg.deliver("pull_request", map[string]any{
		"action": "opened",
		"pull_request": map[string]any{
			"number": pr,
			"base":   map[string]any{"ref": baseBranch},
			"head":   map[string]any{"sha": headSHA},
		},
		"repository": map[string]any{
			"full_name": owner + "/" + repoName,
			"ssh_url":   pg.UpstreamDir,
		},
		"sender": map[string]any{"login": sender},
	})
}

// DeliverPush posts a push delivery to the webhook sink and reports the
// response status code.
func (pg *Playground) DeliverPush(ref, before, after string) int {
	pg.t.Helper()
	return pg.deliver("push", map[string]any{
		"ref":    ref,
		"before": before,
		"after":  after,
		"repository": map[string]any{
			"full_name": owner + "/" + repoName,
			"ssh_url":   pg.UpstreamDir,
		},
		"sender": map[string]any{"login": sender},
	})
}

func (pg *Playground) deliver(event string, payload map[string]any) int {
	pg.t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		pg.t.Fatalf("marshaling %s payload: %v", event, err)
	}

	req, err := http.NewRequest(http.MethodPost, pg.BaseURL()+"/check_rebase", bytes.NewReader(body))
	if err != nil {
		pg.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Github-Event", event)
	req.Header.Set("X-Github-Delivery", uuid.NewString())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		pg.t.Fatalf("delivering %s: %v", event, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func (pg *Playground) waitForHealth() {
	pg.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(pg.BaseURL() + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	pg.t.Fatal("playground server did not become healthy within 5s")
}

// gitRun executes a git command in the given directory with the playground
// identity pinned through the environment.
func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	if out, err := gitCmd(dir, args...).CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

// gitOut executes a git command and returns its trimmed stdout.
func gitOut(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := gitCmd(dir, args...).Output()
	if err != nil {
		t.Fatalf("git %v: %v", args, err)
	}
	return strings.TrimSpace(string(out))
}

func gitCmd(dir string, args ...string) *exec.Cmd {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Jane Doe",
		"GIT_AUTHOR_EMAIL=jane@example.com",
		"GIT_COMMITTER_NAME=Jane Doe",
		"GIT_COMMITTER_EMAIL=jane@example.com",
	)
	return cmd
}
