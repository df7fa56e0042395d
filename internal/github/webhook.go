package github

import (
	"fmt"
	"strings"

	gh "github.com/google/go-github/v68/github"
)

// PullRequestOpened is the slice of a pull_request delivery the bot acts on.
type PullRequestOpened struct {
	Org        string
	Repo       string
	PRNumber   int
	BaseBranch string
	HeadSHA    string
	SSHURL     string
	Sender     string
}

// Push is the slice of a push delivery the bot acts on. Before and After are
// the commit ids the pushed ref moved between.
type Push struct {
	Org    string
	Repo   string
	Ref    string
	Before string
	After  string
	SSHURL string
	Sender string
}

// PayloadError reports a delivery body the bot cannot act on. The webhook
// sink answers it with a client error instead of retrying.
type PayloadError struct {
	Reason string
}

func (e *PayloadError) Error() string {
	return "bad webhook payload: " + e.Reason
}

// ParseWebhook maps one delivery to a *PullRequestOpened or *Push. Event
// types the bot does not handle, and pull_request actions other than
// "opened", come back as nil with no error.
func ParseWebhook(eventType string, body []byte) (any, error) {
	switch eventType {
	case "pull_request", "push":
	default:
		return nil, nil
	}

	raw, err := gh.ParseWebHook(eventType, body)
	if err != nil {
		return nil, &PayloadError{Reason: err.Error()}
	}

	switch e := raw.(type) {
	case *gh.PullRequestEvent:
		if e.GetAction() != "opened" {
			return nil, nil
		}
		return pullRequestOpenedFromGH(e)
	case *gh.PushEvent:
		return pushFromGH(e)
	default:
		return nil, nil
	}
}

func pullRequestOpenedFromGH(e *gh.PullRequestEvent) (*PullRequestOpened, error) {
	pr := e.GetPullRequest()
	ev := &PullRequestOpened{
		PRNumber:   pr.GetNumber(),
		BaseBranch: pr.GetBase().GetRef(),
		HeadSHA:    pr.GetHead().GetSHA(),
		SSHURL:     e.GetRepo().GetSSHURL(),
		Sender:     e.GetSender().GetLogin(),
	}

	var err error
	ev.Org, ev.Repo, err = splitFullName(e.GetRepo().GetFullName())
	if err != nil {
		return nil, err
	}
	switch {
	case ev.PRNumber <= 0:
		return nil, &PayloadError{Reason: "pull request number missing"}
	case ev.BaseBranch == "":
		return nil, &PayloadError{Reason: "base branch missing"}
	case ev.HeadSHA == "":
		return nil, &PayloadError{Reason: "head sha missing"}
	case ev.SSHURL == "":
		return nil, &PayloadError{Reason: "repository ssh_url missing"}
	}
	return ev, nil
}

func pushFromGH(e *gh.PushEvent) (*Push, error) {
	ev := &Push{
		Ref:    e.GetRef(),
		Before: e.GetBefore(),
		After:  e.GetAfter(),
		SSHURL: e.GetRepo().GetSSHURL(),
		Sender: e.GetSender().GetLogin(),
	}

	var err error
	ev.Org, ev.Repo, err = splitFullName(e.GetRepo().GetFullName())
	if err != nil {
		return nil, err
	}
	switch {
	case ev.Before == "":
		return nil, &PayloadError{Reason: "before sha missing"}
	case ev.After == "":
		return nil, &PayloadError{Reason: "after sha missing"}
	case ev.SSHURL == "":
		return nil, &PayloadError{Reason: "repository ssh_url missing"}
	}
	return ev, nil
}

func splitFullName(full string) (org, repo string, err error) {
	org, repo, ok := strings.Cut(full, "/")
	if !ok || org == "" || repo == "" {
		return "", "", &PayloadError{Reason: fmt.Sprintf("repository full_name %q", full)}
	}
	return org, repo, nil
}
