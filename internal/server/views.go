package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/aasharkey/gitbot/internal/refname"
	"github.com/aasharkey/gitbot/internal/render"
)

// GitView is the slice of the git gateway the views drive.
type GitView interface {
	WithFetchHead(fn func() error) error
	Fetch(ctx context.Context, remote, refspec string) error
	Diff(ctx context.Context, rangeSpec, srcPrefix, dstPrefix string) (string, error)
	Log(ctx context.Context, rangeSpec string, patch bool) (string, error)
}

// Views serves the rebase archaeology pages linked from pull request
// comments: pairwise snapshot diffs, commit log diffs, and 2-4 way series
// views. Each page is a diff or log rendered to HTML, retitled, and - for
// split views - given header cells naming the git command behind each pane.
type Views struct {
	git      GitView
	renderer render.Renderer
	hostname string
}

// NewViews returns Views reading snapshots through git and rendering with
// renderer. hostname is the VCS host used to build SSH fetch URLs for base
// branches.
func NewViews(git GitView, renderer render.Renderer, hostname string) *Views {
	return &Views{git: git, renderer: renderer, hostname: hostname}
}

// selection is one resolved snapshot selector from a view URL.
type selection struct {
	ptr refname.Pointer
	n   int
	ref string // full branch name <family>/rebase-<ptr>/<n>
}

func parseSelection(coords refname.Coordinates, raw string) (selection, error) {
	p, n, err := refname.ParseSelector(raw)
	if err != nil {
		return selection{}, err
	}
	ref, err := refname.Build(coords, p, n)
	if err != nil {
		return selection{}, err
	}
	return selection{ptr: p, n: n, ref: ref}, nil
}

// handleDiff serves /rebase_diff: the code delta between two snapshots of
// one pull request branch.
func (v *Views) handleDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coords, err := refname.ParseFamily(q.Get("branch_name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start, err := parseSelection(coords, q.Get("rebase_start"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	end, err := parseSelection(coords, q.Get("rebase_end"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var page string
	if q.Get("side_by_side") == "1" {
		page, err = v.diffSideBySide(r.Context(), coords, start, end)
	} else {
		page, err = v.diffPlain(r.Context(), start, end)
	}
	if err != nil {
		v.fail(w, r, err)
		return
	}
	writeHTML(w, page)
}

// diffPlain diffs the two snapshots against each other directly and names
// each side of the patch after its snapshot ref.
func (v *Views) diffPlain(ctx context.Context, start, end selection) (string, error) {
	rangeSpec := "refs/heads/" + start.ref + "..refs/heads/" + end.ref
	out, err := v.git.Diff(ctx, rangeSpec, "refs/heads/"+start.ref+":", "refs/heads/"+end.ref+":")
	if err != nil {
		return "", fmt.Errorf("diffing snapshots: %w", err)
	}
	if out == "" {
		return stubPage("Rebase Diff", "No code changed in rebase"), nil
	}
	page, err := v.renderer.Render(ctx, out)
	if err != nil {
		return "", err
	}
	return render.Decorate(page, "Rebase Diff")
}

// diffSideBySide shows the two snapshots' diffs against the current base
// branch next to each other, so drift introduced by the rebase itself stands
// out.
func (v *Views) diffSideBySide(ctx context.Context, coords refname.Coordinates, start, end selection) (string, error) {
	panes, err := v.withBaseFetched(ctx, coords, func() ([]string, error) {
		return v.diffPanes(ctx, start, end)
	})
	if err != nil {
		return "", err
	}
	page, err := v.renderer.RenderSideBySide(ctx, panes...)
	if err != nil {
		return "", err
	}
	return render.Decorate(page, "Rebase Diff", diffLabel(coords, start), diffLabel(coords, end))
}

// handleLogDiff serves /rebase_commit_log_diff: how the branch's commit log
// changed between two snapshots, as a unified diff of two log outputs or as
// a split view of them.
func (v *Views) handleLogDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coords, err := refname.ParseFamily(q.Get("branch_name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start, err := parseSelection(coords, q.Get("rebase_start"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	end, err := parseSelection(coords, q.Get("rebase_end"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	patch := q.Get("show_diffs") == "1"

	ctx := r.Context()
	logs, err := v.withBaseFetched(ctx, coords, func() ([]string, error) {
		return v.logPanes(ctx, patch, start, end)
	})
	if err != nil {
		v.fail(w, r, err)
		return
	}

	var page string
	if q.Get("side_by_side") == "1" {
		rendered, err := v.renderer.RenderSideBySide(ctx, logs...)
		if err != nil {
			v.fail(w, r, err)
			return
		}
		page, err = render.Decorate(rendered, "Commit Log Diff",
			logLabel(coords, start, patch), logLabel(coords, end, patch))
		if err != nil {
			v.fail(w, r, err)
			return
		}
	} else {
		text := render.LogDiff(
			selectorLogLabel(coords, start, patch),
			selectorLogLabel(coords, end, patch),
			logs[0], logs[1])
		if text == "" {
			writeHTML(w, stubPage("Commit Log Diff", "Commit logs have not changed"))
			return
		}
		rendered, err := v.renderer.Render(ctx, text)
		if err != nil {
			v.fail(w, r, err)
			return
		}
		page, err = render.Decorate(rendered, "Rebase Commit Log Diff")
		if err != nil {
			v.fail(w, r, err)
			return
		}
	}
	writeHTML(w, page)
}

// handleDiffSeries serves /rebase_diff_series: up to four snapshots' diffs
// against the base branch side by side.
func (v *Views) handleDiffSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coords, err := refname.ParseFamily(q.Get("branch_name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sels, err := collectSeries(coords, q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(sels) < 2 {
		writeHTML(w, stubPage("Series Diff", "You must have at least two branches to show a series diff"))
		return
	}

	ctx := r.Context()
	panes, err := v.withBaseFetched(ctx, coords, func() ([]string, error) {
		return v.diffPanes(ctx, sels...)
	})
	if err != nil {
		v.fail(w, r, err)
		return
	}
	page, err := v.renderer.RenderSideBySide(ctx, panes...)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	labels := make([]string, len(sels))
	for i, sel := range sels {
		labels[i] = diffLabel(coords, sel)
	}
	page, err = render.Decorate(page, "Rebase Series Diff", labels...)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	writeHTML(w, page)
}

// handleLogSeries serves /rebase_commit_log_series: up to four snapshots'
// commit logs against the base branch side by side.
func (v *Views) handleLogSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coords, err := refname.ParseFamily(q.Get("branch_name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sels, err := collectSeries(coords, q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(sels) < 2 {
		writeHTML(w, stubPage("Series Log", "You must have at least two branches to show a series log"))
		return
	}
	patch := q.Get("show_diffs") == "1"

	ctx := r.Context()
	panes, err := v.withBaseFetched(ctx, coords, func() ([]string, error) {
		return v.logPanes(ctx, patch, sels...)
	})
	if err != nil {
		v.fail(w, r, err)
		return
	}
	page, err := v.renderer.RenderSideBySide(ctx, panes...)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	labels := make([]string, len(sels))
	for i, sel := range sels {
		labels[i] = logLabel(coords, sel, patch)
	}
	page, err = render.Decorate(page, "Rebase Log Series Diff", labels...)
	if err != nil {
		v.fail(w, r, err)
		return
	}
	writeHTML(w, page)
}

var seriesParams = [4]string{"rebase_first", "rebase_second", "rebase_third", "rebase_fourth"}

// collectSeries resolves the series selectors in order, stopping at the
// first absent parameter.
func collectSeries(coords refname.Coordinates, q url.Values) ([]selection, error) {
	var sels []selection
	for _, name := range seriesParams {
		raw := q.Get(name)
		if raw == "" {
			break
		}
		sel, err := parseSelection(coords, raw)
		if err != nil {
			return nil, err
		}
		sels = append(sels, sel)
	}
	return sels, nil
}

// withBaseFetched runs fn with FETCH_HEAD at the family's base branch tip,
// holding the fetch lock so a concurrent delivery cannot move it mid-read.
func (v *Views) withBaseFetched(ctx context.Context, coords refname.Coordinates, fn func() ([]string, error)) ([]string, error) {
	var out []string
	err := v.git.WithFetchHead(func() error {
		if err := v.git.Fetch(ctx, v.sshURL(coords), "refs/heads/"+coords.BaseBranch); err != nil {
			return fmt.Errorf("fetching base branch: %w", err)
		}
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

func (v *Views) diffPanes(ctx context.Context, sels ...selection) ([]string, error) {
	panes := make([]string, 0, len(sels))
	for _, sel := range sels {
		out, err := v.git.Diff(ctx, "FETCH_HEAD..refs/heads/"+sel.ref, "", "")
		if err != nil {
			return nil, fmt.Errorf("diffing %s against the base branch: %w", sel.ref, err)
		}
		panes = append(panes, out)
	}
	return panes, nil
}

func (v *Views) logPanes(ctx context.Context, patch bool, sels ...selection) ([]string, error) {
	panes := make([]string, 0, len(sels))
	for _, sel := range sels {
		out, err := v.git.Log(ctx, "FETCH_HEAD..refs/heads/"+sel.ref, patch)
		if err != nil {
			return nil, fmt.Errorf("reading log of %s over the base branch: %w", sel.ref, err)
		}
		panes = append(panes, out)
	}
	return panes, nil
}

// sshURL builds the fetch remote for a family's repository.
func (v *Views) sshURL(coords refname.Coordinates) string {
	return fmt.Sprintf("git@%s:%s/%s.git", v.hostname, coords.Org, coords.Repo)
}

// diffLabel names the command a diff pane stands for. Panes are produced
// against FETCH_HEAD; the label names the base branch the fetch resolved.
func diffLabel(coords refname.Coordinates, sel selection) string {
	return fmt.Sprintf("git diff refs/heads/%s..refs/heads/%s", coords.BaseBranch, sel.ref)
}

// logLabel names the command a log pane stands for.
func logLabel(coords refname.Coordinates, sel selection, patch bool) string {
	return fmt.Sprintf("%s refs/heads/%s..refs/heads/%s", logCommand(patch), coords.BaseBranch, sel.ref)
}

// selectorLogLabel names a log side in the unified diff header, spelling the
// snapshot by its URL selector path rather than its full ref name.
func selectorLogLabel(coords refname.Coordinates, sel selection, patch bool) string {
	return fmt.Sprintf("%s refs/heads/%s..refs/heads/%s/%s/%d",
		logCommand(patch), coords.BaseBranch, coords.String(), sel.ptr, sel.n)
}

func logCommand(patch bool) string {
	if patch {
		return "git log -p"
	}
	return "git log"
}

func stubPage(title, body string) string {
	return fmt.Sprintf("<html><title>%s</title><body>%s</body></html>", title, body)
}

func writeHTML(w http.ResponseWriter, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, page)
}

func (v *Views) fail(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("rendering view", "path", r.URL.Path, "error", err)
	http.Error(w, "rendering view failed", http.StatusInternalServerError)
}
