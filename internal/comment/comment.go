// Package comment builds the Markdown comment posted to a pull request after
// a rebase. The layout is fixed so reviewers can navigate it from memory:
// four link families, each URL differing from its siblings in exactly one
// query parameter.
package comment

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aasharkey/gitbot/internal/refname"
)

// Composer builds rebase comments with view links rooted at one public URL.
type Composer struct {
	// URLRoot is the externally reachable base of the diff viewer, without
	// a trailing slash.
	URLRoot string
}

// Compose renders the comment for a rewrite push. latestRebase is the rebase
// number current before the push, so the new snapshot pair is latestRebase+1
// and the branch has now been rebased latestRebase+1 times.
//
// Pairwise links compare rebase latestRebase against latestRebase+1 for the
// {base to base, head to base} pointer families. Series links appear once
// three snapshots exist: with exactly three they span all of them, beyond
// that they span the last four.
func (c Composer) Compose(coords refname.Coordinates, latestRebase int, sender string) string {
	family := coords.String()
	r := latestRebase

	var b strings.Builder
	fmt.Fprintf(&b, "Branch rebased %d time(s), most recently by %s\n\n", r+1, sender)

	pairs := []refname.Pointer{refname.Base, refname.Head}

	b.WriteString("* Rebase diff\n")
	for _, p := range pairs {
		fmt.Fprintf(&b, "  - [%s](%s)\n", pairLabel(p), c.pairDiffURL(family, p, r, 0))
		fmt.Fprintf(&b, "    + [side by side](%s)\n", c.pairDiffURL(family, p, r, 1))
	}

	b.WriteString("* Rebase commit log diff\n")
	for _, p := range pairs {
		fmt.Fprintf(&b, "  - [%s](%s)\n", pairLabel(p), c.pairLogURL(family, p, r, 0, 0))
		fmt.Fprintf(&b, "    + [with diffs](%s)\n", c.pairLogURL(family, p, r, 0, 1))
		fmt.Fprintf(&b, "    + [side by side](%s)\n", c.pairLogURL(family, p, r, 1, 0))
		fmt.Fprintf(&b, "    + [side by side with diffs](%s)\n", c.pairLogURL(family, p, r, 1, 1))
	}

	if r+1 < 2 {
		return b.String()
	}

	numbers := seriesNumbers(r)
	b.WriteString("* Rebase series diff\n")
	fmt.Fprintf(&b, "  - [branch heads](%s)\n", c.seriesDiffURL(family, refname.Head, numbers))
	fmt.Fprintf(&b, "  - [branch bases](%s)\n", c.seriesDiffURL(family, refname.Base, numbers))

	b.WriteString("* Rebase commit log series diff\n")
	fmt.Fprintf(&b, "  - [branch heads](%s)\n", c.seriesLogURL(family, refname.Head, numbers, 0))
	fmt.Fprintf(&b, "    + [with diffs](%s)\n", c.seriesLogURL(family, refname.Head, numbers, 1))
	fmt.Fprintf(&b, "  - [branch bases](%s)\n", c.seriesLogURL(family, refname.Base, numbers, 0))
	fmt.Fprintf(&b, "    + [with diffs](%s)\n", c.seriesLogURL(family, refname.Base, numbers, 1))

	return b.String()
}

// seriesNumbers picks the snapshots a series view spans. Only called once
// r+1 snapshot pairs beyond the first exist, i.e. r >= 1.
func seriesNumbers(r int) []int {
	if r+1 == 2 {
		return []int{r - 1, r, r + 1}
	}
	return []int{r - 2, r - 1, r, r + 1}
}

// pairLabel names a pairwise comparison. The end side is always the new base
// snapshot; the start side gives the family its name.
func pairLabel(p refname.Pointer) string {
	if p == refname.Head {
		return "head to base"
	}
	return "base to base"
}

func (c Composer) pairDiffURL(family string, start refname.Pointer, r, sideBySide int) string {
	return fmt.Sprintf("%s/rebase_diff?branch_name=%s&rebase_start=%s&rebase_end=%s&side_by_side=%d",
		c.URLRoot, url.QueryEscape(family),
		refname.Selector(start, r), refname.Selector(refname.Base, r+1), sideBySide)
}

func (c Composer) pairLogURL(family string, start refname.Pointer, r, sideBySide, showDiffs int) string {
	return fmt.Sprintf("%s/rebase_commit_log_diff?branch_name=%s&rebase_start=%s&rebase_end=%s&side_by_side=%d&show_diffs=%d",
		c.URLRoot, url.QueryEscape(family),
		refname.Selector(start, r), refname.Selector(refname.Base, r+1), sideBySide, showDiffs)
}

func (c Composer) seriesDiffURL(family string, p refname.Pointer, numbers []int) string {
	return c.URLRoot + "/rebase_diff_series?" + seriesQuery(family, p, numbers)
}

func (c Composer) seriesLogURL(family string, p refname.Pointer, numbers []int, showDiffs int) string {
	return fmt.Sprintf("%s/rebase_commit_log_series?%s&show_diffs=%d",
		c.URLRoot, seriesQuery(family, p, numbers), showDiffs)
}

var seriesParams = [...]string{"rebase_first", "rebase_second", "rebase_third", "rebase_fourth"}

func seriesQuery(family string, p refname.Pointer, numbers []int) string {
	var b strings.Builder
	b.WriteString("branch_name=" + url.QueryEscape(family))
	for i, n := range numbers {
		fmt.Fprintf(&b, "&%s=%s", seriesParams[i], refname.Selector(p, n))
	}
	return b.String()
}
