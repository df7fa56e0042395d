package comment

import (
	"strings"
	"testing"

	"github.com/aasharkey/gitbot/internal/refname"
)

var testComposer = Composer{URLRoot: "http://bot.example.com"}

var testCoords = refname.Coordinates{Org: "acme", Repo: "widget", PRNumber: 7, BaseBranch: "main"}

func TestCompose_SecondRebase(t *testing.T) {
	got := testComposer.Compose(testCoords, 1, "jdoe")

	want := `Branch rebased 2 time(s), most recently by jdoe

* Rebase diff
  - [base to base](http://bot.example.com/rebase_diff?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_start=base-1&rebase_end=base-2&side_by_side=0)
    + [side by side](http://bot.example.com/rebase_diff?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_start=base-1&rebase_end=base-2&side_by_side=1)
  - [head to base](http://bot.example.com/rebase_diff?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_start=head-1&rebase_end=base-2&side_by_side=0)
    + [side by side](http://bot.example.com/rebase_diff?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_start=head-1&rebase_end=base-2&side_by_side=1)
* Rebase commit log diff
  - [base to base](http://bot.example.com/rebase_commit_log_diff?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_start=base-1&rebase_end=base-2&side_by_side=0&show_diffs=0)
    + [with diffs](http://bot.example.com/rebase_commit_log_diff?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_start=base-1&rebase_end=base-2&side_by_side=0&show_diffs=1)
    + [side by side](http://bot.example.com/rebase_commit_log_diff?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_start=base-1&rebase_end=base-2&side_by_side=1&show_diffs=0)
    + [side by side with diffs](http://bot.example.com/rebase_commit_log_diff?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_start=base-1&rebase_end=base-2&side_by_side=1&show_diffs=1)
  - [head to base](http://bot.example.com/rebase_commit_log_diff?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_start=head-1&rebase_end=base-2&side_by_side=0&show_diffs=0)
    + [with diffs](http://bot.example.com/rebase_commit_log_diff?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_start=head-1&rebase_end=base-2&side_by_side=0&show_diffs=1)
    + [side by side](http://bot.example.com/rebase_commit_log_diff?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_start=head-1&rebase_end=base-2&side_by_side=1&show_diffs=0)
    + [side by side with diffs](http://bot.example.com/rebase_commit_log_diff?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_start=head-1&rebase_end=base-2&side_by_side=1&show_diffs=1)
* Rebase series diff
  - [branch heads](http://bot.example.com/rebase_diff_series?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_first=head-0&rebase_second=head-1&rebase_third=head-2)
  - [branch bases](http://bot.example.com/rebase_diff_series?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_first=base-0&rebase_second=base-1&rebase_third=base-2)
* Rebase commit log series diff
  - [branch heads](http://bot.example.com/rebase_commit_log_series?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_first=head-0&rebase_second=head-1&rebase_third=head-2&show_diffs=0)
    + [with diffs](http://bot.example.com/rebase_commit_log_series?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_first=head-0&rebase_second=head-1&rebase_third=head-2&show_diffs=1)
  - [branch bases](http://bot.example.com/rebase_commit_log_series?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_first=base-0&rebase_second=base-1&rebase_third=base-2&show_diffs=0)
    + [with diffs](http://bot.example.com/rebase_commit_log_series?branch_name=acme%2Fwidget%2FPR%2F7%2Fmain&rebase_first=base-0&rebase_second=base-1&rebase_third=base-2&show_diffs=1)
`

	if got != want {
		t.Errorf("Compose mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestCompose_FirstRebase(t *testing.T) {
	got := testComposer.Compose(testCoords, 0, "jdoe")

	if !strings.HasPrefix(got, "Branch rebased 1 time(s), most recently by jdoe\n\n") {
		t.Errorf("preamble wrong:\n%s", got)
	}
	if strings.Contains(got, "series") {
		t.Error("series links present with only two snapshots")
	}
	if !strings.Contains(got, "rebase_start=base-0&rebase_end=base-1") {
		t.Error("pairwise links do not compare rebase 0 to rebase 1")
	}
}

func TestCompose_SeriesWindow(t *testing.T) {
	tests := []struct {
		name         string
		latestRebase int
		wantFirst    string
		wantLast     string
	}{
		{
			name:         "four snapshots span all four",
			latestRebase: 2,
			wantFirst:    "rebase_first=head-0",
			wantLast:     "rebase_fourth=head-3",
		},
		{
			name:         "window slides to the last four",
			latestRebase: 5,
			wantFirst:    "rebase_first=head-3",
			wantLast:     "rebase_fourth=head-6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testComposer.Compose(testCoords, tt.latestRebase, "jdoe")
			if !strings.Contains(got, tt.wantFirst) {
				t.Errorf("missing %q in:\n%s", tt.wantFirst, got)
			}
			if !strings.Contains(got, tt.wantLast) {
				t.Errorf("missing %q in:\n%s", tt.wantLast, got)
			}
		})
	}
}

func TestCompose_ThreeSnapshotsHaveNoFourth(t *testing.T) {
	got := testComposer.Compose(testCoords, 1, "jdoe")
	if strings.Contains(got, "rebase_fourth") {
		t.Error("rebase_fourth present with only three snapshots")
	}
}

func TestCompose_SlashedBaseBranch(t *testing.T) {
	coords := refname.Coordinates{Org: "acme", Repo: "widget", PRNumber: 12, BaseBranch: "release/v2"}
	got := testComposer.Compose(coords, 0, "jdoe")
	if !strings.Contains(got, "branch_name=acme%2Fwidget%2FPR%2F12%2Frelease%2Fv2") {
		t.Errorf("branch_name not escaped:\n%s", got)
	}
}

func TestCompose_Deterministic(t *testing.T) {
	a := testComposer.Compose(testCoords, 3, "jdoe")
	b := testComposer.Compose(testCoords, 3, "jdoe")
	if a != b {
		t.Error("identical inputs produced different comments")
	}
}
