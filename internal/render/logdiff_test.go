package render

import (
	"strings"
	"testing"
)

func TestLogDiff(t *testing.T) {
	fromLabel := "git log refs/heads/main..refs/heads/acme/widget/PR/7/main/base/0"
	toLabel := "git log refs/heads/main..refs/heads/acme/widget/PR/7/main/base/1"
	from := "commit aaa\n\n    add the widget\n"
	to := "commit bbb\n\n    add the widget\n\ncommit ccc\n\n    fix review nits\n"

	out := LogDiff(fromLabel, toLabel, from, to)

	if !strings.HasPrefix(out, "--- "+fromLabel+"\n+++ "+toLabel+"\n") {
		t.Errorf("labels missing from header:\n%s", out)
	}
	if !strings.Contains(out, "-commit aaa") {
		t.Errorf("removed line missing:\n%s", out)
	}
	if !strings.Contains(out, "+commit bbb") {
		t.Errorf("added line missing:\n%s", out)
	}
	if !strings.Contains(out, "@@") {
		t.Errorf("no hunk header:\n%s", out)
	}
}

func TestLogDiff_NoChanges(t *testing.T) {
	log := "commit aaa\n\n    add the widget\n"
	if out := LogDiff("left", "right", log, log); out != "" {
		t.Errorf("expected empty diff for identical logs, got:\n%s", out)
	}
}
