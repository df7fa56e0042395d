package commitlog

import (
	"errors"
	"strings"
	"testing"
)

// sampleLog is two records of git log --pretty=full output. The blank line
// inside the first message keeps the four-space indent; the blank lines
// between records do not.
var sampleLog = strings.Join([]string{
	"commit 1111111111111111111111111111111111111111",
	"Author: Jane Doe <jane@example.com>",
	"Commit: Jane Doe <jane@example.com>",
	"",
	"    Add user table",
	"    ",
	"    Adds the table and its migration.",
	"    Second body line.",
	"",
	"commit 2222222222222222222222222222222222222222",
	"Merge: abc1234 def5678",
	"Author: Sam Root <sam@example.com>",
	"Commit: CI Bot <ci@example.com>",
	"",
	"    Merge branch 'feature'",
	"",
}, "\n")

func TestParse_TwoRecords(t *testing.T) {
	commits, err := Parse(sampleLog)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}

	first := commits[0]
	if first.SHA != "1111111111111111111111111111111111111111" {
		t.Errorf("SHA = %q", first.SHA)
	}
	if first.IsMerge {
		t.Error("first commit flagged as merge")
	}
	if first.AuthorName != "Jane Doe" || first.AuthorEmail != "jane@example.com" {
		t.Errorf("author = %q <%q>", first.AuthorName, first.AuthorEmail)
	}
	if first.CommitterName != "Jane Doe" || first.CommitterEmail != "jane@example.com" {
		t.Errorf("committer = %q <%q>", first.CommitterName, first.CommitterEmail)
	}
	if first.Title != "Add user table" {
		t.Errorf("title = %q", first.Title)
	}
	if !first.SeparatorPresent || first.Separator != "" {
		t.Errorf("separator = (%v, %q), want present and blank", first.SeparatorPresent, first.Separator)
	}
	wantBody := []string{"Adds the table and its migration.", "Second body line."}
	if len(first.Body) != len(wantBody) {
		t.Fatalf("body = %q, want %q", first.Body, wantBody)
	}
	for i := range wantBody {
		if first.Body[i] != wantBody[i] {
			t.Errorf("body[%d] = %q, want %q", i, first.Body[i], wantBody[i])
		}
	}

	second := commits[1]
	if !second.IsMerge || second.MergeParents != "abc1234 def5678" {
		t.Errorf("merge = (%v, %q)", second.IsMerge, second.MergeParents)
	}
	if second.AuthorName != "Sam Root" || second.CommitterName != "CI Bot" {
		t.Errorf("identities = %q / %q", second.AuthorName, second.CommitterName)
	}
	if second.Title != "Merge branch 'feature'" {
		t.Errorf("title = %q", second.Title)
	}
	if second.SeparatorPresent {
		t.Error("title-only commit has a separator")
	}
	if len(second.Body) != 0 {
		t.Errorf("body = %q, want empty", second.Body)
	}
}

func TestParse_TitleOnly(t *testing.T) {
	text := strings.Join([]string{
		"commit aaaa",
		"Author: A B <a@x.com>",
		"Commit: A B <a@x.com>",
		"",
		"    Fix thing",
		"",
	}, "\n")

	commits, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
	c := commits[0]
	if c.Title != "Fix thing" || c.SeparatorPresent || len(c.Body) != 0 {
		t.Errorf("got %+v, want title-only record", c)
	}
}

func TestParse_NonBlankSeparator(t *testing.T) {
	text := strings.Join([]string{
		"commit aaaa",
		"Author: A B <a@x.com>",
		"Commit: A B <a@x.com>",
		"",
		"    Fix thing",
		"    this line should have been blank",
		"    and this is body",
		"",
	}, "\n")

	commits, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	c := commits[0]
	if !c.SeparatorPresent || c.Separator != "this line should have been blank" {
		t.Errorf("separator = (%v, %q)", c.SeparatorPresent, c.Separator)
	}
	if len(c.Body) != 1 || c.Body[0] != "and this is body" {
		t.Errorf("body = %q", c.Body)
	}
}

func TestParse_BlankLineInsideBody(t *testing.T) {
	text := strings.Join([]string{
		"commit aaaa",
		"Author: A B <a@x.com>",
		"Commit: A B <a@x.com>",
		"",
		"    Fix parser",
		"    ",
		"    First paragraph.",
		"    ",
		"    Second paragraph.",
		"",
	}, "\n")

	commits, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	c := commits[0]
	if !c.SeparatorPresent || c.Separator != "" {
		t.Errorf("separator = (%v, %q), want present and blank", c.SeparatorPresent, c.Separator)
	}
	wantBody := []string{"First paragraph.", "", "Second paragraph."}
	if len(c.Body) != len(wantBody) {
		t.Fatalf("body = %q, want %q", c.Body, wantBody)
	}
	for i := range wantBody {
		if c.Body[i] != wantBody[i] {
			t.Errorf("body[%d] = %q, want %q", i, c.Body[i], wantBody[i])
		}
	}
}

func TestParse_EmptyMessage(t *testing.T) {
	text := strings.Join([]string{
		"commit aaaa",
		"Author: A B <a@x.com>",
		"Commit: A B <a@x.com>",
		"",
		"commit bbbb",
		"Author: A B <a@x.com>",
		"Commit: A B <a@x.com>",
		"",
		"    Real title",
		"",
	}, "\n")

	commits, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(commits))
	}
	if commits[0].Title != "" {
		t.Errorf("empty-message title = %q", commits[0].Title)
	}
	if commits[1].Title != "Real title" {
		t.Errorf("second title = %q", commits[1].Title)
	}
}

func TestParse_EOFMidRecord(t *testing.T) {
	text := "commit aaaa\nAuthor: A B <a@x.com>"
	commits, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
	if commits[0].SHA != "aaaa" || commits[0].AuthorName != "A B" {
		t.Errorf("got %+v", commits[0])
	}
}

func TestParse_Empty(t *testing.T) {
	commits, err := Parse("")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("got %d commits, want 0", len(commits))
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantState string
	}{
		{
			name:      "garbage before first record",
			text:      "not a log\n",
			wantState: "SEPARATOR",
		},
		{
			name: "committer missing",
			text: strings.Join([]string{
				"commit aaaa",
				"Author: A B <a@x.com>",
				"Date: yesterday",
			}, "\n"),
			wantState: "AUTHOR",
		},
		{
			name: "unindented line in body",
			text: strings.Join([]string{
				"commit aaaa",
				"Author: A B <a@x.com>",
				"Commit: A B <a@x.com>",
				"",
				"    Title",
				"    ",
				"    body",
				"stray",
			}, "\n"),
			wantState: "BODY",
		},
		{
			name: "header where message expected",
			text: strings.Join([]string{
				"commit aaaa",
				"Author: A B <a@x.com>",
				"Commit: A B <a@x.com>",
				"",
				"Author: again",
			}, "\n"),
			wantState: "BLANK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var malformed *MalformedLogError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedLogError, got %T: %v", err, err)
			}
			if malformed.State != tt.wantState {
				t.Errorf("state = %q, want %q", malformed.State, tt.wantState)
			}
		})
	}
}

func TestParse_RenderRoundTrip(t *testing.T) {
	commits, err := Parse(sampleLog)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	rendered := make([]string, len(commits))
	for i, c := range commits {
		rendered[i] = c.Render()
	}
	if got := strings.Join(rendered, "\n"); got != sampleLog {
		t.Errorf("round trip mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, sampleLog)
	}
}

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		in        string
		wantName  string
		wantEmail string
	}{
		{"Jane Doe <jane@example.com>", "Jane Doe", "jane@example.com"},
		{"root <root@localhost>", "root", "root@localhost"},
		{"No Email Here", "No Email Here", ""},
		{"Odd <Brackets> Person <p@x.com>", "Odd <Brackets> Person", "p@x.com"},
		{"<only@email.com>", "", "only@email.com"},
	}
	for _, tt := range tests {
		name, email := parseIdentity(tt.in)
		if name != tt.wantName || email != tt.wantEmail {
			t.Errorf("parseIdentity(%q) = (%q, %q), want (%q, %q)", tt.in, name, email, tt.wantName, tt.wantEmail)
		}
	}
}

func TestParseOneline(t *testing.T) {
	text := "aaaa Add user table\nbbbb fixup! Add user table\n\n"
	entries := ParseOneline(text)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].SHA != "aaaa" || entries[0].Title != "Add user table" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].SHA != "bbbb" || entries[1].Title != "fixup! Add user table" {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}
