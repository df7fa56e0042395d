// Package policy applies the commit hygiene rules to parsed commit records.
//
// Every rule carries a stable id. The id becomes the suffix of the status
// context published on the platform, so ids are part of the external
// contract: renaming one orphans the statuses already posted under it.
package policy

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aasharkey/gitbot/internal/commitlog"
)

// Violation is a single rule failure for one commit.
type Violation struct {
	RuleID  string
	Message string
}

// allowedVerbs is the closed set of words a commit title may start with.
var allowedVerbs = map[string]bool{
	"Add":      true,
	"Bump":     true,
	"Change":   true,
	"Create":   true,
	"Disable":  true,
	"Enable":   true,
	"Fix":      true,
	"Move":     true,
	"Refactor": true,
	"Remove":   true,
	"Replace":  true,
	"Revert":   true,
	"Set":      true,
	"Update":   true,
	"Upgrade":  true,
	"Use":      true,
}

// Checker evaluates the rule set against commit records. The only
// configuration is the email domain allow-list for identity checks.
type Checker struct {
	domains map[string]bool
}

func New(domains []string) *Checker {
	m := make(map[string]bool, len(domains))
	for _, d := range domains {
		m[d] = true
	}
	return &Checker{domains: m}
}

// Check returns the violations for one commit, in a fixed rule order so that
// published statuses come out deterministically. The rules are independent;
// one commit can accrue several. whitespaceDirty carries the result of
// git show --check for the commit, the one rule that needs the diff rather
// than the record.
func (c *Checker) Check(commit commitlog.Commit, whitespaceDirty bool) []Violation {
	title := commit.Title
	verb := firstWord(title)

	rules := []struct {
		id  string
		msg string
		bad bool
	}{
		{"author-root-check", "Author name is root", commit.AuthorName == "root"},
		{"author-real-name-check", "Author name does not look like a real name", !strings.Contains(commit.AuthorName, " ")},
		{"author-valid-domain-check", "Author email domain is not allowed", !c.domainAllowed(commit.AuthorEmail)},
		{"committer-root-check", "Committer name is root", commit.CommitterName == "root"},
		{"committer-real-name-check", "Committer name does not look like a real name", !strings.Contains(commit.CommitterName, " ")},
		{"committer-valid-domain-check", "Committer email domain is not allowed", !c.domainAllowed(commit.CommitterEmail)},
		{"title-imperative-tense-check", "Title verb is not in the imperative mood", endsNonImperative(verb)},
		{"title-capitalization-check", "Title does not start with a capital letter", verb != "" && !startsUpper(verb)},
		{"title-verb-check", "Title does not start with a known verb", !allowedVerbs[verb]},
		{"title-fixup-check", `"fixup! " commits cannot be merged`, strings.HasPrefix(title, "fixup!")},
		{"title-squash-check", `"squash! " commits cannot be merged`, strings.HasPrefix(title, "squash!")},
		{"title-whitespace-punctuation-check", "Title ends with whitespace or punctuation", endsWithJunk(title)},
		{"title-length-check", "Title is longer than 50 characters", len(title) > 50},
		{"message-separator-check", "Title and body are not separated by a blank line", commit.SeparatorPresent && commit.Separator != ""},
		{"body-check", "Commit message has no body", len(commit.Body) == 0},
		{"body-length-check", "Body line is longer than 72 characters", anyLineOver(commit.Body, 72)},
		{"commit-merge-check", "Merge commits are not allowed", commit.IsMerge},
		{"diff-whitespace-check", "Diff contains whitespace errors", whitespaceDirty},
	}

	var out []Violation
	for _, r := range rules {
		if r.bad {
			out = append(out, Violation{RuleID: r.id, Message: r.msg})
		}
	}
	return out
}

func (c *Checker) domainAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	return c.domains[email[at+1:]]
}

func firstWord(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// endsNonImperative flags the suffixes that usually mark past tense, gerunds
// or third person ("Added", "Adding", "Adds") rather than the imperative form.
func endsNonImperative(word string) bool {
	if word == "" {
		return false
	}
	return strings.HasSuffix(word, "ed") ||
		strings.HasSuffix(word, "ing") ||
		strings.HasSuffix(word, "s")
}

func startsUpper(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r)
}

// endsWithJunk reports whether a multi-word title ends in whitespace or a
// non-word character, a trailing period being the usual offender. Single-word
// titles are exempt so that bare tags like "WIP" do not double-report.
func endsWithJunk(title string) bool {
	if len(strings.Fields(title)) < 2 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(title)
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func anyLineOver(lines []string, limit int) bool {
	for _, l := range lines {
		if len(l) > limit {
			return true
		}
	}
	return false
}
