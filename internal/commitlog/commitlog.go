// Package commitlog parses git log --pretty=full output into structured
// commit records.
//
// The format is a repeating record:
//
//	commit <sha>
//	Merge: <parents>          (merge commits only)
//	Author: <display> <email>
//	Commit: <display> <email>
//	<blank>
//	    <title>
//	    <separator>           (optional, possibly blank)
//	    <body line>...
//	<blank or EOF>
//
// Message lines are indented by exactly four spaces; a blank line inside the
// message keeps the indent, while the blank line terminating a record does
// not.
package commitlog

import (
	"bufio"
	"fmt"
	"strings"
)

const indent = "    "

// Commit is one parsed record.
type Commit struct {
	SHA            string
	IsMerge        bool
	MergeParents   string
	AuthorName     string
	AuthorEmail    string
	CommitterName  string
	CommitterEmail string
	Title          string

	// Separator is the first message line after the title. SeparatorPresent
	// distinguishes an absent separator from a present-but-blank one; only
	// the latter is well-formed.
	Separator        string
	SeparatorPresent bool

	Body []string
}

// Render reproduces the record in git log --pretty=full form, without the
// trailing record separator.
func (c Commit) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "commit %s\n", c.SHA)
	if c.IsMerge {
		fmt.Fprintf(&b, "Merge: %s\n", c.MergeParents)
	}
	fmt.Fprintf(&b, "Author: %s <%s>\n", c.AuthorName, c.AuthorEmail)
	fmt.Fprintf(&b, "Commit: %s <%s>\n", c.CommitterName, c.CommitterEmail)
	b.WriteString("\n")
	b.WriteString(indent + c.Title + "\n")
	if c.SeparatorPresent {
		b.WriteString(indent + c.Separator + "\n")
	}
	for _, line := range c.Body {
		b.WriteString(indent + line + "\n")
	}
	return b.String()
}

// MalformedLogError reports a line the parser could not classify.
type MalformedLogError struct {
	LineNo int
	Line   string
	State  string
}

func (e *MalformedLogError) Error() string {
	return fmt.Sprintf("malformed log: line %d %q unexpected in state %s", e.LineNo, e.Line, e.State)
}

type state int

const (
	stateSeparator state = iota
	stateCommitSHA
	stateMerge
	stateAuthor
	stateCommitter
	stateBlank
	stateTitle
	stateMiddleSeparator
	stateBody
)

var stateNames = map[state]string{
	stateSeparator:       "SEPARATOR",
	stateCommitSHA:       "COMMIT_SHA",
	stateMerge:           "MERGE",
	stateAuthor:          "AUTHOR",
	stateCommitter:       "COMMITTER",
	stateBlank:           "BLANK",
	stateTitle:           "TITLE",
	stateMiddleSeparator: "MIDDLE_SEPARATOR",
	stateBody:            "BODY",
}

// Parse runs the record state machine over the full-format log text. Commits
// come back in log order, newest first. Any non-empty line that does not fit
// the expected shape for the current state fails the whole parse.
func Parse(text string) ([]Commit, error) {
	var (
		commits []Commit
		cur     Commit
		st      = stateSeparator
		lineNo  = 0
	)

	emit := func() {
		commits = append(commits, cur)
		cur = Commit{}
		st = stateSeparator
	}
	malformed := func(line string) error {
		return &MalformedLogError{LineNo: lineNo, Line: line, State: stateNames[st]}
	}
	begin := func(line string) {
		cur = Commit{SHA: strings.TrimPrefix(line, "commit ")}
		st = stateCommitSHA
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		lineNo++

		// Stray blank lines in the header states carry no information;
		// skip them rather than fail.
		if line == "" && (st == stateCommitSHA || st == stateMerge || st == stateAuthor || st == stateBlank) {
			continue
		}

		switch st {
		case stateSeparator:
			switch {
			case line == "":
			case strings.HasPrefix(line, "commit "):
				begin(line)
			default:
				return nil, malformed(line)
			}

		case stateCommitSHA:
			switch {
			case strings.HasPrefix(line, "Merge: "):
				cur.IsMerge = true
				cur.MergeParents = strings.TrimPrefix(line, "Merge: ")
				st = stateMerge
			case strings.HasPrefix(line, "Author: "):
				cur.AuthorName, cur.AuthorEmail = parseIdentity(strings.TrimPrefix(line, "Author: "))
				st = stateAuthor
			default:
				return nil, malformed(line)
			}

		case stateMerge:
			if !strings.HasPrefix(line, "Author: ") {
				return nil, malformed(line)
			}
			cur.AuthorName, cur.AuthorEmail = parseIdentity(strings.TrimPrefix(line, "Author: "))
			st = stateAuthor

		case stateAuthor:
			if !strings.HasPrefix(line, "Commit: ") {
				return nil, malformed(line)
			}
			cur.CommitterName, cur.CommitterEmail = parseIdentity(strings.TrimPrefix(line, "Commit: "))
			st = stateCommitter

		case stateCommitter:
			if line != "" {
				return nil, malformed(line)
			}
			st = stateBlank

		case stateBlank:
			switch {
			case strings.HasPrefix(line, indent):
				cur.Title = line[len(indent):]
				st = stateTitle
			case strings.HasPrefix(line, "commit "):
				// Empty commit message: the record ends without any
				// indented lines.
				emit()
				begin(line)
			default:
				return nil, malformed(line)
			}

		case stateTitle:
			switch {
			case line == "":
				emit()
			case strings.HasPrefix(line, indent):
				cur.Separator = line[len(indent):]
				cur.SeparatorPresent = true
				st = stateMiddleSeparator
			default:
				return nil, malformed(line)
			}

		case stateMiddleSeparator:
			switch {
			case line == "":
				emit()
			case strings.HasPrefix(line, indent):
				cur.Body = append(cur.Body, line[len(indent):])
				st = stateBody
			default:
				return nil, malformed(line)
			}

		case stateBody:
			switch {
			case line == "":
				emit()
			case strings.HasPrefix(line, indent):
				cur.Body = append(cur.Body, line[len(indent):])
			default:
				return nil, malformed(line)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning log: %w", err)
	}

	// EOF ends the record in progress.
	if st != stateSeparator {
		emit()
	}
	return commits, nil
}

// Oneline is one "<sha> <title>" entry from git log --format="%H %s".
type Oneline struct {
	SHA   string
	Title string
}

// ParseOneline splits oneline log output into entries, newest first.
func ParseOneline(text string) []Oneline {
	var entries []Oneline
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		sha, title, _ := strings.Cut(line, " ")
		entries = append(entries, Oneline{SHA: sha, Title: title})
	}
	return entries
}

// parseIdentity splits "Display Name <email@host>" on the last angle-bracket
// pair. Identities without one keep the whole string as the display name.
func parseIdentity(s string) (name, email string) {
	open := strings.LastIndex(s, "<")
	end := strings.LastIndex(s, ">")
	if open == -1 || end == -1 || end < open {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:open]), s[open+1 : end]
}
