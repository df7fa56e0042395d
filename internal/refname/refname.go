// Package refname builds and parses the snapshot ref naming scheme
// <org>/<repo>/PR/<pr_number>/<base_branch>/rebase-<pointer>/<n>.
package refname

import (
	"fmt"
	"strconv"
	"strings"
)

// Pointer selects one of the two refs of a snapshot.
type Pointer string

const (
	Base Pointer = "base"
	Head Pointer = "head"
)

// ParsePointer converts a string into a Pointer.
func ParsePointer(s string) (Pointer, error) {
	switch s {
	case "base":
		return Base, nil
	case "head":
		return Head, nil
	}
	return "", fmt.Errorf("invalid pointer %q", s)
}

// Coordinates identify a snapshot family. BaseBranch may contain slashes.
type Coordinates struct {
	Org        string
	Repo       string
	PRNumber   int
	BaseBranch string
}

// String returns the family prefix <org>/<repo>/PR/<pr_number>/<base_branch>.
func (c Coordinates) String() string {
	return fmt.Sprintf("%s/%s/PR/%d/%s", c.Org, c.Repo, c.PRNumber, c.BaseBranch)
}

func (c Coordinates) validate() error {
	if c.Org == "" || strings.Contains(c.Org, "/") {
		return fmt.Errorf("invalid org %q", c.Org)
	}
	if c.Repo == "" || strings.Contains(c.Repo, "/") {
		return fmt.Errorf("invalid repo %q", c.Repo)
	}
	if c.PRNumber < 0 {
		return fmt.Errorf("invalid pr number %d", c.PRNumber)
	}
	if c.BaseBranch == "" {
		return fmt.Errorf("empty base branch")
	}
	for _, seg := range strings.Split(c.BaseBranch, "/") {
		if seg == "" {
			return fmt.Errorf("invalid base branch %q", c.BaseBranch)
		}
	}
	return nil
}

// Build returns the snapshot ref for the given coordinates, pointer and
// rebase number.
func Build(coords Coordinates, p Pointer, n int) (string, error) {
	if err := coords.validate(); err != nil {
		return "", err
	}
	if p != Base && p != Head {
		return "", fmt.Errorf("invalid pointer %q", p)
	}
	if n < 0 {
		return "", fmt.Errorf("invalid rebase number %d", n)
	}
	return fmt.Sprintf("%s/rebase-%s/%d", coords.String(), p, n), nil
}

// Parse decomposes a snapshot ref. The first four segments fix org, repo,
// the literal "PR" and the PR number; the last two fix the pointer and the
// rebase number; everything in between is the base branch.
func Parse(ref string) (Coordinates, Pointer, int, error) {
	segs := strings.Split(ref, "/")
	if len(segs) < 7 {
		return Coordinates{}, "", 0, fmt.Errorf("ref %q: want at least 7 segments, got %d", ref, len(segs))
	}
	if segs[2] != "PR" {
		return Coordinates{}, "", 0, fmt.Errorf("ref %q: segment 3 is %q, want PR", ref, segs[2])
	}
	prNumber, err := strconv.Atoi(segs[3])
	if err != nil {
		return Coordinates{}, "", 0, fmt.Errorf("ref %q: bad pr number %q", ref, segs[3])
	}

	pointerSeg := segs[len(segs)-2]
	rest, ok := strings.CutPrefix(pointerSeg, "rebase-")
	if !ok {
		return Coordinates{}, "", 0, fmt.Errorf("ref %q: segment %q does not name a rebase pointer", ref, pointerSeg)
	}
	p, err := ParsePointer(rest)
	if err != nil {
		return Coordinates{}, "", 0, fmt.Errorf("ref %q: %w", ref, err)
	}

	n, err := strconv.Atoi(segs[len(segs)-1])
	if err != nil || n < 0 {
		return Coordinates{}, "", 0, fmt.Errorf("ref %q: bad rebase number %q", ref, segs[len(segs)-1])
	}

	coords := Coordinates{
		Org:        segs[0],
		Repo:       segs[1],
		PRNumber:   prNumber,
		BaseBranch: strings.Join(segs[4:len(segs)-2], "/"),
	}
	if err := coords.validate(); err != nil {
		return Coordinates{}, "", 0, fmt.Errorf("ref %q: %w", ref, err)
	}
	return coords, p, n, nil
}

// ParseFamily decomposes a family prefix as carried in view URLs
// (<org>/<repo>/PR/<pr_number>/<base_branch>).
func ParseFamily(name string) (Coordinates, error) {
	segs := strings.Split(name, "/")
	if len(segs) < 5 {
		return Coordinates{}, fmt.Errorf("branch name %q: want at least 5 segments, got %d", name, len(segs))
	}
	if segs[2] != "PR" {
		return Coordinates{}, fmt.Errorf("branch name %q: segment 3 is %q, want PR", name, segs[2])
	}
	prNumber, err := strconv.Atoi(segs[3])
	if err != nil {
		return Coordinates{}, fmt.Errorf("branch name %q: bad pr number %q", name, segs[3])
	}
	coords := Coordinates{
		Org:        segs[0],
		Repo:       segs[1],
		PRNumber:   prNumber,
		BaseBranch: strings.Join(segs[4:], "/"),
	}
	if err := coords.validate(); err != nil {
		return Coordinates{}, fmt.Errorf("branch name %q: %w", name, err)
	}
	return coords, nil
}

// Pattern returns the glob matching the head refs of a known family. Only
// head refs are enumerated when counting rebases; the head of each rebase
// always exists.
func Pattern(coords Coordinates) string {
	return coords.String() + "/rebase-head/*"
}

// FamilyPattern returns the glob matching the head refs of a family whose
// base branch is not yet known, as on a push delivery. The base branch spot
// is a ** so that branches with slashes in the name still match under
// path-aware globbing.
func FamilyPattern(org, repo string, prNumber int) string {
	return fmt.Sprintf("%s/%s/PR/%d/**/rebase-head/*", org, repo, prNumber)
}

// RefsPattern returns the glob matching every snapshot ref of a pull request,
// whatever its base branch or pointer.
func RefsPattern(org, repo string, prNumber int) string {
	return fmt.Sprintf("%s/%s/PR/%d/**", org, repo, prNumber)
}

// Selector renders the <pointer>-<n> form used in view URLs.
func Selector(p Pointer, n int) string {
	return fmt.Sprintf("%s-%d", p, n)
}

// ParseSelector decomposes the <pointer>-<n> form used in view URLs.
func ParseSelector(s string) (Pointer, int, error) {
	ptr, num, ok := strings.Cut(s, "-")
	if !ok {
		return "", 0, fmt.Errorf("invalid rebase selector %q", s)
	}
	p, err := ParsePointer(ptr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid rebase selector %q: %w", s, err)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("invalid rebase selector %q: bad number %q", s, num)
	}
	return p, n, nil
}
