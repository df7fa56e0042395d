package docs_test

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

func docsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Dir(file)
}

func TestBookToml_Exists(t *testing.T) {
	path := filepath.Join(docsDir(), "book.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("book.toml not found: %v", err)
	}
	content := string(data)

	required := []string{
		`title = "Gitbot Documentation"`,
		`build-dir = "book"`,
		`[output.html]`,
	}
	for _, s := range required {
		if !strings.Contains(content, s) {
			t.Errorf("book.toml missing required entry: %s", s)
		}
	}
}

func TestBookToml_MermaidConfigured(t *testing.T) {
	path := filepath.Join(docsDir(), "book.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("book.toml not found: %v", err)
	}
	if !strings.Contains(string(data), "mermaid") {
		t.Error("book.toml does not configure Mermaid support")
	}
}

func TestSummary_ChapterStructure(t *testing.T) {
	path := filepath.Join(docsDir(), "src", "SUMMARY.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("SUMMARY.md not found: %v", err)
	}
	content := string(data)

	requiredChapters := []string{
		"introduction.md",
		"guide/getting-started.md",
		"guide/configuration.md",
		"internals/snapshots.md",
		"internals/views.md",
		"internals/policy.md",
	}
	for _, ch := range requiredChapters {
		if !strings.Contains(content, ch) {
			t.Errorf("SUMMARY.md missing chapter: %s", ch)
		}
	}
}

func TestSummary_GuideAndInternalsSections(t *testing.T) {
	path := filepath.Join(docsDir(), "src", "SUMMARY.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("SUMMARY.md not found: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "# Guide") {
		t.Error("SUMMARY.md missing '# Guide' section header")
	}
	if !strings.Contains(content, "# Internals") {
		t.Error("SUMMARY.md missing '# Internals' section header")
	}
}

func TestSummary_AllReferencedFilesExist(t *testing.T) {
	path := filepath.Join(docsDir(), "src", "SUMMARY.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("SUMMARY.md not found: %v", err)
	}

	re := regexp.MustCompile(`\]\(([^)]+\.md)\)`)
	matches := re.FindAllStringSubmatch(string(data), -1)
	if len(matches) == 0 {
		t.Fatal("no markdown links found in SUMMARY.md")
	}

	srcDir := filepath.Join(docsDir(), "src")
	for _, m := range matches {
		relPath := m[1]
		fullPath := filepath.Join(srcDir, relPath)
		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			t.Errorf("SUMMARY.md references %s but file does not exist", relPath)
		}
	}
}

func TestIntroduction_Exists(t *testing.T) {
	path := filepath.Join(docsDir(), "src", "introduction.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("introduction.md not found: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "# gitbot") {
		t.Error("introduction.md missing project title")
	}
	if !strings.Contains(content, "Quick Links") {
		t.Error("introduction.md missing Quick Links section")
	}
}

func TestMermaidInit_Exists(t *testing.T) {
	path := filepath.Join(docsDir(), "src", "mermaid-init.js")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("mermaid-init.js not found: %v", err)
	}
	if !strings.Contains(string(data), "mermaid") {
		t.Error("mermaid-init.js does not reference mermaid")
	}
}

func TestGettingStarted_Content(t *testing.T) {
	path := filepath.Join(docsDir(), "src", "guide", "getting-started.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("getting-started.md not found: %v", err)
	}
	content := string(data)

	required := []struct {
		term string
		desc string
	}{
		{"Prerequisites", "prerequisites section"},
		{"Installation", "installation section"},
		{"Quick Start", "quick-start workflow section"},
		{"Go 1.25", "Go version prerequisite"},
		{"gitbot serve", "serve command in quick start"},
		{"check_rebase", "webhook payload URL"},
	}
	for _, r := range required {
		if !strings.Contains(content, r.term) {
			t.Errorf("getting-started.md missing %s (%q)", r.desc, r.term)
		}
	}
}

func TestConfiguration_Content(t *testing.T) {
	path := filepath.Join(docsDir(), "src", "guide", "configuration.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("configuration.md not found: %v", err)
	}
	content := string(data)

	required := []struct {
		term string
		desc string
	}{
		{"GITBOT_CONFIG", "config env var"},
		{"url_root", "comment link base"},
		{"domains", "email allow-list"},
		{"personal_access_token", "token auth"},
		{"installation_id", "App auth"},
	}
	for _, r := range required {
		if !strings.Contains(content, r.term) {
			t.Errorf("configuration.md missing %s (%q)", r.desc, r.term)
		}
	}
}

func TestSnapshots_Content(t *testing.T) {
	path := filepath.Join(docsDir(), "src", "internals", "snapshots.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("snapshots.md not found: %v", err)
	}
	content := string(data)

	required := []struct {
		term string
		desc string
	}{
		{"rebase-base", "base pointer"},
		{"rebase-head", "head pointer"},
		{"fast-forward", "push classification"},
		{"mermaid", "Mermaid diagram"},
	}
	for _, r := range required {
		if !strings.Contains(content, r.term) {
			t.Errorf("snapshots.md missing %s (%q)", r.desc, r.term)
		}
	}
}

func TestViews_Content(t *testing.T) {
	path := filepath.Join(docsDir(), "src", "internals", "views.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("views.md not found: %v", err)
	}
	content := string(data)

	required := []struct {
		term string
		desc string
	}{
		{"/rebase_diff", "pairwise diff route"},
		{"/rebase_commit_log_series", "log series route"},
		{"side_by_side", "split toggle"},
		{"rebase_first", "series selector"},
	}
	for _, r := range required {
		if !strings.Contains(content, r.term) {
			t.Errorf("views.md missing %s (%q)", r.desc, r.term)
		}
	}
}

func TestPolicy_Content(t *testing.T) {
	path := filepath.Join(docsDir(), "src", "internals", "policy.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("policy.md not found: %v", err)
	}
	content := string(data)

	required := []struct {
		term string
		desc string
	}{
		{"title-verb-check", "title verb rule"},
		{"diff-whitespace-check", "whitespace rule"},
		{"gitbot-branch-check", "roll-up status"},
	}
	for _, r := range required {
		if !strings.Contains(content, r.term) {
			t.Errorf("policy.md missing %s (%q)", r.desc, r.term)
		}
	}
}
