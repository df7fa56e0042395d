// Package render turns raw git output into standalone HTML pages.
//
// Two renderers are provided. VimRenderer shells out to vim's TOhtml script
// and produces the syntax-highlighted pages reviewers know from their
// editor, including vertically split side-by-side views. NativeRenderer
// builds a minimally styled page in-process for hosts without vim. Decorate
// post-processes either renderer's output, setting the page title and the
// column headers of side-by-side views to the git invocations that produced
// each pane.
package render

import (
	"context"
	"fmt"
	"os"

	"github.com/aasharkey/gitbot/internal/shell"
)

// Renderer converts raw git output into a standalone HTML page.
type Renderer interface {
	// Render produces a single-pane page from one command output.
	Render(ctx context.Context, text string) (string, error)
	// RenderSideBySide produces a vertically split page from two to four
	// command outputs, one column per pane.
	RenderSideBySide(ctx context.Context, panes ...string) (string, error)
}

// VimRenderer renders pages through a vim subprocess. Inputs are staged in
// temp files which are removed before returning.
type VimRenderer struct {
	sh  *shell.Runner
	bin string
}

// VimOption configures a VimRenderer.
type VimOption func(*VimRenderer)

// WithBinary overrides the vim executable, mostly for tests.
func WithBinary(path string) VimOption {
	return func(v *VimRenderer) {
		v.bin = path
	}
}

// NewVim returns a renderer that shells out through sh.
func NewVim(sh *shell.Runner, opts ...VimOption) *VimRenderer {
	v := &VimRenderer{sh: sh, bin: "vim"}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// htmlOptions tune TOhtml for archival pages: light background, numbered
// lines, no copy-protected prompt characters, folds expanded.
var htmlOptions = []string{
	"-c", "let g:html_no_progress=1",
	"-c", "let g:html_number_lines=1",
	"-c", `let g:html_prevent_copy="n"`,
	"-c", "let g:html_ignore_folding=1",
}

// Render colorizes one command output. Vim converts the staged file with
// TOhtml and writes the page next to it; both files are removed on return.
func (v *VimRenderer) Render(ctx context.Context, text string) (string, error) {
	name, err := stage(text)
	if err != nil {
		return "", err
	}
	defer os.Remove(name)
	defer os.Remove(name + ".html")

	args := []string{
		"-n",
		"-c", "set bg=light",
		"-c", "colo default",
	}
	args = append(args, htmlOptions...)
	args = append(args,
		"-c", "TOhtml",
		"-c", "wqa",
		"--", name,
	)
	if _, err := v.sh.Run(ctx, v.bin, args...); err != nil {
		return "", fmt.Errorf("converting to html: %w", err)
	}

	page, err := os.ReadFile(name + ".html")
	if err != nil {
		return "", fmt.Errorf("reading rendered page: %w", err)
	}
	return string(page), nil
}

// RenderSideBySide opens each pane in a vertical split, diffs the windows
// against each other, and converts the whole layout with TOhtml.
func (v *VimRenderer) RenderSideBySide(ctx context.Context, panes ...string) (string, error) {
	if len(panes) < 2 || len(panes) > 4 {
		return "", fmt.Errorf("side by side needs 2 to 4 panes, got %d", len(panes))
	}

	names := make([]string, 0, len(panes))
	defer func() {
		for _, name := range names {
			os.Remove(name)
		}
	}()
	for _, pane := range panes {
		name, err := stage(pane)
		if err != nil {
			return "", err
		}
		names = append(names, name)
	}

	out, err := os.CreateTemp("", "gitbot-render-")
	if err != nil {
		return "", fmt.Errorf("staging render output: %w", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	args := []string{
		"-n", "-O",
		"-c", "set bg=light",
		"-c", "colo default",
		"-c", "windo diffthis",
	}
	args = append(args, htmlOptions...)
	args = append(args,
		"-c", "TOhtml",
		"-c", "w! "+out.Name(),
		"-c", "qa!",
		"--",
	)
	args = append(args, names...)
	if _, err := v.sh.Run(ctx, v.bin, args...); err != nil {
		return "", fmt.Errorf("converting to html: %w", err)
	}

	page, err := os.ReadFile(out.Name())
	if err != nil {
		return "", fmt.Errorf("reading rendered page: %w", err)
	}
	return string(page), nil
}

// stage writes text to a temp file for vim to open. The caller removes it.
func stage(text string) (string, error) {
	f, err := os.CreateTemp("", "gitbot-render-")
	if err != nil {
		return "", fmt.Errorf("staging render input: %w", err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("staging render input: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("staging render input: %w", err)
	}
	return f.Name(), nil
}
