package render

import (
	"context"
	"html"
	"strings"
)

// NativeRenderer builds pages in-process, without vim. Output is plainer
// than TOhtml's but carries the same structure: a single <pre> for one-pane
// pages, a fixed-layout table with one <th> per pane for side-by-side views,
// so Decorate applies to both renderers alike.
type NativeRenderer struct{}

// NewNative returns the in-process renderer.
func NewNative() *NativeRenderer {
	return &NativeRenderer{}
}

const nativeStyle = `body{background:#fff;color:#000;font-family:monospace}
pre{margin:0;white-space:pre-wrap}
table{width:100%;table-layout:fixed;border-collapse:collapse}
th{text-align:left;border-bottom:1px solid #888;font-family:monospace;font-weight:normal}
td{vertical-align:top;border-left:1px solid #ddd;padding:0 4px}
.add{color:#008000}
.rem{color:#a00000}
.hunk{color:#0000c0}
.head{font-weight:bold}
`

func (n *NativeRenderer) Render(_ context.Context, text string) (string, error) {
	var b strings.Builder
	b.WriteString("<html><head><title></title><style>")
	b.WriteString(nativeStyle)
	b.WriteString("</style></head><body><pre>")
	writeColorized(&b, text)
	b.WriteString("</pre></body></html>")
	return b.String(), nil
}

func (n *NativeRenderer) RenderSideBySide(_ context.Context, panes ...string) (string, error) {
	var b strings.Builder
	b.WriteString("<html><head><title></title><style>")
	b.WriteString(nativeStyle)
	b.WriteString("</style></head><body><table><tr>")
	for range panes {
		b.WriteString("<th></th>")
	}
	b.WriteString("</tr><tr>")
	for _, pane := range panes {
		b.WriteString("<td><pre>")
		writeColorized(&b, pane)
		b.WriteString("</pre></td>")
	}
	b.WriteString("</tr></table></body></html>")
	return b.String(), nil
}

// writeColorized escapes text line by line, wrapping diff-significant lines
// in classed spans.
func writeColorized(b *strings.Builder, text string) {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for _, line := range lines {
		if class := lineClass(line); class != "" {
			b.WriteString(`<span class="`)
			b.WriteString(class)
			b.WriteString(`">`)
			b.WriteString(html.EscapeString(line))
			b.WriteString("</span>\n")
			continue
		}
		b.WriteString(html.EscapeString(line))
		b.WriteString("\n")
	}
}

func lineClass(line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return "head"
	case strings.HasPrefix(line, "+"):
		return "add"
	case strings.HasPrefix(line, "-"):
		return "rem"
	case strings.HasPrefix(line, "@@"):
		return "hunk"
	}
	return ""
}
