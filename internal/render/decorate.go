package render

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Decorate re-titles a rendered page and rewrites its <th> cells, in
// document order, to the given column labels. TOhtml names each column after
// the temp file behind it; the labels put the originating git invocation
// there instead. Cells beyond the labels keep their generated text, and a
// page without a <title> gets one.
func Decorate(page, title string, labels ...string) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parsing rendered page: %w", err)
	}

	var head *html.Node
	titled := false
	cell := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Head:
				head = n
			case atom.Title:
				setText(n, title)
				titled = true
			case atom.Th:
				if cell < len(labels) {
					setText(n, labels[cell])
				}
				cell++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if !titled && head != nil {
		node := &html.Node{Type: html.ElementNode, DataAtom: atom.Title, Data: "title"}
		setText(node, title)
		head.AppendChild(node)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("rendering decorated page: %w", err)
	}
	return buf.String(), nil
}

func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
