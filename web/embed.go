// Package web embeds the static delivery feed page served at the server root.
package web

import (
	"embed"
	"io/fs"
)

//go:embed index.html
var content embed.FS

// Content returns the embedded static files, addressable by bare name
// (e.g. "index.html").
func Content() fs.FS {
	return content
}
