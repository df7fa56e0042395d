package render

import (
	"fmt"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// LogDiff unified-diffs two command outputs, labelling each side with the
// command that produced it. The empty string means the outputs match.
func LogDiff(fromLabel, toLabel, from, to string) string {
	edits := myers.ComputeEdits(span.URIFromPath(fromLabel), from, to)
	return fmt.Sprint(gotextdiff.ToUnified(fromLabel, toLabel, from, edits))
}
