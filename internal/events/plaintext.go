package events

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	arrowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))            // cyan
	eventStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true) // blue bold
	repoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))            // light gray
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))            // dim gray
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))            // green
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))            // yellow
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))            // red
)

// PlainTextHandler writes a styled one-line rendering of each event to an
// io.Writer, usually the process stderr.
type PlainTextHandler struct {
	W io.Writer
}

func (h *PlainTextHandler) Handle(event Event) {
	switch e := event.(type) {
	case DeliveryReceived:
		h.handleReceived(e)
	case PushClassified:
		h.handleClassified(e)
	case SnapshotRecorded:
		h.handleSnapshot(e)
	case CommentPosted:
		h.handleComment(e)
	case StatusesPosted:
		h.handleStatuses(e)
	case DeliverySkipped:
		h.handleSkipped(e)
	case DeliveryError:
		h.handleError(e)
	case DeliveryDone:
		h.handleDone(e)
	}
}

func (h *PlainTextHandler) handleReceived(e DeliveryReceived) {
	arrow := arrowStyle.Render("→")
	kind := eventStyle.Render(e.Event)
	repo := repoStyle.Render(e.Org + "/" + e.Repo)
	from := dimStyle.Render(fmt.Sprintf("by %s [%s]", e.Sender, shortID(e.DeliveryID)))
	fmt.Fprintf(h.W, "%s %s %s %s\n", arrow, kind, repo, from)
}

func (h *PlainTextHandler) handleClassified(e PushClassified) {
	fmt.Fprintf(h.W, "  push to #%d classified %s\n", e.PRNumber, e.Kind)
}

func (h *PlainTextHandler) handleSnapshot(e SnapshotRecorded) {
	detail := dimStyle.Render(fmt.Sprintf("(%s)", e.Operation))
	fmt.Fprintf(h.W, "  snapshot %s rebase %d %s\n", e.Family, e.Rebase, detail)
}

func (h *PlainTextHandler) handleComment(e CommentPosted) {
	fmt.Fprintf(h.W, "  comment posted to #%d, rebase count %d\n", e.PRNumber, e.Rebases)
}

func (h *PlainTextHandler) handleStatuses(e StatusesPosted) {
	fmt.Fprintf(h.W, "  %d status(es) posted across %d commit(s)\n", e.Posted, e.Commits)
}

func (h *PlainTextHandler) handleSkipped(e DeliverySkipped) {
	msg := warnStyle.Render("skipped")
	fmt.Fprintf(h.W, "  %s %s %s\n", msg, e.Reason, dimStyle.Render("["+shortID(e.DeliveryID)+"]"))
}

func (h *PlainTextHandler) handleError(e DeliveryError) {
	cross := errorStyle.Render("✗")
	fmt.Fprintf(h.W, "  %s %s: %s %s\n", cross, e.Stage, e.Err, dimStyle.Render("["+shortID(e.DeliveryID)+"]"))
}

func (h *PlainTextHandler) handleDone(e DeliveryDone) {
	check := successStyle.Render("✓")
	info := dimStyle.Render(fmt.Sprintf("(%dms) [%s]", e.DurationMS, shortID(e.DeliveryID)))
	fmt.Fprintf(h.W, "  %s done %s\n", check, info)
}

// shortID truncates a delivery id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
