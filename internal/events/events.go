// Package events defines the typed events a webhook delivery emits as it
// moves through the pipeline, and the handlers that record them. Handlers
// are best-effort: an event that cannot be recorded never fails the
// delivery that emitted it.
package events

// Event is the interface satisfied by all delivery event types.
type Event interface {
	eventTag()
}

// EventHandler processes events emitted while a delivery is handled.
type EventHandler interface {
	Handle(event Event)
}

// DeliveryReceived is emitted when a webhook delivery is accepted for
// processing.
type DeliveryReceived struct {
	DeliveryID string
	Event      string
	Org        string
	Repo       string
	Sender     string
}

func (DeliveryReceived) eventTag() {}

// PushClassified is emitted when a push has been matched to a pull request
// and classified against its old tip.
type PushClassified struct {
	DeliveryID string
	PRNumber   int
	Kind       string // "fast_forward" or "rewrite"
}

func (PushClassified) eventTag() {}

// SnapshotRecorded is emitted when the snapshot registry changes.
type SnapshotRecorded struct {
	DeliveryID string
	Family     string
	Rebase     int
	Operation  string // "initialize", "advance_head" or "open_new_rebase"
}

func (SnapshotRecorded) eventTag() {}

// CommentPosted is emitted after the rebase comment lands on the pull
// request.
type CommentPosted struct {
	DeliveryID string
	PRNumber   int
	Rebases    int
}

func (CommentPosted) eventTag() {}

// StatusesPosted is emitted after a reconcile pass over the scanned commits.
type StatusesPosted struct {
	DeliveryID string
	Commits    int
	Posted     int
}

func (StatusesPosted) eventTag() {}

// DeliverySkipped is emitted when a delivery is dropped on purpose, e.g. a
// push that does not belong to any known pull request.
type DeliverySkipped struct {
	DeliveryID string
	Reason     string
}

func (DeliverySkipped) eventTag() {}

// DeliveryError is emitted when processing aborts.
type DeliveryError struct {
	DeliveryID string
	Stage      string
	Err        string
}

func (DeliveryError) eventTag() {}

// DeliveryDone is emitted when processing completes without error.
type DeliveryDone struct {
	DeliveryID string
	DurationMS int
}

func (DeliveryDone) eventTag() {}
