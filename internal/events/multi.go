package events

// Multi fans each event out to every handler in order. Nil entries are
// skipped, so optional handlers can be wired without branching at the call
// site.
type Multi []EventHandler

func (m Multi) Handle(event Event) {
	for _, h := range m {
		if h == nil {
			continue
		}
		h.Handle(event)
	}
}
