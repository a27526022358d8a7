package syncengine

// ChangeKind describes what happened to the working set.
type ChangeKind int

const (
	ChangeReplaced ChangeKind = iota + 1
	ChangeAdded
	ChangeUpdated
	ChangeRemoved
	ChangeFilter
	ChangeRolledBack
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeReplaced:
		return "replaced"
	case ChangeAdded:
		return "added"
	case ChangeUpdated:
		return "updated"
	case ChangeRemoved:
		return "removed"
	case ChangeFilter:
		return "filter"
	case ChangeRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Change is delivered to listeners after every mutation. OrderID is empty for
// set-wide changes.
type Change struct {
	Kind    ChangeKind
	OrderID string
}

// Listener receives changes synchronously, on the goroutine that mutated the engine.
type Listener func(Change)

// Unsubscribe removes a listener. Calling it more than once is safe.
type Unsubscribe func()

type listenerEntry struct {
	id uint64
	fn Listener
}

// Subscribe registers a listener and returns the handle that removes it.
// Listeners are called in registration order.
func (e *Engine) Subscribe(l Listener) Unsubscribe {
	if e.closed {
		return func() {}
	}
	id := e.nextListener
	e.nextListener++
	e.listeners = append(e.listeners, listenerEntry{id: id, fn: l})

	return func() {
		e.listeners = removeListener(e.listeners, id)
	}
}

func (e *Engine) notify(c Change) {
	for _, l := range e.listeners {
		l.fn(c)
	}
}

func removeListener(entries []listenerEntry, id uint64) []listenerEntry {
	for i, l := range entries {
		if l.id == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}

	return entries
}
