package htmldom

import "pinmark/pkg/dom"

type listener struct {
	typ     dom.EventType
	fn      dom.Listener
	opts    dom.ListenOptions
	removed bool
}

// listenerSet holds the listeners of one event target in registration order
type listenerSet struct {
	entries []*listener
}

func (s *listenerSet) add(t dom.EventType, fn dom.Listener, opts dom.ListenOptions) dom.RemoveFunc {
	l := &listener{typ: t, fn: fn, opts: opts}
	s.entries = append(s.entries, l)
	return func() { s.remove(l) }
}

func (s *listenerSet) remove(target *listener) {
	if target.removed {
		return
	}
	target.removed = true
	for i, l := range s.entries {
		if l == target {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *listenerSet) count(t dom.EventType) int {
	n := 0
	for _, l := range s.entries {
		if l.typ == t {
			n++
		}
	}
	return n
}

// fire calls every listener for ev.Type. Listeners added during dispatch
// wait for the next event, listeners removed during dispatch are skipped.
func (s *listenerSet) fire(ev *dom.Event) {
	if s == nil {
		return
	}
	snapshot := make([]*listener, 0, len(s.entries))
	for _, l := range s.entries {
		if l.typ == ev.Type {
			snapshot = append(snapshot, l)
		}
	}

	for _, l := range snapshot {
		if l.removed {
			continue
		}
		if l.opts.Once {
			s.remove(l)
		}
		if l.opts.PreventDefault {
			ev.PreventDefault()
		}
		l.fn(ev)
	}
}
