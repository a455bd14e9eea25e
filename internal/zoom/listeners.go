package zoom

// Subscription removes a registered listener.
type Subscription struct {
	id  uint32
	reg *listeners
}

// Cancel unregisters the listener. Cancelling twice is harmless.
func (s Subscription) Cancel() {
	if s.reg != nil {
		s.reg.remove(s.id)
	}
}

type listener struct {
	id uint32
	fn func(float64)
}

type listeners struct {
	list   []listener
	nextID uint32
}

func (l *listeners) add(fn func(float64)) Subscription {
	l.nextID++
	l.list = append(l.list, listener{id: l.nextID, fn: fn})
	return Subscription{id: l.nextID, reg: l}
}

func (l *listeners) remove(id uint32) {
	for i, ln := range l.list {
		if ln.id == id {
			l.list = append(l.list[:i], l.list[i+1:]...)
			return
		}
	}
}

func (l *listeners) emit(scale float64) {
	for _, ln := range append([]listener(nil), l.list...) {
		ln.fn(scale)
	}
}
