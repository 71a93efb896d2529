package oauth

import "sync"

// Listener fans redirect callback URLs into a single registered handler, the
// way the mobile platform delivers deep links: whatever URL launched the
// process is replayed to each new registration, at most once, before live
// events.
type Listener struct {
	mu      sync.Mutex
	seq     int
	initial string
	handler func(url string)
}

func NewListener(initialURL string) *Listener {
	return &Listener{initial: initialURL}
}

// Listen registers fn as the handler and returns its unsubscribe function.
// Unsubscribing twice is a no-op, and a later registration is not torn down by
// an earlier registration's unsubscribe.
func (l *Listener) Listen(fn func(url string)) (unsubscribe func()) {
	l.mu.Lock()
	l.seq++
	id := l.seq
	l.handler = fn
	initial := l.initial
	l.mu.Unlock()

	if initial != "" {
		fn(initial)
	}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		if l.seq == id {
			l.handler = nil
		}
	}
}

// Dispatch delivers an incoming callback URL to the current handler and
// reports whether one was registered.
func (l *Listener) Dispatch(url string) bool {
	l.mu.Lock()
	fn := l.handler
	l.mu.Unlock()

	if fn == nil {
		return false
	}

	fn(url)
	return true
}
