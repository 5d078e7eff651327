package server

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// window is a strict "N events within T" sliding-window detector
// backing the chat and block-edit spam checks. It retains the last N
// timestamps; event N+1 trips the window iff it arrives within T of
// the oldest retained one.
type window struct {
	mu       sync.Mutex
	count    int
	interval time.Duration
	times    deque.Deque[time.Time]
}

func newWindow(count int, interval time.Duration) *window {
	return &window{count: count, interval: interval}
}

// Trip records one event and reports whether the rate was exceeded.
// A tripped window is cleared so the offender starts fresh after the
// consequence (mute, kick) has been applied.
func (w *window) Trip(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.count <= 0 || w.interval <= 0 {
		return false
	}
	if w.times.Len() >= w.count {
		if now.Sub(w.times.Front()) < w.interval {
			w.times.Clear()
			return true
		}
		w.times.PopFront()
	}
	w.times.PushBack(now)
	return false
}

func (w *window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.times.Clear()
}
