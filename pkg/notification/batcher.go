package notification

import (
	"sync"
	"time"
)

// Batcher groups notifications arriving within a time window and hands
// each group to the callback once the window closes.
type Batcher struct {
	window   time.Duration
	callback func([]Notification)

	mu      sync.Mutex
	pending []Notification
	timer   *time.Timer
	running sync.WaitGroup
}

// NewBatcher creates a new notification batcher
func NewBatcher(window time.Duration, callback func([]Notification)) *Batcher {
	return &Batcher{
		window:   window,
		callback: callback,
	}
}

// Add adds a notification to the current batch, opening a window if none is open.
func (b *Batcher) Add(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, n)

	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	}
}

// Pending returns the number of notifications waiting for the window to close.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// take detaches the pending batch and closes the window. A non-empty batch
// is counted as running until its callback returns.
func (b *Batcher) take() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}

	batch := b.pending
	b.pending = nil
	if len(batch) > 0 {
		b.running.Add(1)
	}
	return batch
}

func (b *Batcher) flush() {
	batch := b.take()
	if len(batch) == 0 {
		return
	}
	defer b.running.Done()
	b.callback(batch)
}

// Flush sends any pending notifications and waits for every batch already
// handed to the callback, including ones whose window closed on its own.
func (b *Batcher) Flush() {
	b.flush()
	b.running.Wait()
}
