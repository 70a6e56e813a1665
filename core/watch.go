package core

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
)

// Watch is the passive session poll owned by a mounted screen.
type Watch struct {
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	expired atomic.Bool
}

// Watch validates the session now and then on every poll interval until the
// session fails, ctx ends, or Stop is called. A failed check logs out and ends
// the poll.
func (a *AuthController) Watch(ctx context.Context) *Watch {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{cancel: cancel, done: make(chan struct{})}

	if !a.ValidateToken(ctx) {
		cancel()
		w.expired.Store(true)
		close(w.done)
		return w
	}

	ticker := a.clock.NewTicker(a.pollEvery)
	go w.run(ctx, a, ticker)
	return w
}

func (w *Watch) run(ctx context.Context, a *AuthController, ticker clockwork.Ticker) {
	defer close(w.done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !a.Confirm(ctx) {
				w.expired.Store(true)
				return
			}
		}
	}
}

// Stop cancels the poll and waits for it to exit. Safe to call repeatedly.
func (w *Watch) Stop() {
	w.once.Do(w.cancel)
	<-w.done
}

// Done is closed once the poll has ended for any reason.
func (w *Watch) Done() <-chan struct{} { return w.done }

// Expired reports whether the poll ended because the session failed.
func (w *Watch) Expired() bool { return w.expired.Load() }
