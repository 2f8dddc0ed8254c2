package feed

import (
	"context"
	"sync"
)

// Notifier fans refresh notices out to subscribers. Implementations must
// tolerate slow subscribers without blocking publishers.
type Notifier interface {
	Publish(ctx context.Context, r Refresh) error
	// Subscribe returns a channel of notices and a cancel func. The channel
	// closes after cancel is called.
	Subscribe(ctx context.Context) (<-chan Refresh, func(), error)
}

// LocalNotifier is an in-process Notifier for single-binary deployments
// and tests.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[chan Refresh]struct{}
}

// NewLocalNotifier returns an empty in-process notifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[chan Refresh]struct{})}
}

// Publish delivers r to every subscriber. A subscriber whose buffer is
// full misses the notice; the next one will trigger its snapshot pull
// anyway, so nothing is lost beyond latency.
func (n *LocalNotifier) Publish(_ context.Context, r Refresh) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- r:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber channel.
func (n *LocalNotifier) Subscribe(_ context.Context) (<-chan Refresh, func(), error) {
	ch := make(chan Refresh, 16)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, ch)
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}
