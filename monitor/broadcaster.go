// Package monitor is the Go-native analogue of the teacher's api
// package: instead of streaming one VM's register/PC trace to a
// debugger UI, it streams one World's module/task state (spec.md §3)
// to remote observers over HTTP and WebSocket. It never drives any
// Core API operation itself; it only reads runtime.World.Snapshot.
package monitor

import "sync"

// Subscription is a client's registration with the broadcaster.
type Subscription struct {
	Channel chan Snapshot
}

// Broadcaster fans a stream of world snapshots out to any number of
// subscribers, the same actor-loop shape the teacher's api.Broadcaster
// uses: a single goroutine owns the subscriber set so Subscribe/
// Unsubscribe/Broadcast never need their own lock around it.
type Broadcaster struct {
	mu            sync.RWMutex
	subscriptions map[*Subscription]bool
	broadcast     chan Snapshot
	register      chan *Subscription
	unregister    chan *Subscription
	done          chan struct{}
}

// NewBroadcaster creates and starts a new snapshot broadcaster.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{
		subscriptions: make(map[*Subscription]bool),
		broadcast:     make(chan Snapshot, 16),
		register:      make(chan *Subscription),
		unregister:    make(chan *Subscription),
		done:          make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broadcaster) run() {
	for {
		select {
		case sub := <-b.register:
			b.mu.Lock()
			b.subscriptions[sub] = true
			b.mu.Unlock()

		case sub := <-b.unregister:
			b.mu.Lock()
			if b.subscriptions[sub] {
				delete(b.subscriptions, sub)
				close(sub.Channel)
			}
			b.mu.Unlock()

		case snap := <-b.broadcast:
			b.mu.RLock()
			for sub := range b.subscriptions {
				select {
				case sub.Channel <- snap:
				default:
					// subscriber too slow, drop this snapshot for it
				}
			}
			b.mu.RUnlock()

		case <-b.done:
			b.mu.Lock()
			for sub := range b.subscriptions {
				close(sub.Channel)
			}
			b.subscriptions = make(map[*Subscription]bool)
			b.mu.Unlock()
			return
		}
	}
}

// Subscribe registers a new subscriber and returns its Subscription.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{Channel: make(chan Snapshot, 8)}
	b.register <- sub
	return sub
}

// Unsubscribe removes sub and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.unregister <- sub
}

// Broadcast pushes snap to every current subscriber, dropping it
// silently if the broadcaster's internal queue is full.
func (b *Broadcaster) Broadcast(snap Snapshot) {
	select {
	case b.broadcast <- snap:
	default:
	}
}

// Close shuts the broadcaster down and closes every subscriber channel.
func (b *Broadcaster) Close() {
	close(b.done)
}

// SubscriberCount reports how many clients are currently subscribed.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}
