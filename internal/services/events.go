package services

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// RideEvent describes one committed change to a ride offer.
type RideEvent struct {
	RideID  uint      `json:"rideId"`
	Op      string    `json:"op"`
	Type    string    `json:"type"`
	Status  string    `json:"status,omitempty"`
	ActorID uint      `json:"actorId"`
	At      time.Time `json:"at"`
}

// EventSink receives ride events after the change is stored.
type EventSink interface {
	Publish(ctx context.Context, ev RideEvent) error
}

// ChangeFeed is an EventSink that can also be watched.
type ChangeFeed interface {
	EventSink
	Subscribe(ctx context.Context) (<-chan RideEvent, func(), error)
}

// MultiSink fans one event out to several sinks and joins their errors.
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, ev RideEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LocalFeed is the in-process change feed. Each subscriber has a one-slot
// buffer; a pending event already signals a change, so extra events are
// coalesced.
type LocalFeed struct {
	mu     sync.Mutex
	subs   map[int]chan RideEvent
	nextID int
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[int]chan RideEvent)}
}

func (f *LocalFeed) Publish(_ context.Context, ev RideEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers a watcher. The returned cancel func and ctx
// cancellation both remove it and close the channel.
func (f *LocalFeed) Subscribe(ctx context.Context) (<-chan RideEvent, func(), error) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	ch := make(chan RideEvent, 1)
	f.subs[id] = ch
	f.mu.Unlock()

	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			close(ch)
			f.mu.Unlock()
			close(stop)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()

	return ch, cancel, nil
}

// Subscribers returns the number of active watchers.
func (f *LocalFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
