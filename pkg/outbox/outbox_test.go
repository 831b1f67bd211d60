package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	events  map[int64]*Event
	inserts int

	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: make(map[int64]*Event)}
}

func (f *fakeStore) Insert(ctx context.Context, e *Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.nextID++
	f.inserts++
	e.ID = f.nextID
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	stored := *e
	f.events[e.ID] = &stored
	return nil
}

func (f *fakeStore) GetPending(ctx context.Context, limit int) ([]*Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []*Event
	for _, e := range f.events {
		if e.Status != StatusPending {
			continue
		}
		if e.NextRetryAt != nil && e.NextRetryAt.After(now) {
			continue
		}
		copied := *e
		out = append(out, &copied)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSent(ctx context.Context, eventID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok {
		return errors.New("no such event")
	}
	e.Status = StatusSent
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, eventID int64, maxRetries int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok {
		return errors.New("no such event")
	}
	e.RetryCount++
	if e.RetryCount >= maxRetries {
		e.Status = StatusFailed
		e.NextRetryAt = nil
	} else {
		next := time.Now().Add(time.Duration(e.RetryCount) * 5 * time.Second)
		e.NextRetryAt = &next
	}
	return nil
}

func (f *fakeStore) get(id int64) Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.events[id]
}

type fakeBroker struct {
	mu        sync.Mutex
	published []publishedEvent
	err       error
}

type publishedEvent struct {
	routingKey string
	payload    any
}

func (f *fakeBroker) Publish(routingKey string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedEvent{routingKey: routingKey, payload: payload})
	return nil
}

func (f *fakeBroker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type testPayload struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
}

func TestDurablePublisherPassesThrough(t *testing.T) {
	store := newFakeStore()
	broker := &fakeBroker{}
	pub := NewDurablePublisher(broker, store, zap.NewNop())

	err := pub.Publish("task.assigned", testPayload{EventID: "e1", Title: "ship it"})
	require.NoError(t, err)
	assert.Equal(t, 1, broker.count())
	assert.Equal(t, 0, store.inserts, "nothing parked on a healthy broker")
}

func TestDurablePublisherParksOnBrokerFailure(t *testing.T) {
	store := newFakeStore()
	broker := &fakeBroker{err: errors.New("connection refused")}
	pub := NewDurablePublisher(broker, store, zap.NewNop())

	err := pub.Publish("task.assigned", testPayload{EventID: "e1", Title: "ship it"})
	require.NoError(t, err, "caller never sees a broker outage")
	require.Equal(t, 1, store.inserts)

	parked := store.get(1)
	assert.Equal(t, "task.assigned", parked.RoutingKey)
	assert.Equal(t, StatusPending, parked.Status)

	var got testPayload
	require.NoError(t, json.Unmarshal(parked.Payload, &got))
	assert.Equal(t, "e1", got.EventID)
}

func TestDurablePublisherReportsWhenParkingFails(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("db down")
	brokerErr := errors.New("connection refused")
	pub := NewDurablePublisher(&fakeBroker{err: brokerErr}, store, zap.NewNop())

	err := pub.Publish("task.assigned", testPayload{EventID: "e1"})
	assert.ErrorIs(t, err, brokerErr)
}

func TestDispatcherDrainsParkedEvents(t *testing.T) {
	store := newFakeStore()
	down := &fakeBroker{err: errors.New("connection refused")}
	pub := NewDurablePublisher(down, store, zap.NewNop())
	require.NoError(t, pub.Publish("task.assigned", testPayload{EventID: "e1"}))
	require.NoError(t, pub.Publish("comment.created", testPayload{EventID: "e2"}))

	// Broker is back; the dispatcher drains the backlog.
	up := &fakeBroker{}
	d := NewDispatcher(store, up, zap.NewNop())
	d.drain(context.Background())

	assert.Equal(t, 2, up.count())
	assert.Equal(t, StatusSent, store.get(1).Status)
	assert.Equal(t, StatusSent, store.get(2).Status)

	up.mu.Lock()
	keys := []string{up.published[0].routingKey, up.published[1].routingKey}
	_, isRaw := up.published[0].payload.(json.RawMessage)
	up.mu.Unlock()
	assert.ElementsMatch(t, []string{"task.assigned", "comment.created"}, keys)
	// Parked payloads go out as raw JSON.
	assert.True(t, isRaw)
}

func TestDispatcherRetriesWithBackoff(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.Insert(context.Background(), &Event{
		RoutingKey: "task.assigned",
		Payload:    json.RawMessage(`{"event_id":"e1"}`),
		Status:     StatusPending,
	}))

	down := &fakeBroker{err: errors.New("still down")}
	d := NewDispatcher(store, down, zap.NewNop())
	d.drain(context.Background())

	e := store.get(1)
	assert.Equal(t, StatusPending, e.Status)
	assert.Equal(t, 1, e.RetryCount)
	require.NotNil(t, e.NextRetryAt)
	assert.True(t, e.NextRetryAt.After(time.Now()))

	// Not due yet, so the next sweep skips it.
	d.drain(context.Background())
	assert.Equal(t, 1, store.get(1).RetryCount)
}

func TestDispatcherGivesUpAfterMaxRetries(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.Insert(context.Background(), &Event{
		RoutingKey: "task.assigned",
		Payload:    json.RawMessage(`{"event_id":"e1"}`),
		Status:     StatusPending,
	}))

	down := &fakeBroker{err: errors.New("still down")}
	d := NewDispatcher(store, down, zap.NewNop()).WithMaxRetries(2)

	d.drain(context.Background())
	// Clear the backoff so the event is due again.
	store.mu.Lock()
	store.events[1].NextRetryAt = nil
	store.mu.Unlock()
	d.drain(context.Background())

	e := store.get(1)
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, 2, e.RetryCount)

	// Failed events are never retried.
	d.drain(context.Background())
	assert.Equal(t, 2, store.get(1).RetryCount)
}

func TestDispatcherStartStopsOnCancel(t *testing.T) {
	store := newFakeStore()
	d := NewDispatcher(store, &fakeBroker{}, zap.NewNop()).WithInterval(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}
