package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/mcdev12/gavel/go/internal/auction/events"
)

func event(auctionID uuid.UUID, seq uint64, typ events.Type) events.Event {
	return events.Event{
		ID:        uuid.New(),
		AuctionID: auctionID,
		Type:      typ,
		Sequence:  seq,
		PlayerID:  uuid.New(),
		Timestamp: time.Now(),
		Data:      []byte("{}"),
	}
}

// recorder collects delivered sequences.
type recorder struct {
	mu   sync.Mutex
	seqs []uint64
	got  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 1024)}
}

func (r *recorder) handle(e events.Event) {
	r.mu.Lock()
	r.seqs = append(r.seqs, e.Sequence)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) []uint64 {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.seqs...)
}

func TestPublishOrderToAllSubscribers(t *testing.T) {
	auctionID := uuid.New()
	ch := NewChannel(auctionID, DefaultConfig())
	defer ch.Close()

	recorders := []*recorder{newRecorder(), newRecorder(), newRecorder()}
	for _, r := range recorders {
		_, err := ch.Subscribe(events.AuctionTopic(auctionID), r.handle)
		assert.NoError(t, err)
	}

	for seq := uint64(1); seq <= 50; seq++ {
		assert.NoError(t, ch.Publish(context.Background(), event(auctionID, seq, events.TypeBidPlaced)))
	}

	want := make([]uint64, 50)
	for i := range want {
		want[i] = uint64(i + 1)
	}
	for _, r := range recorders {
		check.Equal(t, want, r.wait(t, 50))
	}
	check.Equal(t, uint64(50), ch.Stats().Published)
}

func TestPlayerTopicReceivesStatusChanges(t *testing.T) {
	auctionID := uuid.New()
	ch := NewChannel(auctionID, DefaultConfig())
	defer ch.Close()

	sold := event(auctionID, 2, events.TypePlayerSold)
	r := newRecorder()
	_, err := ch.Subscribe(events.PlayerTopic(auctionID, sold.PlayerID), r.handle)
	assert.NoError(t, err)

	bid := event(auctionID, 1, events.TypeBidPlaced)
	bid.PlayerID = sold.PlayerID
	assert.NoError(t, ch.Publish(context.Background(), bid))
	assert.NoError(t, ch.Publish(context.Background(), sold))

	check.Equal(t, []uint64{2}, r.wait(t, 1))
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	auctionID := uuid.New()
	ch := NewChannel(auctionID, DefaultConfig())
	defer ch.Close()

	assert.NoError(t, ch.Publish(context.Background(), event(auctionID, 1, events.TypeBidPlaced)))

	r := newRecorder()
	_, err := ch.Subscribe(events.AuctionTopic(auctionID), r.handle)
	assert.NoError(t, err)
	assert.NoError(t, ch.Publish(context.Background(), event(auctionID, 2, events.TypeBidPlaced)))

	check.Equal(t, []uint64{2}, r.wait(t, 1))
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	auctionID := uuid.New()
	ch := NewChannel(auctionID, Config{QueueSize: 1})
	defer ch.Close()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var mu sync.Mutex
	var handled []uint64
	sub, err := ch.Subscribe(events.AuctionTopic(auctionID), func(e events.Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		mu.Lock()
		handled = append(handled, e.Sequence)
		mu.Unlock()
	})
	assert.NoError(t, err)

	fast := newRecorder()
	_, err = ch.Subscribe(events.AuctionTopic(auctionID), fast.handle)
	assert.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, ch.Publish(ctx, event(auctionID, 1, events.TypeBidPlaced)))
	<-started
	assert.NoError(t, ch.Publish(ctx, event(auctionID, 2, events.TypeBidPlaced)))
	fast.wait(t, 2)
	assert.NoError(t, ch.Publish(ctx, event(auctionID, 3, events.TypeBidPlaced)))
	close(release)

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("slow subscription was not stopped")
	}
	check.True(t, errors.Is(sub.Err(), ErrSlowSubscriber))
	mu.Lock()
	check.Equal(t, []uint64{1, 2}, handled)
	mu.Unlock()

	check.Equal(t, []uint64{1, 2, 3}, fast.wait(t, 1))
	stats := ch.Stats()
	check.Equal(t, 1, stats.Subscriptions)
	check.Equal(t, uint64(1), stats.Dropped)
}

func TestUnsubscribe(t *testing.T) {
	auctionID := uuid.New()
	ch := NewChannel(auctionID, DefaultConfig())
	defer ch.Close()

	r := newRecorder()
	sub, err := ch.Subscribe(events.AuctionTopic(auctionID), r.handle)
	assert.NoError(t, err)
	sub.Unsubscribe()
	<-sub.Done()

	assert.NoError(t, ch.Publish(context.Background(), event(auctionID, 1, events.TypeBidPlaced)))
	check.Nil(t, sub.Err())
	check.Equal(t, 0, ch.Stats().Subscriptions)
}

type failingSink struct{ err error }

func (s failingSink) Deliver(context.Context, events.Event) error { return s.err }

func TestSinkFailureIsTransportError(t *testing.T) {
	auctionID := uuid.New()
	ch := NewChannel(auctionID, DefaultConfig(), failingSink{err: errors.New("nats: timeout")})
	defer ch.Close()

	r := newRecorder()
	_, err := ch.Subscribe(events.AuctionTopic(auctionID), r.handle)
	assert.NoError(t, err)

	err = ch.Publish(context.Background(), event(auctionID, 1, events.TypeBidPlaced))
	check.True(t, errors.Is(err, ErrTransport))

	// local subscribers still got it
	check.Equal(t, []uint64{1}, r.wait(t, 1))
}

func TestPublishWrongAuction(t *testing.T) {
	ch := NewChannel(uuid.New(), DefaultConfig())
	defer ch.Close()

	err := ch.Publish(context.Background(), event(uuid.New(), 1, events.TypeBidPlaced))
	check.Error(t, err)
}

func TestClose(t *testing.T) {
	auctionID := uuid.New()
	ch := NewChannel(auctionID, DefaultConfig())

	sub, err := ch.Subscribe(events.AuctionTopic(auctionID), func(events.Event) {})
	assert.NoError(t, err)
	ch.Close()
	<-sub.Done()

	check.True(t, errors.Is(sub.Err(), ErrClosed))
	check.True(t, errors.Is(ch.Publish(context.Background(), event(auctionID, 1, events.TypeBidPlaced)), ErrClosed))
	_, err = ch.Subscribe(events.AuctionTopic(auctionID), func(events.Event) {})
	check.True(t, errors.Is(err, ErrClosed))
}
