package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceEmitterDeliversToAllSubscribers(t *testing.T) {
	emitter := NewPresenceEmitter(4)

	chA, unsubA := emitter.Subscribe()
	chB, unsubB := emitter.Subscribe()
	defer unsubA()
	defer unsubB()

	update := PresenceUpdate{TotalViewers: 12, TotalReserving: 3, Timestamp: time.Now().UnixMilli()}
	emitter.Emit(update)

	for _, ch := range []<-chan PresenceUpdate{chA, chB} {
		select {
		case got := <-ch:
			assert.Equal(t, update, got)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the update")
		}
	}
}

func TestPresenceEmitterUnsubscribeClosesChannel(t *testing.T) {
	emitter := NewPresenceEmitter(4)

	ch, unsubscribe := emitter.Subscribe()
	require.Equal(t, 1, emitter.SubscriberCount())

	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, emitter.SubscriberCount())

	// Safe to call again
	unsubscribe()
	assert.Equal(t, 0, emitter.SubscriberCount())
}

func TestPresenceEmitterDropsWhenSubscriberIsFull(t *testing.T) {
	emitter := NewPresenceEmitter(1)

	ch, unsubscribe := emitter.Subscribe()
	defer unsubscribe()

	emitter.Emit(PresenceUpdate{TotalViewers: 1})
	// Queue is full; this one is superseded rather than blocking
	emitter.Emit(PresenceUpdate{TotalViewers: 2})

	got := <-ch
	assert.Equal(t, 1, got.TotalViewers)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected buffered update: %+v", extra)
	default:
	}
}

func TestPresenceEmitterEmitAfterUnsubscribeDoesNotPanic(t *testing.T) {
	emitter := NewPresenceEmitter(2)

	_, unsubscribe := emitter.Subscribe()
	unsubscribe()

	assert.NotPanics(t, func() {
		emitter.Emit(PresenceUpdate{TotalViewers: 5})
	})
}
