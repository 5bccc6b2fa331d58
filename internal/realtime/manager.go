package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"lodgetix/pkg/logger"

	"github.com/redis/go-redis/v9"
)

var (
	ErrSubscribeTimeout = errors.New("channel subscribe timed out")
	ErrManagerClosed    = errors.New("channel manager is closed")
)

// UnsubscribeFunc removes one subscriber from a managed channel. Safe to
// call more than once.
type UnsubscribeFunc func()

// ChannelManager multiplexes Redis pub/sub channels. Channels are keyed by
// name so repeated subscriptions to the same channel share one underlying
// pub/sub connection with a reference count; the connection is torn down
// when the last subscriber leaves.
type ChannelManager struct {
	redis            *redis.Client
	subscribeTimeout time.Duration
	buffer           int

	mu     sync.Mutex
	active map[string]*managedChannel
	closed bool
}

type managedChannel struct {
	name     string
	pubsub   *redis.PubSub
	cancel   context.CancelFunc
	refCount int

	subMu       sync.Mutex
	subscribers map[uint64]chan []byte
	nextSubID   uint64
}

// NewChannelManager creates a channel manager. subscribeTimeout bounds the
// handshake for every new channel; buffer sizes each subscriber's queue.
func NewChannelManager(redisClient *redis.Client, subscribeTimeout time.Duration, buffer int) *ChannelManager {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelManager{
		redis:            redisClient,
		subscribeTimeout: subscribeTimeout,
		buffer:           buffer,
		active:           make(map[string]*managedChannel),
	}
}

// Subscribe attaches a subscriber to the named channel, creating the
// underlying Redis subscription if this is the first one. The handshake is
// bounded by the manager's subscribe timeout and fails with
// ErrSubscribeTimeout when exceeded.
func (m *ChannelManager) Subscribe(ctx context.Context, channel string) (<-chan []byte, UnsubscribeFunc, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, ErrManagerClosed
	}

	mc, exists := m.active[channel]
	if !exists {
		created, err := m.openChannel(ctx, channel)
		if err != nil {
			m.mu.Unlock()
			return nil, nil, err
		}
		mc = created
		m.active[channel] = mc
	}
	mc.refCount++
	m.mu.Unlock()

	mc.subMu.Lock()
	subID := mc.nextSubID
	mc.nextSubID++
	ch := make(chan []byte, m.buffer)
	mc.subscribers[subID] = ch
	mc.subMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			m.release(channel, mc, subID)
		})
	}

	return ch, unsubscribe, nil
}

// openChannel dials the Redis subscription and waits for confirmation.
// Caller holds m.mu.
func (m *ChannelManager) openChannel(ctx context.Context, channel string) (*managedChannel, error) {
	runCtx, cancel := context.WithCancel(context.Background())

	pubsub := m.redis.Subscribe(runCtx, channel)

	// Bound the subscription handshake
	handshakeCtx := ctx
	if m.subscribeTimeout > 0 {
		var handshakeCancel context.CancelFunc
		handshakeCtx, handshakeCancel = context.WithTimeout(ctx, m.subscribeTimeout)
		defer handshakeCancel()
	}

	if _, err := pubsub.Receive(handshakeCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrSubscribeTimeout, channel)
		}
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	mc := &managedChannel{
		name:        channel,
		pubsub:      pubsub,
		cancel:      cancel,
		subscribers: make(map[uint64]chan []byte),
	}

	go mc.fanOut()

	logger.GetDefault().Debug("realtime channel opened", "channel", channel)
	return mc, nil
}

// fanOut relays every pub/sub message to all subscribers. Slow subscribers
// drop messages rather than blocking the relay.
func (mc *managedChannel) fanOut() {
	for msg := range mc.pubsub.Channel() {
		payload := []byte(msg.Payload)

		mc.subMu.Lock()
		for _, ch := range mc.subscribers {
			select {
			case ch <- payload:
			default:
				// Subscriber queue full; drop
			}
		}
		mc.subMu.Unlock()
	}

	// Channel closed; release remaining subscribers
	mc.subMu.Lock()
	for id, ch := range mc.subscribers {
		close(ch)
		delete(mc.subscribers, id)
	}
	mc.subMu.Unlock()
}

// release drops one subscriber and closes the channel when the count
// reaches zero.
func (m *ChannelManager) release(channel string, mc *managedChannel, subID uint64) {
	mc.subMu.Lock()
	if ch, ok := mc.subscribers[subID]; ok {
		close(ch)
		delete(mc.subscribers, subID)
	}
	mc.subMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	mc.refCount--
	if mc.refCount > 0 {
		return
	}

	delete(m.active, channel)
	mc.cancel()
	if err := mc.pubsub.Close(); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to close pubsub channel", "channel", channel)
	}
	logger.GetDefault().Debug("realtime channel closed", "channel", channel)
}

// Publish marshals payload and publishes it on the named channel
func (m *ChannelManager) Publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal channel payload: %w", err)
	}
	if err := m.redis.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// ActiveChannels returns the names of all open channels, sorted
func (m *ChannelManager) ActiveChannels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.active))
	for name := range m.active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RefCount returns the subscriber count for a channel; 0 if not open
func (m *ChannelManager) RefCount(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mc, ok := m.active[channel]; ok {
		return mc.refCount
	}
	return 0
}

// Close tears down every channel. Subsequent Subscribe calls fail.
func (m *ChannelManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true

	for name, mc := range m.active {
		mc.cancel()
		if err := mc.pubsub.Close(); err != nil {
			logger.GetDefault().WithError(err).Warn("failed to close pubsub channel", "channel", name)
		}
		delete(m.active, name)
	}
}
