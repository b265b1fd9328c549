package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memkv "github.com/polyscreen/polyscreen-backend/pkg/kv/memory"
)

type snapshot struct {
	Version int      `json:"version"`
	IDs     []string `json:"ids"`
}

func TestUnreachableRedisFallsBackToMemory(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	// Port 1 on loopback refuses connections.
	cache, err := NewCache("127.0.0.1:1", logger.Sugar(), nil)
	require.NoError(t, err)
	defer cache.Close()

	assert.True(t, cache.IsInMemoryMode())
	assert.NoError(t, cache.Ping(context.Background()))
}

func TestEmptyAddressUsesMemory(t *testing.T) {
	cache, err := NewCache("", nil, nil)
	require.NoError(t, err)
	defer cache.Close()

	assert.True(t, cache.IsInMemoryMode())
}

func TestCacheGetSet(t *testing.T) {
	cache := NewCacheWithStore(memkv.New(0), nil, nil)
	defer cache.Close()
	ctx := context.Background()

	var got snapshot
	assert.ErrorIs(t, cache.Get(ctx, KeyEvents, &got), ErrCacheMiss)

	want := snapshot{Version: 3, IDs: []string{"a", "b"}}
	require.NoError(t, cache.Set(ctx, KeyEvents, want, time.Minute))
	require.NoError(t, cache.Get(ctx, KeyEvents, &got))
	assert.Equal(t, want, got)

	ok, err := cache.Exists(ctx, KeyEvents)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, cache.Delete(ctx, KeyEvents, KeyMarkets))
	ok, err = cache.Exists(ctx, KeyEvents)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, cache.Delete(ctx))
}

func TestCacheSetZeroTTLPersists(t *testing.T) {
	cache := NewCacheWithStore(memkv.New(0), nil, nil)
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, KeyDashboard, map[string]int{"n": 1}, 0))

	var got map[string]int
	require.NoError(t, cache.Get(ctx, KeyDashboard, &got))
	assert.Equal(t, 1, got["n"])
}

func TestCacheGetRejectsMalformedJSON(t *testing.T) {
	st := memkv.New(0)
	cache := NewCacheWithStore(st, nil, nil)
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, KeyMarkets, []byte("{not json")))

	var got snapshot
	err := cache.Get(ctx, KeyMarkets, &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestCacheVersion(t *testing.T) {
	cache := NewCacheWithStore(memkv.New(0), nil, nil)
	defer cache.Close()
	ctx := context.Background()

	v, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	for want := int64(1); want <= 3; want++ {
		v, err := cache.BumpVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}

	v, err = cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestInMemoryPubSub(t *testing.T) {
	cache := NewCacheWithStore(memkv.New(0), nil, nil)
	defer cache.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := cache.Subscribe(ctx, ChannelDashboard)
	defer sub.Close()

	require.NoError(t, cache.Publish(ctx, "other:channel", map[string]string{"ignored": "yes"}))
	require.NoError(t, cache.Publish(ctx, ChannelDashboard, map[string]int64{"version": 7}))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, ChannelDashboard, msg.Channel)

		var payload map[string]int64
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
		assert.Equal(t, int64(7), payload["version"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for pubsub message")
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	hub := NewPubSubHub()
	ctx, cancel := context.WithCancel(context.Background())

	sub := hub.Subscribe(ctx, ChannelDashboard)
	cancel()

	select {
	case _, ok := <-sub.Channel():
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed after context cancel")
	}

	assert.Eventually(t, func() bool {
		return hub.Publish(ChannelDashboard, "{}") == 0
	}, time.Second, 10*time.Millisecond)

	// Closing twice is harmless.
	assert.NoError(t, sub.Close())
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewPubSubHub()
	sub := hub.Subscribe(context.Background(), ChannelDashboard)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriptionBuffer*2; i++ {
			hub.Publish(ChannelDashboard, "{}")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, sub.Channel(), subscriptionBuffer)
}
