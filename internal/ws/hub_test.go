package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polyscreen/polyscreen-backend/internal/metrics"
	"github.com/polyscreen/polyscreen-backend/internal/store"
	memkv "github.com/polyscreen/polyscreen-backend/pkg/kv/memory"
)

func startHub(t *testing.T, origins []string) (*Hub, *store.Cache, *httptest.Server) {
	t.Helper()

	cache := store.NewCacheWithStore(memkv.New(0), nil, nil)
	hub := NewHub(cache, origins, zap.NewNop().Sugar(), metrics.NewNoop())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		server.Close()
		cancel()
		cache.Close()
	})
	return hub, cache, server
}

func dial(t *testing.T, server *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestSnapshotSentOnConnect(t *testing.T) {
	_, cache, server := startHub(t, nil)
	require.NoError(t, cache.Set(context.Background(), store.KeyDashboard, map[string]int{"version": 4}, 0))

	conn := dial(t, server, nil)

	msg := readMessage(t, conn)
	assert.Equal(t, "snapshot", msg.Type)
	assert.Equal(t, TopicDashboard, msg.Topic)
	assert.JSONEq(t, `{"version":4}`, string(msg.Data))
}

func TestPublishedDashboardIsRelayed(t *testing.T) {
	hub, cache, server := startHub(t, nil)

	conn := dial(t, server, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// The relay subscribes asynchronously; publish until it lands.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				cache.Publish(context.Background(), store.ChannelDashboard, map[string]int{"version": 9})
			}
		}
	}()

	msg := readMessage(t, conn)
	assert.Equal(t, "update", msg.Type)
	assert.JSONEq(t, `{"version":9}`, string(msg.Data))
}

func TestUnsubscribedClientReceivesNothing(t *testing.T) {
	hub, _, server := startHub(t, nil)

	conn := dial(t, server, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(SubscriptionRequest{Type: "unsubscribe", Topics: []string{TopicDashboard}}))

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.clients {
			if c.isSubscribed(TopicDashboard) {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(context.Background(), TopicDashboard, "update", json.RawMessage(`{}`))

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "expected read timeout")
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, _, server := startHub(t, nil)

	conn := dial(t, server, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginCheck(t *testing.T) {
	_, _, server := startHub(t, []string{"http://localhost:3000"})
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	allowed := http.Header{"Origin": {"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, allowed)
	require.NoError(t, err)
	conn.Close()

	denied := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, denied)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSameOriginAdmittedWithoutAllowList(t *testing.T) {
	_, _, server := startHub(t, nil)
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	same := http.Header{"Origin": {server.URL}}
	conn, _, err := websocket.DefaultDialer.Dial(url, same)
	require.NoError(t, err)
	conn.Close()

	foreign := http.Header{"Origin": {"http://localhost:3000"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, foreign)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCleanupDropsIdleClients(t *testing.T) {
	hub, _, server := startHub(t, nil)

	dial(t, server, nil)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.cleanupInactiveClients(context.Background(), time.Now().Add(time.Minute))
	assert.Equal(t, 0, hub.ClientCount())
}
