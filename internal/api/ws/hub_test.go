package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"argus/internal/domain/telemetry"
	"argus/pkg/logger"
)

func testLogger() *logger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLogger.Sugar()}
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == n
	}, time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastReachesSubscriber(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForSubscribers(t, hub, 1)

	hub.RecordIngested(context.Background(), &telemetry.Record{
		RequestID: "req-1",
		ModelName: "gpt-4",
		Timestamp: time.Now().UTC(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got telemetry.Record
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "gpt-4", got.ModelName)
}

func TestHub_FansOutToAllSubscribers(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	first := dialHub(t, srv)
	second := dialHub(t, srv)
	waitForSubscribers(t, hub, 2)

	hub.Broadcast(map[string]string{"request_id": "req-2"})

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(payload), "req-2")
	}
}

func TestHub_DisconnectedSubscriberIsPruned(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForSubscribers(t, hub, 1)

	conn.Close()
	waitForSubscribers(t, hub, 0)

	// Broadcasting into an empty hub is a no-op
	hub.Broadcast(map[string]string{"request_id": "req-3"})
}

func TestHub_ShutdownClosesSubscribers(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForSubscribers(t, hub, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, hub.Shutdown(ctx))
	assert.Equal(t, 0, hub.ClientCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
