package bus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWSBus(t *testing.T, b *WSBus, clientID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		b.AddClient(clientID, conn)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWSBusSendToDeliversToTargetClient(t *testing.T) {
	b := NewWSBus()
	conn := dialWSBus(t, b, "clientA")

	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		_, ok := b.conns["clientA"]
		return ok
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, b.SendTo(ModuleWhiteboard, []byte("hi"), "clientA"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hi", string(payload))
}

func TestWSBusReadPumpInvokesHandler(t *testing.T) {
	b := NewWSBus()
	received := make(chan []byte, 1)
	b.Subscribe(ModuleWhiteboard, "clientA", 0, func(payload []byte) { received <- payload })

	conn := dialWSBus(t, b, "clientA")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("from-client")))

	select {
	case got := <-received:
		assert.Equal(t, "from-client", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler invocation")
	}
}

func TestWSBusOnDisconnectFiresOnRemove(t *testing.T) {
	b := NewWSBus()
	conn := dialWSBus(t, b, "clientA")

	disconnected := make(chan string, 1)
	b.SetOnDisconnect(func(clientID string) { disconnected <- clientID })

	conn.Close()

	select {
	case id := <-disconnected:
		assert.Equal(t, "clientA", id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect callback")
	}
}
