package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/pkg/bus"
)

type continuer chan struct{}

func (c continuer) Continue() {
	c <- struct{}{}
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, time.Millisecond)
	return conn
}

func TestHub_MirrorsEvents(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	conn := dial(t, hub)

	b := bus.NewBus(bus.NewLog())
	hub.Attach(b)

	_, err := b.Publish(bus.TopicPriceTick, nil, "")
	require.NoError(t, err)
	_, err = b.Publish(bus.TopicOrderNew, []string{"a"}, "")
	require.NoError(t, err)
	_, err = b.Publish(bus.TopicAccountPnL, map[string]int{"unrealized": 1}, "")
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var messages []Message
	for i := 0; i < 3; i++ {
		var message Message
		require.NoError(t, conn.ReadJSON(&message))
		messages = append(messages, message)
	}

	assert.Equal(t, MessageNewOrders, messages[0].Type)
	assert.Equal(t, []any{"a"}, messages[0].Data)
	assert.Equal(t, MessagePnL, messages[1].Type)
	assert.Equal(t, MessageReady, messages[2].Type)
}

func TestHub_NextContinues(t *testing.T) {
	next := make(continuer, 1)
	hub := NewHub(zap.NewNop(), next)
	conn := dial(t, hub)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "hello"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": MessageNext}))

	select {
	case <-next:
	case <-time.After(time.Second):
		t.Fatal("continue not received")
	}
}

func TestHub_DisconnectDoesNotFailBus(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	conn := dial(t, hub)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, time.Millisecond)

	b := bus.NewBus(bus.NewLog())
	hub.Attach(b)
	_, err := b.Publish(bus.TopicOrderFilled, nil, "")
	assert.NoError(t, err)

	hub.Close()
}
