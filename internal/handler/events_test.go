package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("условие не выполнилось за отведенное время")
}

func connCount(hub *EventHub, videoName string) int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.conns[videoName])
}

func dialHub(t *testing.T, hub *EventHub, videoName string) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Handle(w, r, videoName)
	}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, srv
}

func TestBroadcastDeliversEvent(t *testing.T) {
	hub := NewEventHub(testLogger())
	conn, srv := dialHub(t, hub, "test.mp4")
	defer srv.Close()
	defer conn.Close()

	waitFor(t, func() bool { return connCount(hub, "test.mp4") == 1 })

	hub.Broadcast("test.mp4", DocumentEvent{
		VideoName:    "test.mp4",
		Version:      7,
		SaveState:    "saved",
		FlaggedCount: 2,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event DocumentEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "test.mp4", event.VideoName)
	assert.Equal(t, uint64(7), event.Version)
	assert.Equal(t, "saved", event.SaveState)
	assert.Equal(t, 2, event.FlaggedCount)
}

// Рассылка не должна зависеть от здоровья клиентов: отвалившееся
// подключение выбрасывается из хаба, а не блокирует отправителя.
func TestBroadcastEvictsDeadConnection(t *testing.T) {
	hub := NewEventHub(testLogger())
	conn, srv := dialHub(t, hub, "test.mp4")
	defer srv.Close()

	waitFor(t, func() bool { return connCount(hub, "test.mp4") == 1 })
	conn.Close()

	// После разрыва запись рано или поздно возвращает ошибку,
	// и хаб забывает подключение
	waitFor(t, func() bool {
		hub.Broadcast("test.mp4", DocumentEvent{VideoName: "test.mp4", Version: 1})
		return connCount(hub, "test.mp4") == 0
	})
}

func TestBroadcastNoConnectionsIsNoop(t *testing.T) {
	hub := NewEventHub(testLogger())
	hub.Broadcast("missing.mp4", DocumentEvent{VideoName: "missing.mp4", Version: 1})
	assert.Equal(t, 0, connCount(hub, "missing.mp4"))
}
