package tone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen attaches a client socket to the hub output for id and returns the client end
func listen(t *testing.T, hub *WebSocketHub, id uuid.UUID) *websocket.Conn {
	t.Helper()

	var upgrader websocket.Upgrader
	attached := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			attached <- err
			return
		}
		attached <- hub.Attach(id, conn)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, <-attached)
	return client
}

func readControl(t *testing.T, c *websocket.Conn) StreamMessage {
	t.Helper()
	for {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		kind, data, err := c.ReadMessage()
		require.NoError(t, err)
		if kind != websocket.TextMessage {
			continue
		}
		var msg StreamMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}
}

func TestWebSocketOutput_NoListener(t *testing.T) {
	out := NewWebSocketOutput()
	_, err := out.Play(context.Background(), make([]byte, 16), DefaultFormat)
	assert.ErrorIs(t, err, ErrAudioUnavailable)
}

func TestWebSocketOutput_StreamsTone(t *testing.T) {
	hub := NewWebSocketHub()
	id := uuid.New()
	out, err := hub.Open(id)
	require.NoError(t, err)
	client := listen(t, hub, id)

	// 50ms of silence
	pcm := make([]byte, 2400*DefaultFormat.BytesPerFrame())
	v, err := out.Play(context.Background(), pcm, DefaultFormat)
	require.NoError(t, err)

	start := readControl(t, client)
	assert.Equal(t, "tone_start", start.Type)
	assert.Equal(t, 48000, start.SampleRate)
	assert.Equal(t, 2, start.Channels)
	assert.Equal(t, "s16le", start.Encoding)

	received := 0
	for {
		_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
		kind, data, err := client.ReadMessage()
		require.NoError(t, err)
		if kind == websocket.BinaryMessage {
			received += len(data)
			continue
		}
		var msg StreamMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "tone_end", msg.Type)
		break
	}
	assert.Equal(t, len(pcm), received)

	select {
	case <-v.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("voice did not finish")
	}
}

func TestWebSocketOutput_StopSendsToneStop(t *testing.T) {
	hub := NewWebSocketHub()
	id := uuid.New()
	out, err := hub.Open(id)
	require.NoError(t, err)
	client := listen(t, hub, id)

	pcm := make([]byte, 48000*DefaultFormat.BytesPerFrame())
	v, err := out.Play(context.Background(), pcm, DefaultFormat)
	require.NoError(t, err)
	assert.Equal(t, "tone_start", readControl(t, client).Type)

	require.NoError(t, v.Stop())
	require.NoError(t, v.Stop())
	assert.Equal(t, "tone_stop", readControl(t, client).Type)
}

func TestWebSocketHub_CloseRemovesOutput(t *testing.T) {
	hub := NewWebSocketHub()
	id := uuid.New()
	out, err := hub.Open(id)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Count())

	require.NoError(t, out.Close())
	require.NoError(t, out.Close())

	assert.Equal(t, 0, hub.Count())
	assert.ErrorIs(t, hub.Attach(id, nil), ErrNoOutput)
}
