package tone

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// wsChunk is the amount of audio sent per binary message
	wsChunk = 20 * time.Millisecond
	// wsPrebuffer is sent up front so the client never starves
	wsPrebuffer = 100 * time.Millisecond
	wsWriteWait = 2 * time.Second
)

// StreamMessage is the JSON control message framing each tone on the socket
type StreamMessage struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
}

// WebSocketOutput streams tones as binary S16LE PCM to a browser attached
// over a websocket. Without an attached client it is unavailable.
type WebSocketOutput struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	onClose func()

	writeMu sync.Mutex
}

// NewWebSocketOutput returns an output with no client attached
func NewWebSocketOutput() *WebSocketOutput {
	return &WebSocketOutput{}
}

// Attach makes conn the listener. A previously attached connection is closed.
func (o *WebSocketOutput) Attach(conn *websocket.Conn) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("%w: output closed", ErrAudioUnavailable)
	}
	if o.conn != nil {
		_ = o.conn.Close()
	}
	o.conn = conn
	return nil
}

// Detach forgets conn if it is still the attached listener
func (o *WebSocketOutput) Detach(conn *websocket.Conn) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn == conn {
		o.conn = nil
	}
}

// Attached reports whether a client is listening
func (o *WebSocketOutput) Attached() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conn != nil
}

func (o *WebSocketOutput) current() *websocket.Conn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conn
}

func (o *WebSocketOutput) writeJSON(conn *websocket.Conn, v any) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

func (o *WebSocketOutput) writeBinary(conn *websocket.Conn, b []byte) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.BinaryMessage, b)
}

// Play announces the tone and streams pcm paced at real time
func (o *WebSocketOutput) Play(ctx context.Context, pcm []byte, format Format) (Voice, error) {
	conn := o.current()
	if conn == nil {
		return nil, fmt.Errorf("%w: no listener attached", ErrAudioUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := StreamMessage{
		Type:       "tone_start",
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Encoding:   "s16le",
	}
	if err := o.writeJSON(conn, start); err != nil {
		o.Detach(conn)
		return nil, fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}

	v := &wsVoice{out: o, conn: conn, done: make(chan struct{}), stop: make(chan struct{})}
	go v.stream(pcm, format)
	return v, nil
}

// Close detaches and closes the listener
func (o *WebSocketOutput) Close() error {
	o.mu.Lock()
	conn := o.conn
	o.conn = nil
	wasClosed := o.closed
	o.closed = true
	onClose := o.onClose
	o.mu.Unlock()
	if onClose != nil && !wasClosed {
		onClose()
	}
	if conn == nil {
		return nil
	}
	o.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
		time.Now().Add(wsWriteWait))
	o.writeMu.Unlock()
	return conn.Close()
}

type wsVoice struct {
	out      *WebSocketOutput
	conn     *websocket.Conn
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func (v *wsVoice) stream(pcm []byte, format Format) {
	defer close(v.done)

	chunk := int(wsChunk.Seconds()*float64(format.SampleRate)) * format.BytesPerFrame()
	pre := int(wsPrebuffer.Seconds()*float64(format.SampleRate)) * format.BytesPerFrame()

	send := func(b []byte) bool {
		if err := v.out.writeBinary(v.conn, b); err != nil {
			log.Debug().Err(err).Msg("Audio websocket write failed")
			v.out.Detach(v.conn)
			return false
		}
		return true
	}

	off := 0
	if pre > len(pcm) {
		pre = len(pcm)
	}
	if pre > 0 {
		if !send(pcm[:pre]) {
			return
		}
		off = pre
	}

	ticker := time.NewTicker(wsChunk)
	defer ticker.Stop()
	for off < len(pcm) {
		select {
		case <-v.stop:
			_ = v.out.writeJSON(v.conn, StreamMessage{Type: "tone_stop"})
			return
		case <-ticker.C:
		}
		end := off + chunk
		if end > len(pcm) {
			end = len(pcm)
		}
		if !send(pcm[off:end]) {
			return
		}
		off = end
	}

	// the client is still draining the prebuffer
	select {
	case <-v.stop:
		_ = v.out.writeJSON(v.conn, StreamMessage{Type: "tone_stop"})
		return
	case <-time.After(wsPrebuffer):
	}
	_ = v.out.writeJSON(v.conn, StreamMessage{Type: "tone_end"})
}

func (v *wsVoice) Done() <-chan struct{} {
	return v.done
}

func (v *wsVoice) Stop() error {
	v.stopOnce.Do(func() { close(v.stop) })
	<-v.done
	return nil
}
