package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

const (
	// writeWait is the time allowed to write the close frame to the peer.
	writeWait = 5 * time.Second

	defaultHandshakeTimeout = 15 * time.Second
)

// Transport delivers raw feed frames, one message per call.
type Transport interface {
	ReadMessage(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens a Transport to the feed.
type Dialer func(ctx context.Context) (Transport, error)

// WSConfig configures the websocket transport.
type WSConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	// ReadTimeout bounds each receive. Zero waits forever.
	ReadTimeout time.Duration
}

// WSTransport reads order book frames from a websocket connection.
type WSTransport struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	closeOnce   sync.Once
	closeErr    error
}

// DialWS connects to cfg.URL.
func DialWS(ctx context.Context, cfg WSConfig) (*WSTransport, error) {
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: timeout,
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed/ws: connect %s: %w: %w", cfg.URL, domain.ErrTransport, err)
	}
	return &WSTransport{conn: conn, readTimeout: cfg.ReadTimeout}, nil
}

// NewWSDialer returns a Dialer that opens a WSTransport per session.
func NewWSDialer(cfg WSConfig) Dialer {
	return func(ctx context.Context) (Transport, error) {
		return DialWS(ctx, cfg)
	}
}

// ReadMessage blocks for the next frame. Control frames are handled by the
// underlying connection.
func (t *WSTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.readTimeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	}
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("feed/ws: read: %w: %w", domain.ErrTransport, err)
	}
	return data, nil
}

// Close sends a close frame and tears down the connection. It is safe to call
// more than once and from another goroutine than the reader.
func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

var _ Transport = (*WSTransport)(nil)
