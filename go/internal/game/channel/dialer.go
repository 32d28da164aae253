package channel

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// DialerConfig holds websocket client settings.
type DialerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	Header          http.Header
}

// DefaultDialerConfig returns default websocket client settings.
func DefaultDialerConfig() DialerConfig {
	return DialerConfig{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		MaxMessageSize:  64 * 1024,
	}
}

// WebsocketDialer dials the hub with gorilla/websocket.
type WebsocketDialer struct {
	dialer websocket.Dialer
	config DialerConfig
}

// NewWebsocketDialer creates a dialer. The open timeout is enforced by the
// channel, not here.
func NewWebsocketDialer(config DialerConfig) *WebsocketDialer {
	return &WebsocketDialer{
		dialer: websocket.Dialer{
			Proxy:           http.ProxyFromEnvironment,
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
		},
		config: config,
	}
}

// Dial opens a websocket to url.
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.config.Header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("failed to dial %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	if d.config.MaxMessageSize > 0 {
		conn.SetReadLimit(d.config.MaxMessageSize)
	}
	return conn, nil
}
