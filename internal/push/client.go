// Package push is a receive-only websocket client for live funnel updates.
// It never writes application messages; only close frames are sent.
package push

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AngelCh415/nbd-kiosk/internal/ingest"
	"github.com/AngelCh415/nbd-kiosk/internal/utils"
)

var ErrNoURL = errors.New("push: no url configured")

type Client struct {
	url     string
	dialer  *websocket.Dialer
	header  http.Header
	backoff utils.Backoff
	log     *slog.Logger
}

type Option func(*Client)

// WithReconnect allows up to attempts reconnects after a failure or close.
// Zero means a single connection attempt.
func WithReconnect(base time.Duration, attempts int) Option {
	return func(c *Client) { c.backoff = utils.NewBackoff(base, attempts) }
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialer.HandshakeTimeout = d
		}
	}
}

func New(url string, log *slog.Logger, opts ...Option) *Client {
	d := *websocket.DefaultDialer
	c := &Client{
		url:     url,
		dialer:  &d,
		header:  http.Header{},
		backoff: utils.NewBackoff(time.Second, 0),
		log:     log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run connects and forwards text frames to l until ctx ends or reconnect
// attempts run out. Every failed dial or dropped connection is reported via
// OnClose; a successful open resets the attempt counter.
func (c *Client) Run(ctx context.Context, l ingest.PushListener) {
	if c.url == "" {
		l.OnClose(ErrNoURL)
		return
	}
	failures := 0
	for {
		opened, err := c.session(ctx, l)
		if ctx.Err() != nil {
			l.OnClose(nil)
			return
		}
		l.OnClose(err)
		if opened {
			failures = 0
		}
		if failures >= c.backoff.Retries() {
			c.log.Info("push channel gave up", slog.Int("attempts", failures+1))
			return
		}
		if c.backoff.Wait(ctx, failures) != nil {
			return
		}
		failures++
	}
}

func (c *Client) session(ctx context.Context, l ingest.PushListener) (bool, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return false, err
	}
	sid := uuid.NewString()
	log := c.log.With(slog.String("push_session", sid))
	log.Info("push channel open", slog.String("url", c.url))
	l.OnOpen()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("push channel closed by peer")
				return true, nil
			}
			return true, err
		}
		if mt != websocket.TextMessage {
			continue
		}
		l.OnMessage(data)
	}
}
