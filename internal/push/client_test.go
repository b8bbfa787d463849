package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recorder struct {
	mu     sync.Mutex
	opens  int
	msgs   []string
	closes []error
}

func (r *recorder) OnOpen() { r.mu.Lock(); r.opens++; r.mu.Unlock() }
func (r *recorder) OnMessage(b []byte) {
	r.mu.Lock()
	r.msgs = append(r.msgs, string(b))
	r.mu.Unlock()
}
func (r *recorder) OnClose(err error) { r.mu.Lock(); r.closes = append(r.closes, err); r.mu.Unlock() }

func (r *recorder) counts() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens, len(r.msgs), len(r.closes)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func wsURL(srv *httptest.Server) string { return "ws" + strings.TrimPrefix(srv.URL, "http") }

var upgrader = websocket.Upgrader{}

func TestClientForwardsTextFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"UPDATE","data":[]}`))
		conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
		conn.WriteMessage(websocket.TextMessage, []byte(`[]`))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rec := &recorder{}
	New(wsURL(srv), discard()).Run(context.Background(), rec)

	opens, msgs, closes := rec.counts()
	if opens != 1 || msgs != 2 || closes != 1 {
		t.Fatalf("opens=%d msgs=%d closes=%d", opens, msgs, closes)
	}
	if rec.msgs[1] != "[]" {
		t.Fatalf("unexpected frame %q", rec.msgs[1])
	}
	if rec.closes[0] != nil {
		t.Fatalf("normal closure should report nil, got %v", rec.closes[0])
	}
}

func TestClientNoURL(t *testing.T) {
	rec := &recorder{}
	New("", discard()).Run(context.Background(), rec)
	if len(rec.closes) != 1 || !errors.Is(rec.closes[0], ErrNoURL) {
		t.Fatalf("closes = %v", rec.closes)
	}
}

func TestClientReconnectGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	rec := &recorder{}
	done := make(chan struct{})
	go func() {
		New(url, discard(), WithReconnect(time.Millisecond, 2)).Run(context.Background(), rec)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not give up")
	}
	opens, _, closes := rec.counts()
	if opens != 0 || closes != 3 {
		t.Fatalf("opens=%d closes=%d, want 0 and 3", opens, closes)
	}
	for _, err := range rec.closes {
		if err == nil {
			t.Fatal("dial failures must carry an error")
		}
	}
}

func TestClientStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(wsURL(srv), discard(), WithReconnect(time.Millisecond, 5)).Run(ctx, rec)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if opens, _, _ := rec.counts(); opens == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("never opened")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
	opens, _, closes := rec.counts()
	if opens != 1 || closes != 1 || rec.closes[0] != nil {
		t.Fatalf("opens=%d closes=%v", opens, rec.closes)
	}
}
