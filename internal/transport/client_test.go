package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeHuntServer struct {
	t        *testing.T
	upgrader websocket.Upgrader
	mu       sync.Mutex
	sessions int
	received []string
	script   func(session int, conn *websocket.Conn)
}

func newFakeHuntServer(t *testing.T, script func(session int, conn *websocket.Conn)) (*fakeHuntServer, *httptest.Server) {
	t.Helper()
	fake := &fakeHuntServer{t: t, script: script}
	server := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeHuntServer) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade: %v", err)
		return
	}
	defer conn.Close()
	f.mu.Lock()
	f.sessions++
	session := f.sessions
	f.mu.Unlock()
	f.script(session, conn)
}

func (f *fakeHuntServer) readInto(conn *websocket.Conn) {
	_, payload, err := conn.ReadMessage()
	if err != nil {
		return
	}
	f.mu.Lock()
	f.received = append(f.received, string(payload))
	f.mu.Unlock()
}

func (f *fakeHuntServer) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func websocketURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/hunt/puzzle/p1/"
}

func fastPolicy(closeCode int, attempts int) (time.Duration, bool) {
	if IsFatalCloseCode(closeCode) {
		return 0, false
	}
	return time.Millisecond, true
}

func closeWith(conn *websocket.Conn, code int) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
}

func TestClientStopsOnPolicyViolationClose(t *testing.T) {
	_, server := newFakeHuntServer(t, func(session int, conn *websocket.Conn) {
		closeWith(conn, websocket.ClosePolicyViolation)
	})

	var statuses []Status
	var mu sync.Mutex
	client, err := NewClient(Config{URL: websocketURL(server), Policy: fastPolicy}, Handlers{
		OnMessage: func(context.Context, []byte) error { return nil },
		OnStatus: func(status Status) {
			mu.Lock()
			statuses = append(statuses, status)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = client.Run(ctx)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || !transportErr.Fatal() {
		t.Fatalf("expected fatal transport error, got %v", err)
	}
	if transportErr.CloseCode() != websocket.ClosePolicyViolation {
		t.Fatalf("expected close code 1008, got %d", transportErr.CloseCode())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 2 || statuses[0] != StatusConnected || statuses[1] != StatusDisconnected {
		t.Fatalf("unexpected statuses %v", statuses)
	}
}

func TestClientReconnectsAndResetsAttempts(t *testing.T) {
	_, server := newFakeHuntServer(t, func(session int, conn *websocket.Conn) {
		switch session {
		case 1:
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"old_guesses","content":[]}`))
			closeWith(conn, websocket.CloseGoingAway)
		default:
			closeWith(conn, websocket.CloseInternalServerErr)
		}
	})

	var opens []ConnectionState
	var frames []string
	var mu sync.Mutex
	client, err := NewClient(Config{URL: websocketURL(server), Policy: fastPolicy}, Handlers{
		OnOpen: func(ctx context.Context, state ConnectionState) error {
			mu.Lock()
			opens = append(opens, state)
			mu.Unlock()
			return nil
		},
		OnMessage: func(ctx context.Context, frame []byte) error {
			mu.Lock()
			frames = append(frames, string(frame))
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = client.Run(ctx)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.CloseCode() != websocket.CloseInternalServerErr {
		t.Fatalf("expected fatal 1011 close, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(opens) != 2 {
		t.Fatalf("expected two opens, got %d", len(opens))
	}
	if opens[0].Reconnection || !opens[1].Reconnection {
		t.Fatalf("expected first open fresh and second a reconnection: %#v", opens)
	}
	if opens[1].Attempts != 0 {
		t.Fatalf("expected attempts reset on open, got %d", opens[1].Attempts)
	}
	if opens[0].ConnectionID == "" || opens[0].ConnectionID == opens[1].ConnectionID {
		t.Fatalf("expected distinct connection ids: %#v", opens)
	}
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %v", frames)
	}
	if client.State().LastCloseCode != websocket.CloseInternalServerErr {
		t.Fatalf("expected last close code 1011, got %d", client.State().LastCloseCode)
	}
}

func TestClientSendsFromOpenHandler(t *testing.T) {
	done := make(chan struct{})
	fake, server := newFakeHuntServer(t, nil)
	fake.script = func(session int, conn *websocket.Conn) {
		fake.readInto(conn)
		closeWith(conn, websocket.ClosePolicyViolation)
		close(done)
	}

	var client *Client
	client, err := NewClient(Config{URL: websocketURL(server), Policy: fastPolicy}, Handlers{
		OnOpen: func(ctx context.Context, state ConnectionState) error {
			return client.Send(ctx, map[string]string{"type": "guesses-plz", "from": "all"})
		},
		OnMessage: func(context.Context, []byte) error { return nil },
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.Run(ctx)
	<-done

	messages := fake.messages()
	if len(messages) != 1 || messages[0] != `{"from":"all","type":"guesses-plz"}` {
		t.Fatalf("unexpected outbound messages %v", messages)
	}
}

func TestClientHandlerErrorIsFatal(t *testing.T) {
	_, server := newFakeHuntServer(t, func(session int, conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","content":{"error":"boom"}}`))
		_, _, _ = conn.ReadMessage()
	})

	handlerErr := errors.New("server reported error")
	client, err := NewClient(Config{URL: websocketURL(server), Policy: fastPolicy}, Handlers{
		OnMessage: func(context.Context, []byte) error { return handlerErr },
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = client.Run(ctx)
	if !errors.Is(err, handlerErr) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestClientRunReturnsNilOnCancel(t *testing.T) {
	client, err := NewClient(Config{URL: "ws://127.0.0.1:1/ws/", Policy: func(int, int) (time.Duration, bool) {
		return time.Hour, true
	}}, Handlers{OnMessage: func(context.Context, []byte) error { return nil }})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- client.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return after cancel")
	}
	if client.State().Attempts == 0 {
		t.Fatalf("expected failed dial to count as an attempt")
	}
}

func TestSendWithoutConnection(t *testing.T) {
	client, err := NewClient(Config{URL: "ws://example.invalid/ws/"}, Handlers{
		OnMessage: func(context.Context, []byte) error { return nil },
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Send(context.Background(), map[string]string{"type": "unlocks-plz"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(Config{}, Handlers{OnMessage: func(context.Context, []byte) error { return nil }}); err == nil {
		t.Fatalf("expected url validation error")
	}
	if _, err := NewClient(Config{URL: "ws://localhost/ws/"}, Handlers{}); err == nil {
		t.Fatalf("expected handler validation error")
	}
}
