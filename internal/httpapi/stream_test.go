package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pitaka.app/internal/auth"
	"pitaka.app/internal/bank"
	"pitaka.app/internal/stream"
)

func newStreamEnv(t *testing.T) (*testEnv, *stream.Stream, *httptest.Server) {
	t.Helper()
	live := stream.New(8)
	svc, err := bank.NewService(bank.NewInMemory(), bank.WithPublisher(live))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	issuer, err := auth.NewIssuer("test-secret-0123456789", "pitaka-test", time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	h := New(svc, issuer, WithStream(live), WithRateLimit(1000, 1000)).Handler()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testEnv{t: t, handler: h, svc: svc}, live, srv
}

func waitSubscribers(t *testing.T, live *stream.Stream, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for live.Subscribers() < n {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber did not register")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamWSDeliversOwnEvents(t *testing.T) {
	env, live, srv := newStreamEnv(t)
	alice := env.register("alice@example.com", "Alice Reyes")
	bob := env.register("bob@example.com", "Bob Santos")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/stream/ws?access_token=" + alice.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitSubscribers(t, live, 1)

	env.deposit(bob, "50")
	env.deposit(alice, "75")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt bank.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if evt.OwnerID != alice.User.ID || evt.Amount != bank.Pesos(75) {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestStreamSSE(t *testing.T) {
	env, live, srv := newStreamEnv(t)
	alice := env.register("alice@example.com", "Alice Reyes")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/stream", nil)
	req.Header.Set("Authorization", "Bearer "+alice.Token)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	waitSubscribers(t, live, 1)

	env.deposit(alice, "10")

	sc := bufio.NewScanner(resp.Body)
	var sawEvent bool
	for sc.Scan() {
		line := sc.Text()
		if line == "event: "+string(bank.EventDeposit) {
			sawEvent = true
		}
		if sawEvent && strings.HasPrefix(line, "data: ") {
			if !strings.Contains(line, alice.User.ID) {
				t.Fatalf("event for another owner: %s", line)
			}
			return
		}
	}
	t.Fatalf("no deposit event received: %v", sc.Err())
}

func TestStreamRequiresToken(t *testing.T) {
	env, _, _ := newStreamEnv(t)
	rr, _ := env.do(http.MethodGet, "/v1/stream", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
