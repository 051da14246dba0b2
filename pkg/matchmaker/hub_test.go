package matchmaker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chainmeet/chainmeet/pkg/api"
	"github.com/chainmeet/chainmeet/pkg/config"
	"github.com/chainmeet/chainmeet/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

func testHub(t *testing.T, conf config.Matching) *httptest.Server {
	t.Helper()
	hub := newHub(config.ServerConfig{
		Server:   config.Server{Origin: "*"},
		Matching: conf,
	}, logger.Default(), prometheus.NewRegistry())
	srv := httptest.NewServer(http.HandlerFunc(hub.handleUserConnection))
	t.Cleanup(srv.Close)
	return srv
}

type testUser struct {
	conn *websocket.Conn
	id   string
}

func dial(t *testing.T, srv *httptest.Server) *testUser {
	t.Helper()
	addr := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	u := &testUser{conn: conn}
	init := api.Unwrap[api.InitRequest](u.next(t, api.Init).Payload)
	if init == nil || init.Id == "" {
		t.Fatal("no session id in the init packet")
	}
	u.id = init.Id
	return u
}

func (u *testUser) send(t *testing.T, pt api.PT, payload any) {
	t.Helper()
	data, err := api.Encode(pt, payload)
	if err != nil {
		t.Fatal(err)
	}
	if err = u.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatal(err)
	}
}

// next reads packets until one of the wanted type arrives.
func (u *testUser) next(t *testing.T, pt api.PT) api.In {
	t.Helper()
	_ = u.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := u.conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %v: %v", pt, err)
		}
		in, err := api.Decode(data)
		if err != nil {
			t.Fatal(err)
		}
		if in.T == pt {
			return in
		}
	}
}

func TestHubMatchFlow(t *testing.T) {
	srv := testHub(t, config.Matching{MaxSessionsPerOrigin: 10, JoinCooldown: time.Second})
	u1 := dial(t, srv)
	u2 := dial(t, srv)

	u1.send(t, api.JoinQueue, api.JoinQueueRequest{Interests: []string{"defi"}})
	u1.next(t, api.Searching)

	u2.send(t, api.JoinQueue, api.JoinQueueRequest{Interests: []string{"defi"}})
	m1 := api.Unwrap[api.MatchFoundRequest](u1.next(t, api.MatchFound).Payload)
	m2 := api.Unwrap[api.MatchFoundRequest](u2.next(t, api.MatchFound).Payload)
	if m1 == nil || m2 == nil || m1.PartnerId != u2.id || m2.PartnerId != u1.id {
		t.Fatalf("broken pairing: %+v %+v", m1, m2)
	}

	// opaque handshake relay
	u1.send(t, api.Signal, api.SignalRequest{Target: u2.id, Kind: api.SignalOffer, SDP: []byte(`{"type":"offer"}`)})
	sig := api.Unwrap[api.SignalNotice](u2.next(t, api.SignalNotify).Payload)
	if sig == nil || sig.Sender != u1.id || sig.Kind != api.SignalOffer {
		t.Fatalf("broken relay: %+v", sig)
	}

	u2.send(t, api.ChatMessage, api.ChatMessageRequest{To: u1.id, Message: "gm"})
	chat := api.Unwrap[api.ChatMessageNotice](u1.next(t, api.ChatNotify).Payload)
	if chat == nil || chat.From != u2.id || chat.Message != "gm" {
		t.Fatalf("broken chat relay: %+v", chat)
	}

	// transport loss cascades to the partner
	_ = u2.conn.Close()
	u1.next(t, api.PartnerDisconnected)
}

func TestHubJoinCooldown(t *testing.T) {
	srv := testHub(t, config.Matching{MaxSessionsPerOrigin: 10, JoinCooldown: time.Minute})
	u := dial(t, srv)

	u.send(t, api.JoinQueue, api.JoinQueueRequest{})
	u.next(t, api.Searching)
	u.send(t, api.JoinQueue, api.JoinQueueRequest{})
	u.next(t, api.Error)
}

func TestHubOriginCap(t *testing.T) {
	srv := testHub(t, config.Matching{MaxSessionsPerOrigin: 1, JoinCooldown: time.Second})
	dial(t, srv)

	addr := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(addr, nil)
	if err == nil {
		t.Fatal("expected a refused connection")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %+v", resp)
	}
}

func TestRemoteOrigin(t *testing.T) {
	tests := []struct {
		name string
		fwd  string
		addr string
		want string
	}{
		{name: "direct", addr: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "forwarded", fwd: "203.0.113.7", addr: "10.0.0.1:5555", want: "203.0.113.7"},
		{name: "forwarded chain", fwd: "203.0.113.7, 10.0.0.1", addr: "10.0.0.2:5555", want: "203.0.113.7"},
		{name: "no port", addr: "10.0.0.1", want: "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.RemoteAddr = tt.addr
			if tt.fwd != "" {
				r.Header.Set("X-Forwarded-For", tt.fwd)
			}
			if got := remoteOrigin(r); got != tt.want {
				t.Errorf("remoteOrigin() = %q, want %q", got, tt.want)
			}
		})
	}
}
