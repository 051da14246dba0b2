// Package client implements the participant side of the matching
// protocol: the transport connection state machine and, in the peer
// subpackage, the per-match peer session controller.
package client

import (
	"errors"
	"net/url"
	"sync"

	"github.com/chainmeet/chainmeet/pkg/api"
	"github.com/chainmeet/chainmeet/pkg/config"
	"github.com/chainmeet/chainmeet/pkg/logger"
	"github.com/chainmeet/chainmeet/pkg/network/websocket"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrBusy         = errors.New("connection already in progress")
)

// Handlers are the application callbacks of the state machine. They run
// on the transport read pump, one at a time, in arrival order.
type Handlers struct {
	OnConnected   func(sessionId string)
	OnSearching   func()
	OnMatch       func(partnerId string)
	OnPartnerLeft func()
	OnSignal      func(n api.SignalNotice)
	OnChat        func(n api.ChatMessageNotice)
	OnError       func(message string)
}

// Connection drives one transport session to the matching server:
// idle → connecting → connected → {searching, matched} → disconnected.
// The machine is reusable across many matches within one transport and
// across reconnects.
type Connection struct {
	mu    sync.Mutex
	conf  config.Client
	sock  *websocket.WS
	state State

	id        string
	partner   string
	ice       []api.IceServer
	role      string
	interests []string
	// wantMatch auto-triggers a queue-join once the transport opens.
	wantMatch    bool
	transportErr bool

	h   Handlers
	log *logger.Logger
}

func New(conf config.Client, log *logger.Logger) *Connection {
	return &Connection{conf: conf, log: log, role: conf.Role, interests: conf.Interests}
}

// SetHandlers installs the application callbacks; call before Connect.
func (c *Connection) SetHandlers(h Handlers) { c.mu.Lock(); c.h = h; c.mu.Unlock() }

// Connect dials the matching server. The machine moves to connected
// only on the server's open acknowledgement (the init packet).
func (c *Connection) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle && c.state != Disconnected || c.sock != nil {
		return ErrBusy
	}
	addr, err := url.Parse(c.conf.ServerAddress)
	if err != nil {
		return err
	}
	sock, err := websocket.NewClient(*addr, c.log)
	if err != nil {
		c.state = Disconnected
		c.transportErr = true
		return err
	}
	c.sock = sock
	c.state = Connecting
	c.transportErr = false
	sock.OnMessage = c.onMessage
	done := sock.Listen()
	go func() {
		<-done
		c.onTransportClosed(sock)
	}()
	return nil
}

// Disconnect tears the transport down and resets the machine to idle,
// clearing all match state.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	sock := c.sock
	c.sock = nil
	c.state = Idle
	c.id, c.partner = "", ""
	c.wantMatch = false
	c.mu.Unlock()
	if sock != nil {
		sock.Close()
	}
}

// JoinQueue requests matching with the given preferences. When the
// transport is still connecting, the request is deferred until the
// open acknowledgement.
func (c *Connection) JoinQueue(role string, interests []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return ErrNotConnected
	}
	c.role, c.interests = role, interests
	c.wantMatch = true
	if c.state == Connecting {
		return nil
	}
	c.sendLocked(api.JoinQueue, api.JoinQueueRequest{Role: role, Interests: interests})
	return nil
}

// LeaveQueue cancels the search; idempotent.
func (c *Connection) LeaveQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wantMatch = false
	if c.sock == nil {
		return
	}
	c.sendLocked(api.LeaveQueue, nil)
	if c.state == Searching {
		c.state = Connected
	}
}

// NextMatch skips the current partner and re-enters matching with the
// previously submitted preferences. The local state is left alone until
// the server confirms: a throttled skip keeps the pairing on both ends,
// so the machine moves only on the searching or match-found packet.
func (c *Connection) NextMatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return
	}
	c.sendLocked(api.NextMatch, nil)
}

// Signal relays an opaque handshake envelope through the server.
func (c *Connection) Signal(rq api.SignalRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(api.Signal, rq)
}

// SendChat relays a text line to the current partner, best effort.
func (c *Connection) SendChat(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.partner == "" {
		return
	}
	c.sendLocked(api.ChatMessage, api.ChatMessageRequest{Message: message, To: c.partner})
}

func (c *Connection) State() State    { c.mu.Lock(); defer c.mu.Unlock(); return c.state }
func (c *Connection) Id() string      { c.mu.Lock(); defer c.mu.Unlock(); return c.id }
func (c *Connection) Partner() string { c.mu.Lock(); defer c.mu.Unlock(); return c.partner }
func (c *Connection) IceServers() []api.IceServer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ice
}

// TransportError reports whether the last disconnect was a transport
// failure rather than an explicit action.
func (c *Connection) TransportError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transportErr
}

func (c *Connection) sendLocked(t api.PT, payload any) {
	if c.sock == nil {
		return
	}
	data, err := api.Encode(t, payload)
	if err != nil {
		c.log.Error().Err(err).Msgf("encode %v", t)
		return
	}
	c.log.Debug().Str(logger.DirectionField, "→").Msgf("%v", t)
	c.sock.Write(data)
}

func (c *Connection) onTransportClosed(sock *websocket.WS) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock != sock {
		// explicit disconnect already reset the machine
		return
	}
	c.sock = nil
	c.state = Disconnected
	c.partner = ""
	c.wantMatch = false
	c.transportErr = true
	c.log.Warn().Msg("transport lost")
}

func (c *Connection) onMessage(message []byte, err error) {
	if err != nil {
		return
	}
	in, err := api.Decode(message)
	if err != nil {
		c.log.Error().Err(err).Msg("malformed packet")
		return
	}
	c.log.Debug().Str(logger.DirectionField, "←").Msgf("%v", in.T)
	c.handlePacket(in)
}

// handlePacket is the transition table of the state machine. It runs on
// the read pump, which guarantees arrival-order processing.
func (c *Connection) handlePacket(in api.In) {
	c.mu.Lock()
	h := c.h
	switch in.T {
	case api.Init:
		rq := api.Unwrap[api.InitRequest](in.Payload)
		if rq == nil || c.state != Connecting {
			c.mu.Unlock()
			return
		}
		c.id = rq.Id
		c.ice = rq.Ice
		c.state = Connected
		if c.wantMatch {
			c.sendLocked(api.JoinQueue, api.JoinQueueRequest{Role: c.role, Interests: c.interests})
		}
		c.mu.Unlock()
		if h.OnConnected != nil {
			h.OnConnected(rq.Id)
		}
	case api.Searching:
		// a rejoin or skip of a paired session lands here too
		if c.state == Connected || c.state == Matched || c.state == Disconnected {
			c.partner = ""
			c.state = Searching
		}
		c.mu.Unlock()
		if h.OnSearching != nil {
			h.OnSearching()
		}
	case api.MatchFound:
		rq := api.Unwrap[api.MatchFoundRequest](in.Payload)
		if rq == nil {
			c.mu.Unlock()
			return
		}
		c.partner = rq.PartnerId
		c.state = Matched
		c.mu.Unlock()
		if h.OnMatch != nil {
			h.OnMatch(rq.PartnerId)
		}
	case api.PartnerDisconnected:
		// no automatic re-search: a new queue-join must be explicit
		c.partner = ""
		c.wantMatch = false
		if c.state == Matched {
			c.state = Disconnected
		}
		c.mu.Unlock()
		if h.OnPartnerLeft != nil {
			h.OnPartnerLeft()
		}
	case api.SignalNotify:
		rq := api.Unwrap[api.SignalNotice](in.Payload)
		c.mu.Unlock()
		if rq != nil && h.OnSignal != nil {
			h.OnSignal(*rq)
		}
	case api.ChatNotify:
		rq := api.Unwrap[api.ChatMessageNotice](in.Payload)
		c.mu.Unlock()
		if rq != nil && h.OnChat != nil {
			h.OnChat(*rq)
		}
	case api.Error:
		rq := api.Unwrap[api.ErrorResponse](in.Payload)
		c.mu.Unlock()
		if rq != nil && h.OnError != nil {
			h.OnError(rq.Message)
		}
	default:
		c.mu.Unlock()
		c.log.Warn().Msgf("unhandled packet %v", in.T)
	}
}
