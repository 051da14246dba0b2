// Package peer drives one peer transport per match: negotiation,
// media, and the in-band chat channel.
package peer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainmeet/chainmeet/pkg/api"
	"github.com/chainmeet/chainmeet/pkg/config"
	"github.com/chainmeet/chainmeet/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

var ErrNoSession = errors.New("no peer session")

type State uint8

const (
	None State = iota
	Negotiating
	Connected
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case None:
		return "none"
	case Negotiating:
		return "negotiating"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Relay carries handshake envelopes to the partner; the matchmaker
// connection implements it.
type Relay interface {
	Signal(rq api.SignalRequest)
}

// Initiator decides which side of a match opens the handshake. Both
// sides compute it from the same pair of ids, so exactly one initiates.
func Initiator(selfId, partnerId string) bool { return selfId < partnerId }

// Controller owns at most one peer connection at a time. Starting a new
// session tears the previous one down first. Local tracks are borrowed
// from the caller and never stopped here.
type Controller struct {
	api     *webrtc.API
	conf    config.Webrtc
	timeout time.Duration
	relay   Relay
	log     *logger.Logger

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	dc      *webrtc.DataChannel
	partner string
	state   State
	timer   *time.Timer

	OnRemoteTrack func(track *webrtc.TrackRemote)
	OnChat        func(message string)
	OnStateChange func(s State)
}

func NewController(conf config.Webrtc, timeout time.Duration, relay Relay, log *logger.Logger) (*Controller, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, err
	}
	settings := webrtc.SettingEngine{}
	settings.LoggerFactory = logger.NewPionLogger(log, conf.LogLevel)
	return &Controller{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(m),
			webrtc.WithInterceptorRegistry(i),
			webrtc.WithSettingEngine(settings),
		),
		conf:    conf,
		timeout: timeout,
		relay:   relay,
		log:     log,
	}, nil
}

func (c *Controller) State() State    { c.mu.Lock(); defer c.mu.Unlock(); return c.state }
func (c *Controller) Partner() string { c.mu.Lock(); defer c.mu.Unlock(); return c.partner }

// Start opens a new peer session towards the partner. The lower session
// id initiates; the other side waits for the offer. A session that is
// not connected within the timeout is marked failed.
func (c *Controller) Start(selfId, partnerId string, ice []api.IceServer, local []webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()

	pc, err := c.api.NewPeerConnection(webrtc.Configuration{ICEServers: iceConfig(ice)})
	if err != nil {
		return err
	}
	for _, track := range local {
		if _, err = pc.AddTrack(track); err != nil {
			_ = pc.Close()
			return err
		}
	}
	c.pc = pc
	c.partner = partnerId
	c.state = Negotiating
	log := c.log.With().Str("peer", partnerId).Logger()

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Debug().Msgf("remote track %v", track.Kind())
		if cb := c.OnRemoteTrack; cb != nil {
			cb(track)
		}
	})
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		data, err := json.Marshal(candidate.ToJSON())
		if err != nil {
			log.Error().Err(err).Msg("candidate encode fail")
			return
		}
		// trickle: candidates go out as they are gathered
		c.relay.Signal(api.SignalRequest{Target: partnerId, Kind: api.SignalCandidate, Candidate: data})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug().Msgf("peer state %v", state)
		switch state {
		case webrtc.PeerConnectionStateConnected:
			c.setState(pc, Connected)
		case webrtc.PeerConnectionStateFailed:
			c.setState(pc, Failed)
		}
	})
	pc.OnDataChannel(func(d *webrtc.DataChannel) {
		c.mu.Lock()
		if c.pc == pc {
			c.dc = d
		}
		c.mu.Unlock()
		c.bindChat(d)
	})

	c.timer = time.AfterFunc(c.timeout, func() {
		c.mu.Lock()
		stale := c.pc != pc || c.state != Negotiating
		if !stale {
			c.state = Failed
		}
		c.mu.Unlock()
		if stale {
			return
		}
		log.Warn().Msgf("negotiation timed out after %v", c.timeout)
		if cb := c.OnStateChange; cb != nil {
			cb(Failed)
		}
	})

	if !Initiator(selfId, partnerId) {
		return nil
	}
	dc, err := pc.CreateDataChannel("chat", nil)
	if err != nil {
		return err
	}
	c.dc = dc
	c.bindChat(dc)
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err = pc.SetLocalDescription(offer); err != nil {
		return err
	}
	sdp, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	c.relay.Signal(api.SignalRequest{Target: partnerId, Kind: api.SignalOffer, SDP: sdp})
	return nil
}

// HandleSignal feeds a forwarded handshake envelope into the current
// session. Envelopes from anyone but the current partner are dropped.
func (c *Controller) HandleSignal(n api.SignalNotice) error {
	c.mu.Lock()
	pc := c.pc
	if pc == nil || n.Sender != c.partner {
		c.mu.Unlock()
		c.log.Debug().Msgf("stale signal %v from %v", n.Kind, n.Sender)
		return nil
	}
	partner := c.partner
	c.mu.Unlock()

	switch n.Kind {
	case api.SignalOffer:
		var offer webrtc.SessionDescription
		if err := json.Unmarshal(n.SDP, &offer); err != nil {
			return err
		}
		if err := pc.SetRemoteDescription(offer); err != nil {
			return err
		}
		answer, err := pc.CreateAnswer(nil)
		if err != nil {
			return err
		}
		if err = pc.SetLocalDescription(answer); err != nil {
			return err
		}
		sdp, err := json.Marshal(answer)
		if err != nil {
			return err
		}
		c.relay.Signal(api.SignalRequest{Target: partner, Kind: api.SignalAnswer, SDP: sdp})
		return nil
	case api.SignalAnswer:
		var answer webrtc.SessionDescription
		if err := json.Unmarshal(n.SDP, &answer); err != nil {
			return err
		}
		return pc.SetRemoteDescription(answer)
	case api.SignalCandidate:
		var candidate webrtc.ICECandidateInit
		if err := json.Unmarshal(n.Candidate, &candidate); err != nil {
			return err
		}
		return pc.AddICECandidate(candidate)
	default:
		return fmt.Errorf("unknown signal kind %q", n.Kind)
	}
}

// SendChat pushes a text line over the in-band chat channel.
func (c *Controller) SendChat(message string) error {
	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()
	if dc == nil {
		return ErrNoSession
	}
	return dc.SendText(message)
}

// Close tears the current session down. Borrowed local tracks stay
// alive for the next session.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Controller) closeLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if pc := c.pc; pc != nil {
		// mute callbacks so teardown does not fire stale transitions
		pc.OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {})
		pc.OnICECandidate(func(*webrtc.ICECandidate) {})
		pc.OnConnectionStateChange(func(webrtc.PeerConnectionState) {})
		pc.OnDataChannel(func(*webrtc.DataChannel) {})
		if err := pc.Close(); err != nil {
			c.log.Error().Err(err).Msg("peer close fail")
		}
		c.state = Closed
	}
	c.pc = nil
	c.dc = nil
	c.partner = ""
}

func (c *Controller) setState(pc *webrtc.PeerConnection, s State) {
	c.mu.Lock()
	if c.pc != pc {
		c.mu.Unlock()
		return
	}
	c.state = s
	if s == Connected && c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	if cb := c.OnStateChange; cb != nil {
		cb(s)
	}
}

func (c *Controller) bindChat(d *webrtc.DataChannel) {
	d.OnMessage(func(msg webrtc.DataChannelMessage) {
		if cb := c.OnChat; cb != nil {
			cb(string(msg.Data))
		}
	})
}

func iceConfig(servers []api.IceServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		ice := webrtc.ICEServer{URLs: []string{s.Urls}}
		if s.Username != "" {
			ice.Username = s.Username
			ice.Credential = s.Credential
		}
		out = append(out, ice)
	}
	return out
}
