package matchmaker

import (
	"github.com/chainmeet/chainmeet/pkg/api"
	"github.com/chainmeet/chainmeet/pkg/com"
	"github.com/chainmeet/chainmeet/pkg/logger"
	"github.com/chainmeet/chainmeet/pkg/network/websocket"
)

// Session is the server end of one participant transport.
type Session struct {
	id   com.Uid
	sock *websocket.WS
	log  *logger.Logger
}

func NewSession(id com.Uid, sock *websocket.WS, log *logger.Logger) *Session {
	return &Session{
		id:   id,
		sock: sock,
		log:  log.Wrap(log.With().Str("cid", id.Short())),
	}
}

func (s *Session) Id() com.Uid { return s.id }

// OnPacket sets the inbound packet handler. Packets are dispatched from
// the transport read pump, so handlers of one session run sequentially
// and in arrival order.
func (s *Session) OnPacket(fn func(in api.In)) {
	s.sock.OnMessage = func(message []byte, err error) {
		if err != nil {
			return
		}
		in, err := api.Decode(message)
		if err != nil {
			s.log.Error().Err(err).Msg("malformed packet")
			return
		}
		s.log.Debug().Str(logger.DirectionField, "←").Msgf("%v", in.T)
		fn(in)
	}
}

// Notify sends a message and goes further, best effort.
func (s *Session) Notify(t api.PT, payload any) {
	data, err := api.Encode(t, payload)
	if err != nil {
		s.log.Error().Err(err).Msgf("encode %v", t)
		return
	}
	s.log.Debug().Str(logger.DirectionField, "→").Msgf("%v", t)
	s.sock.Write(data)
}

func (s *Session) Listen() chan struct{} { return s.sock.Listen() }
func (s *Session) Close()                { s.sock.Close() }
