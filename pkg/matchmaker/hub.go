package matchmaker

import (
	"net"
	"net/http"
	"strings"

	"github.com/chainmeet/chainmeet/pkg/api"
	"github.com/chainmeet/chainmeet/pkg/com"
	"github.com/chainmeet/chainmeet/pkg/config"
	"github.com/chainmeet/chainmeet/pkg/logger"
	"github.com/chainmeet/chainmeet/pkg/match"
	"github.com/chainmeet/chainmeet/pkg/network/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// Hub owns the registry and every live participant transport.
type Hub struct {
	conf     config.ServerConfig
	registry *match.Registry
	sessions com.Map[com.Uid, *Session]
	upgrader *websocket.Upgrader
	ice      []api.IceServer
	metrics  *metrics
	log      *logger.Logger
}

func NewHub(conf config.ServerConfig, log *logger.Logger) *Hub {
	return newHub(conf, log, prometheus.DefaultRegisterer)
}

func newHub(conf config.ServerConfig, log *logger.Logger, reg prometheus.Registerer) *Hub {
	ice := make([]api.IceServer, len(conf.Webrtc.IceServers))
	for i, s := range conf.Webrtc.IceServers {
		ice[i] = api.IceServer{Urls: s.Urls, Username: s.Username, Credential: s.Credential}
	}
	return &Hub{
		conf:     conf,
		registry: match.NewRegistry(conf.Matching),
		sessions: com.NewMap[com.Uid, *Session](),
		upgrader: websocket.NewUpgrader(conf.Server.Origin),
		ice:      ice,
		metrics:  newMetrics(reg),
		log:      log,
	}
}

// handleUserConnection serves one participant transport end to end.
// The per-origin cap is enforced here, before the upgrade, so excess
// connections are refused at connection time.
func (h *Hub) handleUserConnection(w http.ResponseWriter, r *http.Request) {
	id := com.NewUid()
	origin := remoteOrigin(r)
	if err := h.registry.Register(id, origin); err != nil {
		h.metrics.rejects.WithLabelValues("origin_limit").Inc()
		h.log.Warn().Str("origin", origin).Err(err).Msg("connection refused")
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	conn, err := websocket.NewServer(w, r, h.upgrader, h.log)
	if err != nil {
		h.registry.Remove(id)
		h.log.Error().Err(err).Msg("upgrade fail")
		return
	}

	usr := NewSession(id, conn, h.log)
	h.sessions.Put(id, usr)
	usr.OnPacket(func(in api.In) { h.route(usr, in) })
	done := usr.Listen()
	usr.Notify(api.Init, api.InitRequest{Id: id.String(), Ice: h.ice})
	h.syncStats()

	<-done
	h.disconnect(usr)
}

// disconnect cascades a transport loss: the session leaves the
// registry and the pool, and an abandoned partner gets notified.
func (h *Hub) disconnect(usr *Session) {
	h.sessions.RemoveByKey(usr.Id())
	if dropped := h.registry.Remove(usr.Id()); !dropped.IsEmpty() {
		h.notify(dropped, api.PartnerDisconnected, nil)
	}
	h.syncStats()
	usr.log.Debug().Msg("disconnect")
}

// notify is a best-effort send to a session by id.
func (h *Hub) notify(id com.Uid, t api.PT, payload any) {
	if s, err := h.sessions.Find(id); err == nil {
		s.Notify(t, payload)
	}
}

func (h *Hub) syncStats() {
	active, waiting := h.registry.Stats()
	h.metrics.sessions.Set(float64(active))
	h.metrics.waiting.Set(float64(waiting))
}

// remoteOrigin derives the network origin of a connection for the
// per-origin admission cap.
func remoteOrigin(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
