package matchmaker

import (
	"net/http"

	"github.com/chainmeet/chainmeet/pkg/api"
	"github.com/chainmeet/chainmeet/pkg/config"
	"github.com/chainmeet/chainmeet/pkg/logger"
	"github.com/chainmeet/chainmeet/pkg/network/httpx"
	"github.com/goccy/go-json"
)

func NewHTTPServer(conf config.ServerConfig, log *logger.Logger, hub *Hub) (*httpx.Server, error) {
	return httpx.NewServer(
		conf.Server.GetAddr(),
		func(*httpx.Server) http.Handler {
			h := http.NewServeMux()
			h.HandleFunc("/ws", hub.handleUserConnection)
			h.HandleFunc("/status", hub.handleStatus)
			return h
		},
		httpx.WithServerConfig(conf.Server),
		httpx.WithLogger(log),
	)
}

// handleStatus is a read-only counter endpoint polled by clients for
// the online display; it is not part of the matching protocol.
func (h *Hub) handleStatus(w http.ResponseWriter, _ *http.Request) {
	active, waiting := h.registry.Stats()
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(api.StatusResponse{
		Status:      "ok",
		ActiveUsers: active,
		QueueLength: waiting,
		OnlineCount: active,
	})
}
