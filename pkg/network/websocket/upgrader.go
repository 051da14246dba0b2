package websocket

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteBufferPool: &sync.Pool{},
	},
}

// NewUpgrader restricts transport upgrades to the given origin;
// * allows any origin, an empty value keeps the same-origin default.
func NewUpgrader(origin string) *Upgrader {
	u := DefaultUpgrader
	switch origin {
	case "*":
		u.CheckOrigin = func(r *http.Request) bool { return true }
	case "":
	default:
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	}
	return &u
}
