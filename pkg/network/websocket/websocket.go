package websocket

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/chainmeet/chainmeet/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 32 * 1024
	pongTime       = 60 * time.Second
	pingTime       = pongTime * 9 / 10
	writeWait      = 10 * time.Second
)

type MessageHandler func(message []byte, err error)

// WS wraps a websocket connection with serialized read/write pumps.
type WS struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	// wmu serializes frame writes: the close frame goes out from the
	// caller's goroutine while the write pump may be mid-write.
	wmu sync.Mutex

	// OnMessage is called for every inbound message from the read pump,
	// i.e. strictly in arrival order. Set it before Listen.
	OnMessage MessageHandler

	pingPong bool
	log      *logger.Logger
}

// NewServer upgrades an incoming request to a websocket transport.
func NewServer(w http.ResponseWriter, r *http.Request, u *Upgrader, log *logger.Logger) (*WS, error) {
	conn, err := u.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, true, log), nil
}

func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) *WS {
	return &WS{
		conn:     conn,
		send:     make(chan []byte),
		done:     make(chan struct{}),
		pingPong: pingPong,
		log:      log,
	}
}

// Listen starts the read/write pumps; the returned channel closes when
// the transport is gone.
func (ws *WS) Listen() chan struct{} {
	go ws.writer()
	go ws.reader()
	return ws.done
}

// Write queues a message for the write pump. Safe for concurrent use,
// no-op after the transport closed.
func (ws *WS) Write(data []byte) {
	select {
	case ws.send <- data:
	case <-ws.done:
	}
}

// Close sends a close frame and tears the transport down.
func (ws *WS) Close() {
	_ = ws.write(websocket.CloseMessage, []byte{})
	ws.shutdown()
}

func (ws *WS) Done() chan struct{} { return ws.done }

// reader pumps messages from the websocket connection to the OnMessage
// callback. Serializes all websocket reads.
func (ws *WS) reader() {
	defer ws.shutdown()
	ws.conn.SetReadLimit(maxMessageSize)
	if ws.pingPong {
		_ = ws.conn.SetReadDeadline(time.Now().Add(pongTime))
		ws.conn.SetPongHandler(func(string) error {
			return ws.conn.SetReadDeadline(time.Now().Add(pongTime))
		})
	}
	for {
		_, message, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Debug().Err(err).Msg("ws read")
			}
			return
		}
		if ws.OnMessage != nil {
			ws.OnMessage(message, nil)
		}
	}
}

// writer pumps messages from the send channel to the websocket
// connection. Serializes all websocket writes.
func (ws *WS) writer() {
	var ping <-chan time.Time
	if ws.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer ws.shutdown()
	for {
		select {
		case message := <-ws.send:
			if err := ws.write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ping:
			if err := ws.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ws.done:
			return
		}
	}
}

func (ws *WS) write(t int, mess []byte) error {
	ws.wmu.Lock()
	defer ws.wmu.Unlock()
	if err := ws.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.conn.WriteMessage(t, mess)
}

func (ws *WS) shutdown() {
	ws.once.Do(func() {
		_ = ws.conn.Close()
		close(ws.done)
	})
}
