package websocket

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sketchcast/sketchcast/pkg/logger"
)

const (
	maxMessageSize = 64 * 1024
	sendQueueSize  = 256
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
	closeWait      = 2 * time.Second
)

type WS struct {
	conn deadlinedConn
	send chan []byte
	quit chan struct{}

	OnMessage WSMessageHandler

	pingPong  bool
	readLimit int64
	listening atomic.Bool

	stop     sync.Once
	shutdown sync.WaitGroup
	Done     chan struct{}

	log *logger.Logger
}

type WSMessageHandler func(message []byte, err error)

type Option func(ws *WS)

// WithQueue sets the size of the outbound message queue.
func WithQueue(size int) Option {
	return func(ws *WS) {
		if size > 0 {
			ws.send = make(chan []byte, size)
		}
	}
}

func WithReadLimit(limit int64) Option {
	return func(ws *WS) {
		if limit > 0 {
			ws.readLimit = limit
		}
	}
}

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		WriteBufferPool: &sync.Pool{},
		CheckOrigin:     func(r *http.Request) bool { return true },
	},
}

// NewUpgrader makes an upgrader that accepts only the listed origins.
// An empty list or "*" accepts any origin.
func NewUpgrader(origins []string) *Upgrader {
	u := DefaultUpgrader
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return &u
		}
		allowed[strings.TrimSuffix(strings.ToLower(o), "/")] = struct{}{}
	}
	if len(allowed) == 0 {
		return &u
	}
	u.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
	return &u
}

// NewServerWithConn wraps an upgraded server side connection.
func NewServerWithConn(conn *websocket.Conn, log *logger.Logger, opts ...Option) *WS {
	return newSocket(conn, true, log, opts...)
}

func NewClient(address url.URL, log *logger.Logger, opts ...Option) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log, opts...), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger, opts ...Option) *WS {
	if log == nil {
		log = logger.Nop()
	}
	ws := &WS{
		conn:      deadlinedConn{sock: conn, wt: writeWait},
		send:      make(chan []byte, sendQueueSize),
		quit:      make(chan struct{}),
		OnMessage: func([]byte, error) {},
		pingPong:  pingPong,
		readLimit: maxMessageSize,
		Done:      make(chan struct{}),
		log:       log,
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

// Listen starts the read and write pumps.
// The returned channel is closed when the connection is gone.
func (ws *WS) Listen() chan struct{} {
	if ws.listening.Swap(true) {
		return ws.Done
	}
	ws.shutdown.Add(2)
	go ws.writer()
	go ws.reader()
	go func() {
		ws.shutdown.Wait()
		_ = ws.conn.close()
		close(ws.Done)
	}()
	return ws.Done
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		ws.halt()
		ws.shutdown.Done()
		ws.log.Debug().Msg("WS reader closed")
	}()
	ws.conn.setup(func(conn *websocket.Conn) {
		conn.SetReadLimit(ws.readLimit)
		if ws.pingPong {
			_ = conn.SetReadDeadline(time.Now().Add(pongTime))
			conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongTime)) })
		}
	})
	for {
		message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Warn().Err(err).Msg("WS read")
			}
			return
		}
		ws.OnMessage(message, nil)
	}
}

// writer pumps messages from the send queue to the websocket connection.
// Serializes all websocket writes.
func (ws *WS) writer() {
	var ping <-chan time.Time
	if ws.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer func() {
		ws.halt()
		ws.shutdown.Done()
		ws.log.Debug().Msg("WS writer closed")
	}()
	for {
		select {
		case message := <-ws.send:
			if err := ws.conn.write(websocket.TextMessage, message); err != nil {
				ws.log.Warn().Err(err).Msg("WS write")
				return
			}
		case <-ping:
			if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ws.quit:
			return
		}
	}
}

// Write queues the message without blocking.
// It returns false if the queue is full or the connection is closed.
func (ws *WS) Write(data []byte) bool {
	select {
	case <-ws.quit:
		return false
	default:
	}
	select {
	case ws.send <- data:
		return true
	default:
		return false
	}
}

// Close starts the closing handshake, the pumps exit
// when the other side answers or the wait is over.
func (ws *WS) Close() {
	_ = ws.conn.control(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if !ws.listening.Load() {
		ws.halt()
		_ = ws.conn.close()
		return
	}
	_ = ws.conn.sock.SetReadDeadline(time.Now().Add(closeWait))
}

func (ws *WS) halt() { ws.stop.Do(func() { close(ws.quit) }) }

// Closed reports whether the pumps are stopped.
func (ws *WS) Closed() bool {
	select {
	case <-ws.quit:
		return true
	default:
		return false
	}
}

func (ws *WS) RemoteAddr() string { return ws.conn.sock.RemoteAddr().String() }
