package coordinator

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/sketchcast/sketchcast/pkg/api"
	"github.com/sketchcast/sketchcast/pkg/config"
	"github.com/sketchcast/sketchcast/pkg/ice"
	"github.com/sketchcast/sketchcast/pkg/logger"
	"github.com/sketchcast/sketchcast/pkg/network"
	"github.com/sketchcast/sketchcast/pkg/network/websocket"
	"github.com/sketchcast/sketchcast/pkg/room"
)

type joinRq struct {
	user *User
	done chan error
}

// packet is an inbound request or, with leave set, the close of the connection.
// Both share one queue so a connection's close never overtakes its last requests.
type packet struct {
	id    network.Uid
	rq    api.Request
	leave bool
}

// Hub serializes every change of the room in its Run loop.
type Hub struct {
	conf     config.Room
	limits   api.Limits
	upgrader *websocket.Upgrader
	room     *room.Room

	// owned by Run
	users map[network.Uid]*User

	join    chan joinRq
	packets chan packet
	stopped chan struct{}

	size        atomic.Int64
	broadcaster atomic.Bool

	log *logger.Logger
}

func NewHub(conf config.CoordinatorConfig, log *logger.Logger) *Hub {
	h := &Hub{
		conf: conf.Room,
		limits: api.Limits{
			MaxNameLength: conf.Room.MaxNameLength,
			MaxChatLength: conf.Room.MaxChatLength,
		},
		upgrader: websocket.NewUpgrader(conf.Coordinator.Origin),
		users:    make(map[network.Uid]*User),
		join:     make(chan joinRq),
		packets:  make(chan packet, 256),
		stopped:  make(chan struct{}),
		log:      log,
	}
	if h.limits.MaxNameLength <= 0 {
		h.limits.MaxNameLength = api.DefaultLimits.MaxNameLength
	}
	if h.limits.MaxChatLength <= 0 {
		h.limits.MaxChatLength = api.DefaultLimits.MaxChatLength
	}
	h.room = room.New(room.Options{
		Assign:    room.AssignMode(conf.Room.Assign),
		Promote:   conf.Room.Promote,
		Roster:    conf.Room.Roster,
		Anonymous: conf.Room.Anonymous,
		Ice:       ice.Expand(conf.Webrtc.IceServers, ice.Replacement{From: ice.HostPlaceholder, To: conf.Coordinator.PublicHost}),
		OnDrop:    h.onDrop,
	}, log)
	return h
}

// Run applies connection events to the room one at a time
// until the context is cancelled, then closes all the connections.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case rq := <-h.join:
			rq.done <- h.addUser(rq.user)
		case p := <-h.packets:
			if p.leave {
				h.removeUser(p.id)
			} else {
				h.handle(p)
			}
		}
		h.updateStats()
	}
}

func (h *Hub) addUser(u *User) error {
	role, err := h.room.Join(u)
	if err != nil {
		return err
	}
	h.users[u.Id()] = u
	u.log.Info().Str("role", string(role)).Msgf("Joined, total %v", h.room.Size())
	return nil
}

func (h *Hub) handle(p packet) {
	err := h.room.Handle(p.id, p.rq)
	switch {
	case err == nil:
		messagesTotal.WithLabelValues(p.rq.Type().String()).Inc()
		h.log.Debug().Str(logger.ConnectionField, p.id.Short()).Msgf("%v", p.rq.Type())
	case errors.Is(err, room.ErrUnknownTarget):
		droppedTotal.WithLabelValues(dropUnknown).Inc()
		h.log.Debug().Err(err).Msg("No signal target")
	case errors.Is(err, room.ErrNotJoined):
		h.log.Debug().Err(err).Msg("Late packet")
	default:
		h.log.Warn().Err(err).Msg("Packet fail")
	}
}

func (h *Hub) removeUser(id network.Uid) {
	u, ok := h.users[id]
	if !ok {
		return
	}
	delete(h.users, id)
	if h.room.Leave(id) {
		u.log.Info().Msgf("Left, total %v", h.room.Size())
	}
}

func (h *Hub) closeAll() {
	for id, u := range h.users {
		u.Disconnect()
		h.room.Leave(id)
		delete(h.users, id)
	}
	h.updateStats()
	h.log.Info().Msg("All users disconnected")
}

func (h *Hub) updateStats() {
	size := h.room.Size()
	_, ok := h.room.Broadcaster()
	h.size.Store(int64(size))
	h.broadcaster.Store(ok)
	connections.Set(float64(size))
	if ok {
		broadcasterPresent.Set(1)
	} else {
		broadcasterPresent.Set(0)
	}
}

func (h *Hub) onDrop(to network.Uid, t api.PT) {
	if u, ok := h.users[to]; ok && u.Closed() {
		droppedTotal.WithLabelValues(dropClosed).Inc()
		h.log.Debug().Str(logger.ConnectionField, to.Short()).Msgf("Closed, %v dropped", t)
		return
	}
	droppedTotal.WithLabelValues(dropQueueFull).Inc()
	h.log.Warn().Str(logger.ConnectionField, to.Short()).Msgf("Send queue is full, %v dropped", t)
}

// Size returns the number of connections after the last applied event.
func (h *Hub) Size() int { return int(h.size.Load()) }

func (h *Hub) HasBroadcaster() bool { return h.broadcaster.Load() }

func (h *Hub) submitJoin(u *User) error {
	rq := joinRq{user: u, done: make(chan error, 1)}
	select {
	case h.join <- rq:
	case <-h.stopped:
		return errStopped
	}
	return <-rq.done
}

func (h *Hub) submit(p packet) {
	select {
	case h.packets <- p:
	case <-h.stopped:
	}
}

func (h *Hub) submitLeave(id network.Uid) { h.submit(packet{id: id, leave: true}) }

var errStopped = errors.New("hub is stopped")

// handleWebsocket handles all connections from browsers.
func (h *Hub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			h.log.Error().Msgf("Something wrong. Recovered in %v", err)
		}
	}()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	sock := websocket.NewServerWithConn(conn, h.log,
		websocket.WithQueue(h.conf.SendQueue),
		websocket.WithReadLimit(h.conf.MaxMessageSize),
	)
	u := NewUser(sock, newLimiter(h.conf.RateLimit, h.conf.RateBurst), h.log)
	sock.OnMessage = func(data []byte, _ error) { h.onMessage(u, data) }

	if err := h.submitJoin(u); err != nil {
		if errors.Is(err, room.ErrDuplicateId) {
			u.log.Error().Err(err).Msg("Rejected")
		} else {
			u.log.Debug().Err(err).Msg("Rejected")
		}
		u.Disconnect()
		return
	}
	u.log.Debug().Msgf("Connected from %v", sock.RemoteAddr())

	<-sock.Listen()
	h.submitLeave(u.Id())
}

func (h *Hub) onMessage(u *User, data []byte) {
	if !u.Allow() {
		droppedTotal.WithLabelValues(dropRateLimited).Inc()
		u.Notify(api.ErrorPacket(api.ErrorResponse{
			Code:    api.ErrCodeRateLimited,
			Message: "slow down",
		}))
		return
	}
	rq, err := api.Decode(data, h.limits)
	if err != nil {
		droppedTotal.WithLabelValues(dropMalformed).Inc()
		u.log.Debug().Err(err).Msg("Bad packet")
		u.Notify(api.ErrorPacket(api.ErrorResponse{
			Code:    api.ErrCodeMalformed,
			Message: err.Error(),
		}))
		return
	}
	h.submit(packet{id: u.Id(), rq: rq})
}
