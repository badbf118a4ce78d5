package coordinator

import (
	"github.com/sketchcast/sketchcast/pkg/api"
	"github.com/sketchcast/sketchcast/pkg/logger"
	"github.com/sketchcast/sketchcast/pkg/network"
	"github.com/sketchcast/sketchcast/pkg/network/websocket"
	"golang.org/x/time/rate"
)

// User is a browser connection of the room.
type User struct {
	id      network.Uid
	sock    *websocket.WS
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewUser(sock *websocket.WS, limiter *rate.Limiter, log *logger.Logger) *User {
	id := network.NewUid()
	return &User{
		id:      id,
		sock:    sock,
		limiter: limiter,
		log:     log.Extend(log.With().Str(logger.ConnectionField, id.Short())),
	}
}

func (u *User) Id() network.Uid { return u.id }

// Write queues a frame, false means it was dropped.
func (u *User) Write(data []byte) bool { return u.sock.Write(data) }

// Allow reports whether one more inbound message fits the rate limit.
func (u *User) Allow() bool { return u.limiter == nil || u.limiter.Allow() }

func (u *User) Notify(out api.Out) bool {
	data, err := api.Encode(out)
	if err != nil {
		u.log.Error().Err(err).Msgf("couldn't encode %v", out.T)
		return false
	}
	return u.Write(data)
}

// Closed reports whether the connection is gone and can't take frames anymore.
func (u *User) Closed() bool { return u.sock.Closed() }

func (u *User) Disconnect() { u.sock.Close() }

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
