package room

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/sketchcast/sketchcast/pkg/api"
	"github.com/sketchcast/sketchcast/pkg/network"
)

var ErrUnknownTarget = errors.New("unknown target")

// DropFunc is called for each packet that didn't fit into the peer's queue.
type DropFunc func(to network.Uid, t api.PT)

// Router delivers packets to the registry members.
// Every packet is encoded once and put into FIFO peer queues,
// so the order of packets from one sender to one target holds.
type Router struct {
	reg    *Registry
	onDrop DropFunc
}

func NewRouter(reg *Registry, onDrop DropFunc) *Router {
	if onDrop == nil {
		onDrop = func(network.Uid, api.PT) {}
	}
	return &Router{reg: reg, onDrop: onDrop}
}

// Relay sends the opaque signal payload to the target only.
func (r *Router) Relay(sender, target network.Uid, payload json.RawMessage) error {
	m := r.reg.Get(target)
	if m == nil {
		return ErrUnknownTarget
	}
	return r.send(m, api.SignalPacket(sender, payload))
}

// Send delivers a packet to one member.
func (r *Router) Send(id network.Uid, out api.Out) error {
	m := r.reg.Get(id)
	if m == nil {
		return ErrUnknownTarget
	}
	return r.send(m, out)
}

func (r *Router) send(m *Member, out api.Out) error {
	data, err := api.Encode(out)
	if err != nil {
		return err
	}
	r.write(m, out.T, data)
	return nil
}

// BroadcastExcept sends the packet to everyone but the sender.
func (r *Router) BroadcastExcept(sender network.Uid, out api.Out) error {
	return r.broadcast(out, func(m *Member) bool { return m.Id != sender })
}

// BroadcastAll sends the packet to everyone, the sender included.
func (r *Router) BroadcastAll(out api.Out) error {
	return r.broadcast(out, func(*Member) bool { return true })
}

func (r *Router) broadcast(out api.Out, filter func(m *Member) bool) error {
	data, err := api.Encode(out)
	if err != nil {
		return err
	}
	for _, m := range r.reg.All() {
		if filter(m) {
			r.write(m, out.T, data)
		}
	}
	return nil
}

func (r *Router) write(m *Member, t api.PT, data []byte) {
	if m.peer == nil || !m.peer.Write(data) {
		r.onDrop(m.Id, t)
	}
}
