// Package room implements the state of the single shared room:
// who is connected, who broadcasts, and where packets go.
//
// Nothing here is safe for concurrent use. The room is owned by one
// dispatcher goroutine that applies connection events one at a time,
// which is what keeps the one-broadcaster rule intact.
package room

import (
	"errors"
	"fmt"

	"github.com/sketchcast/sketchcast/pkg/api"
	"github.com/sketchcast/sketchcast/pkg/logger"
	"github.com/sketchcast/sketchcast/pkg/network"
)

// AssignMode selects when a connection gets its role.
type AssignMode string

const (
	AssignOnConnect  AssignMode = "connect"
	AssignOnUsername AssignMode = "username"
)

type Options struct {
	Assign AssignMode
	// Promote hands the broadcaster role to the oldest viewer
	// when the broadcaster leaves, otherwise the role waits for a newcomer.
	Promote   bool
	Roster    bool
	Anonymous string
	Ice       []api.IceServer
	OnDrop    DropFunc
}

const DefaultAnonymous = "anonymous"

var ErrNotJoined = errors.New("not joined")

type Room struct {
	reg    *Registry
	roles  *Roles
	router *Router
	opts   Options
	log    *logger.Logger
}

func New(opts Options, log *logger.Logger) *Room {
	if opts.Assign == "" {
		opts.Assign = AssignOnConnect
	}
	if opts.Anonymous == "" {
		opts.Anonymous = DefaultAnonymous
	}
	if log == nil {
		log = logger.Nop()
	}
	reg := NewRegistry()
	return &Room{
		reg:    reg,
		roles:  NewRoles(reg),
		router: NewRouter(reg, opts.OnDrop),
		opts:   opts,
		log:    log,
	}
}

// Join registers a new connection and, depending on the mode, assigns its role.
func (r *Room) Join(peer Peer) (api.Role, error) {
	id := peer.Id()
	if err := r.reg.Add(id, peer); err != nil {
		return api.Unassigned, fmt.Errorf("join %v: %w", id, err)
	}
	role := api.Unassigned
	if r.opts.Assign == AssignOnConnect {
		role = r.assign(id)
	} else {
		r.notifyRole(id, role)
	}
	r.updateRoster()
	return role, nil
}

// Handle applies one inbound request of a joined connection.
func (r *Room) Handle(id network.Uid, rq api.Request) error {
	m := r.reg.Get(id)
	if m == nil {
		return fmt.Errorf("%v from %v: %w", rq.Type(), id, ErrNotJoined)
	}

	switch rq := rq.(type) {
	case *api.SetUsernameRequest:
		r.reg.SetName(id, rq.Name)
		r.log.Info().Str("id", id.String()).Str("name", rq.Name).Msg("Username")
		if m.Role == api.Unassigned {
			r.assign(id)
		}
		r.updateRoster()
		return nil
	case *api.SignalRequest:
		err := r.router.Relay(id, rq.TargetId, rq.Payload)
		if errors.Is(err, ErrUnknownTarget) {
			_ = r.router.Send(id, api.ErrorPacket(api.ErrorResponse{
				Code:    api.ErrCodeUnknownTarget,
				Message: rq.TargetId.String(),
				T:       api.Signal,
			}))
			return fmt.Errorf("signal %v -> %v: %w", id, rq.TargetId, err)
		}
		return err
	case *api.ChatMessageRequest:
		name := m.Name
		if name == "" {
			name = r.opts.Anonymous
		}
		return r.router.BroadcastAll(api.ChatMessagePacket(name, rq.Text))
	case *api.DrawingRequest:
		return r.router.BroadcastExcept(id, api.DrawingPacket(rq.Raw))
	case *api.ClearCanvasRequest:
		return r.router.BroadcastExcept(id, api.ClearCanvasPacket())
	default:
		return fmt.Errorf("%w: unsupported request %T", api.ErrMalformed, rq)
	}
}

// Leave removes the connection. It reports false if the connection
// is already gone, in that case nothing is sent.
func (r *Room) Leave(id network.Uid) bool {
	if r.reg.Remove(id) == nil {
		return false
	}
	vacated := r.roles.OnDisconnect(id)
	if vacated {
		r.log.Info().Str("id", id.String()).Msg("Broadcaster has left")
	}
	_ = r.router.BroadcastAll(api.UserDisconnectedPacket(id, vacated))

	if vacated && r.opts.Promote {
		r.promote()
	}
	r.updateRoster()
	return true
}

func (r *Room) assign(id network.Uid) api.Role {
	role := r.roles.OnConnect(id)
	r.log.Info().Str("id", id.String()).Str("role", string(role)).Msg("Role")
	r.notifyRole(id, role)
	if role == api.Viewer {
		if b, ok := r.roles.Broadcaster(); ok {
			_ = r.router.Send(b, api.NewViewerPacket(id))
		}
	}
	return role
}

func (r *Room) promote() {
	m := r.roles.Promote()
	if m == nil {
		return
	}
	r.log.Info().Str("id", m.Id.String()).Msg("Promoted to broadcaster")
	r.notifyRole(m.Id, api.Broadcaster)
	for _, v := range r.reg.All() {
		if v.Role == api.Viewer {
			_ = r.router.Send(m.Id, api.NewViewerPacket(v.Id))
		}
	}
}

func (r *Room) notifyRole(id network.Uid, role api.Role) {
	_ = r.router.Send(id, api.RolePacket(api.RoleResponse{Value: role, Id: id, Ice: r.opts.Ice}))
}

func (r *Room) updateRoster() {
	if r.opts.Roster {
		_ = r.router.BroadcastAll(api.UserListPacket(r.reg.Roster()))
	}
}

func (r *Room) Size() int { return r.reg.Len() }

func (r *Room) Broadcaster() (network.Uid, bool) { return r.roles.Broadcaster() }

func (r *Room) Roster() []api.RosterEntry { return r.reg.Roster() }

// Role returns the role of a connection, false if it's not in the room.
func (r *Room) Role(id network.Uid) (api.Role, bool) {
	if m := r.reg.Get(id); m != nil {
		return m.Role, true
	}
	return api.Unassigned, false
}
