package room

import (
	"github.com/sketchcast/sketchcast/pkg/api"
	"github.com/sketchcast/sketchcast/pkg/network"
)

// Roles keeps the room with at most one broadcaster.
type Roles struct {
	reg         *Registry
	broadcaster network.Uid
}

func NewRoles(reg *Registry) *Roles { return &Roles{reg: reg} }

// OnConnect gives the broadcaster role to the first comer,
// everybody else becomes a viewer.
func (r *Roles) OnConnect(id network.Uid) api.Role {
	role := api.Viewer
	if r.broadcaster.IsEmpty() {
		role = api.Broadcaster
		r.broadcaster = id
	}
	r.reg.SetRole(id, role)
	return role
}

// OnDisconnect clears the broadcaster slot if id held it.
// The slot stays empty until somebody takes it with OnConnect or Promote.
func (r *Roles) OnDisconnect(id network.Uid) (vacated bool) {
	if id.IsEmpty() || id != r.broadcaster {
		return false
	}
	r.broadcaster = network.EmptyUid
	return true
}

func (r *Roles) Broadcaster() (network.Uid, bool) { return r.broadcaster, !r.broadcaster.IsEmpty() }

// Promote makes the longest connected viewer the broadcaster.
// Returns nil when the slot is taken or there are no viewers.
func (r *Roles) Promote() *Member {
	if !r.broadcaster.IsEmpty() {
		return nil
	}
	for _, m := range r.reg.All() {
		if m.Role == api.Viewer {
			r.broadcaster = m.Id
			m.Role = api.Broadcaster
			return m
		}
	}
	return nil
}
