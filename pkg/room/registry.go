package room

import (
	"errors"
	"sort"

	"github.com/sketchcast/sketchcast/pkg/api"
	"github.com/sketchcast/sketchcast/pkg/network"
)

// Peer is the outbound end of a live connection.
type Peer interface {
	Id() network.Uid
	// Write queues data for sending, false means it was dropped.
	Write(data []byte) bool
}

// Member is a registry entry for one connection.
type Member struct {
	Id   network.Uid
	Name string
	Role api.Role

	seq  uint64
	peer Peer
}

var ErrDuplicateId = errors.New("duplicate connection id")

// Registry tracks live connections.
// It has no locks, all calls must come from the room dispatcher.
type Registry struct {
	m   map[network.Uid]*Member
	seq uint64
}

func NewRegistry() *Registry { return &Registry{m: make(map[network.Uid]*Member)} }

func (r *Registry) Add(id network.Uid, peer Peer) error {
	if _, ok := r.m[id]; ok {
		return ErrDuplicateId
	}
	r.seq++
	r.m[id] = &Member{Id: id, Role: api.Unassigned, seq: r.seq, peer: peer}
	return nil
}

// Remove deletes the entry and returns it, or nil if there was none.
func (r *Registry) Remove(id network.Uid) *Member {
	m, ok := r.m[id]
	if !ok {
		return nil
	}
	delete(r.m, id)
	return m
}

func (r *Registry) Get(id network.Uid) *Member { return r.m[id] }

func (r *Registry) Len() int { return len(r.m) }

func (r *Registry) SetName(id network.Uid, name string) {
	if m, ok := r.m[id]; ok {
		m.Name = name
	}
}

func (r *Registry) SetRole(id network.Uid, role api.Role) {
	if m, ok := r.m[id]; ok {
		m.Role = role
	}
}

// All returns a snapshot of the members in the join order.
// Later adds and removes don't affect the returned slice.
func (r *Registry) All() []*Member {
	list := make([]*Member, 0, len(r.m))
	for _, m := range r.m {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
	return list
}

func (r *Registry) Roster() []api.RosterEntry {
	all := r.All()
	entries := make([]api.RosterEntry, len(all))
	for i, m := range all {
		entries[i] = api.RosterEntry{Id: m.Id, Name: m.Name, Role: m.Role}
	}
	return entries
}
