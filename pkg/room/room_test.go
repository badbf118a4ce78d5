package room

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sketchcast/sketchcast/pkg/api"
	"github.com/sketchcast/sketchcast/pkg/network"
)

type testPeer struct {
	id   network.Uid
	in   []api.In
	full bool
}

func newPeer(id string) *testPeer { return &testPeer{id: network.Uid(id)} }

func (p *testPeer) Id() network.Uid { return p.id }

func (p *testPeer) Write(data []byte) bool {
	if p.full {
		return false
	}
	var in api.In
	if err := json.Unmarshal(data, &in); err != nil {
		panic(err)
	}
	p.in = append(p.in, in)
	return true
}

func (p *testPeer) of(t api.PT) (list []api.In) {
	for _, in := range p.in {
		if in.T == t {
			list = append(list, in)
		}
	}
	return
}

func (p *testPeer) reset() { p.in = nil }

func unwrap[T any](t *testing.T, in api.In) T {
	t.Helper()
	v, err := api.Unwrap[T](in.Payload)
	if err != nil {
		t.Fatalf("couldn't unwrap %v: %v", in.T, err)
	}
	return *v
}

func join(t *testing.T, r *Room, peers ...*testPeer) {
	t.Helper()
	for _, p := range peers {
		if _, err := r.Join(p); err != nil {
			t.Fatalf("join %v: %v", p.id, err)
		}
	}
}

func broadcasters(r *Room) (n int) {
	for _, m := range r.reg.All() {
		if m.Role == api.Broadcaster {
			n++
		}
	}
	return
}

func TestEndToEndScenario(t *testing.T) {
	r := New(Options{}, nil)
	a, b, c := newPeer("A"), newPeer("B"), newPeer("C")

	// A becomes the broadcaster
	join(t, r, a)
	if roles := a.of(api.RoleNotice); len(roles) != 1 || unwrap[api.RoleResponse](t, roles[0]).Value != api.Broadcaster {
		t.Fatalf("A should be the broadcaster, got %v", roles)
	}

	// B becomes a viewer, A learns about it
	join(t, r, b)
	if rs := unwrap[api.RoleResponse](t, b.of(api.RoleNotice)[0]); rs.Value != api.Viewer {
		t.Fatalf("B should be a viewer, got %v", rs.Value)
	}
	nv := a.of(api.NewViewer)
	if len(nv) != 1 || unwrap[api.NewViewerResponse](t, nv[0]).ViewerId != "B" {
		t.Fatalf("A should get new-viewer B, got %v", nv)
	}

	// A sends an offer to B
	if err := r.Handle("A", &api.SignalRequest{TargetId: "B", Payload: json.RawMessage(`"offer-1"`)}); err != nil {
		t.Fatal(err)
	}
	signals := b.of(api.Signal)
	if len(signals) != 1 {
		t.Fatalf("B should get one signal, got %v", len(signals))
	}
	if rs := unwrap[api.SignalResponse](t, signals[0]); rs.SenderId != "A" || string(rs.Payload) != `"offer-1"` {
		t.Errorf("wrong signal %+v", rs)
	}

	// B chats, both get it
	_ = r.Handle("B", &api.SetUsernameRequest{Name: "B"})
	if err := r.Handle("B", &api.ChatMessageRequest{Text: "hi"}); err != nil {
		t.Fatal(err)
	}
	for _, p := range []*testPeer{a, b} {
		chat := p.of(api.ChatMessage)
		if len(chat) != 1 {
			t.Fatalf("%v should get one chat message, got %v", p.id, len(chat))
		}
		if rs := unwrap[api.ChatMessageResponse](t, chat[0]); rs.User != "B" || rs.Text != "hi" {
			t.Errorf("wrong chat message %+v", rs)
		}
	}

	// A leaves
	b.reset()
	if !r.Leave("A") {
		t.Fatal("A should leave")
	}
	left := b.of(api.UserDisconnected)
	if len(left) != 1 {
		t.Fatalf("B should get one departure notice, got %v", len(left))
	}
	if rs := unwrap[api.UserDisconnectedResponse](t, left[0]); rs.Id != "A" || !rs.Vacated {
		t.Errorf("wrong departure notice %+v", rs)
	}
	if _, ok := r.Broadcaster(); ok || broadcasters(r) != 0 {
		t.Fatalf("the room should have no broadcaster")
	}
	if len(b.of(api.RoleNotice)) != 0 {
		t.Errorf("B shouldn't be promoted")
	}

	// C takes the empty slot
	join(t, r, c)
	if role, _ := r.Role("C"); role != api.Broadcaster {
		t.Errorf("C should be the broadcaster, got %v", role)
	}
	if role, _ := r.Role("B"); role != api.Viewer {
		t.Errorf("B should stay a viewer, got %v", role)
	}
}

func TestRoleExclusivity(t *testing.T) {
	r := New(Options{}, nil)
	const n = 50
	for i := 0; i < n; i++ {
		join(t, r, newPeer(fmt.Sprintf("p%v", i)))
		if got := broadcasters(r); got != 1 {
			t.Fatalf("after %v joins there are %v broadcasters", i+1, got)
		}
	}
	// leave in a mixed order, including the broadcaster
	for i := 0; i < n; i += 3 {
		r.Leave(network.Uid(fmt.Sprintf("p%v", i)))
		if got := broadcasters(r); got > 1 {
			t.Fatalf("there are %v broadcasters", got)
		}
		b, ok := r.Broadcaster()
		if ok != (broadcasters(r) == 1) {
			t.Fatalf("broadcaster slot %v doesn't match the registry", b)
		}
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := New(Options{}, nil)
	a, b := newPeer("A"), newPeer("B")
	join(t, r, a, b)

	if !r.Leave("A") {
		t.Fatal("first leave should work")
	}
	if r.Leave("A") {
		t.Fatal("second leave should be a no-op")
	}
	if r.Leave("nobody") {
		t.Fatal("unknown leave should be a no-op")
	}
	if n := len(b.of(api.UserDisconnected)); n != 1 {
		t.Errorf("expected exactly one departure notice, got %v", n)
	}
}

func TestUnknownTarget(t *testing.T) {
	r := New(Options{}, nil)
	a, b, c := newPeer("A"), newPeer("B"), newPeer("C")
	join(t, r, a, b, c)
	a.reset()
	b.reset()
	c.reset()

	err := r.Handle("A", &api.SignalRequest{TargetId: "ghost", Payload: json.RawMessage(`{}`)})
	if !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected unknown target error, got %v", err)
	}
	if len(b.in)+len(c.in) != 0 {
		t.Errorf("no one else should get anything")
	}
	errs := a.of(api.ErrorNotice)
	if len(errs) != 1 || unwrap[api.ErrorResponse](t, errs[0]).Code != api.ErrCodeUnknownTarget {
		t.Errorf("sender should get an unknown-target error, got %v", errs)
	}

	// the routing still works
	if err = r.Handle("A", &api.SignalRequest{TargetId: "C", Payload: json.RawMessage(`1`)}); err != nil {
		t.Fatal(err)
	}
	if len(c.of(api.Signal)) != 1 || len(b.of(api.Signal)) != 0 {
		t.Errorf("signal should go only to C")
	}
}

func TestBroadcastExclusivity(t *testing.T) {
	tests := []struct {
		name   string
		rq     api.Request
		t      api.PT
		echoed bool
	}{
		{name: "drawing", rq: &api.DrawingRequest{Raw: json.RawMessage(`{"x":1,"y":2}`)}, t: api.Drawing},
		{name: "clear", rq: &api.ClearCanvasRequest{}, t: api.ClearCanvas},
		{name: "chat", rq: &api.ChatMessageRequest{Text: "yo"}, t: api.ChatMessage, echoed: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := New(Options{}, nil)
			a, b, c := newPeer("A"), newPeer("B"), newPeer("C")
			join(t, r, a, b, c)

			if err := r.Handle("A", test.rq); err != nil {
				t.Fatal(err)
			}
			if n := len(a.of(test.t)); (n == 1) != test.echoed {
				t.Errorf("sender got %v packets, echo: %v", n, test.echoed)
			}
			for _, p := range []*testPeer{b, c} {
				if n := len(p.of(test.t)); n != 1 {
					t.Errorf("%v got %v packets", p.id, n)
				}
			}
		})
	}
}

func TestDrawingIsForwardedVerbatim(t *testing.T) {
	r := New(Options{}, nil)
	a, b := newPeer("A"), newPeer("B")
	join(t, r, a, b)

	raw := `{"from":{"x":1,"y":2},"to":{"x":3,"y":4},"color":"red"}`
	_ = r.Handle("A", &api.DrawingRequest{Raw: json.RawMessage(raw)})
	if got := string(b.of(api.Drawing)[0].Payload); got != raw {
		t.Errorf("expected %v, got %v", raw, got)
	}
}

func TestAnonymousChat(t *testing.T) {
	r := New(Options{Anonymous: "someone"}, nil)
	a := newPeer("A")
	join(t, r, a)
	_ = r.Handle("A", &api.ChatMessageRequest{Text: "hi"})
	if rs := unwrap[api.ChatMessageResponse](t, a.of(api.ChatMessage)[0]); rs.User != "someone" {
		t.Errorf("expected anonymous label, got %v", rs.User)
	}
}

func TestDuplicateJoin(t *testing.T) {
	r := New(Options{}, nil)
	join(t, r, newPeer("A"))
	if _, err := r.Join(newPeer("A")); !errors.Is(err, ErrDuplicateId) {
		t.Errorf("expected duplicate id error, got %v", err)
	}
	if r.Size() != 1 {
		t.Errorf("the room should have one member, got %v", r.Size())
	}
}

func TestHandleAfterLeave(t *testing.T) {
	r := New(Options{}, nil)
	join(t, r, newPeer("A"))
	r.Leave("A")
	if err := r.Handle("A", &api.ChatMessageRequest{Text: "late"}); !errors.Is(err, ErrNotJoined) {
		t.Errorf("expected not joined error, got %v", err)
	}
}

func TestAssignOnUsername(t *testing.T) {
	r := New(Options{Assign: AssignOnUsername}, nil)
	a, b := newPeer("A"), newPeer("B")
	join(t, r, a, b)

	if rs := unwrap[api.RoleResponse](t, a.of(api.RoleNotice)[0]); rs.Value != api.Unassigned || rs.Id != "A" {
		t.Fatalf("A should be unassigned, got %+v", rs)
	}
	if _, ok := r.Broadcaster(); ok {
		t.Fatal("no broadcaster before a username")
	}

	// B names itself first and takes the role
	_ = r.Handle("B", &api.SetUsernameRequest{Name: "bob"})
	_ = r.Handle("A", &api.SetUsernameRequest{Name: "alice"})
	if role, _ := r.Role("B"); role != api.Broadcaster {
		t.Errorf("B should be the broadcaster, got %v", role)
	}
	if role, _ := r.Role("A"); role != api.Viewer {
		t.Errorf("A should be a viewer, got %v", role)
	}
	if nv := b.of(api.NewViewer); len(nv) != 1 || unwrap[api.NewViewerResponse](t, nv[0]).ViewerId != "A" {
		t.Errorf("B should know about A, got %v", nv)
	}

	// a new name doesn't change the role
	_ = r.Handle("B", &api.SetUsernameRequest{Name: "bobby"})
	if n := len(b.of(api.RoleNotice)); n != 2 {
		t.Errorf("expected 2 role notices for B, got %v", n)
	}
}

func TestPromotion(t *testing.T) {
	r := New(Options{Promote: true}, nil)
	a, b, c, d := newPeer("A"), newPeer("B"), newPeer("C"), newPeer("D")
	join(t, r, a, b, c, d)
	b.reset()

	r.Leave("A")
	if id, _ := r.Broadcaster(); id != "B" {
		t.Fatalf("B should be promoted, got %v", id)
	}
	if broadcasters(r) != 1 {
		t.Fatal("one broadcaster expected")
	}
	if b.in[0].T != api.UserDisconnected {
		t.Errorf("departure notice should come first, got %v", b.in[0].T)
	}
	if rs := unwrap[api.RoleResponse](t, b.of(api.RoleNotice)[0]); rs.Value != api.Broadcaster {
		t.Errorf("B should get the broadcaster role, got %v", rs.Value)
	}
	var viewers []network.Uid
	for _, in := range b.of(api.NewViewer) {
		viewers = append(viewers, unwrap[api.NewViewerResponse](t, in).ViewerId)
	}
	if len(viewers) != 2 || viewers[0] != "C" || viewers[1] != "D" {
		t.Errorf("B should be told about C and D, got %v", viewers)
	}
}

func TestPromotionOfLastOne(t *testing.T) {
	r := New(Options{Promote: true}, nil)
	join(t, r, newPeer("A"))
	r.Leave("A")
	if _, ok := r.Broadcaster(); ok || r.Size() != 0 {
		t.Error("the room should be empty")
	}
}

func TestRoster(t *testing.T) {
	r := New(Options{Roster: true}, nil)
	a, b := newPeer("A"), newPeer("B")
	join(t, r, a, b)
	_ = r.Handle("B", &api.SetUsernameRequest{Name: "bob"})

	lists := a.of(api.UserList)
	last := unwrap[api.UserListResponse](t, lists[len(lists)-1])
	want := []api.RosterEntry{
		{Id: "A", Role: api.Broadcaster},
		{Id: "B", Name: "bob", Role: api.Viewer},
	}
	if len(last.Entries) != len(want) {
		t.Fatalf("expected %v, got %v", want, last.Entries)
	}
	for i := range want {
		if last.Entries[i] != want[i] {
			t.Errorf("expected %v, got %v", want[i], last.Entries[i])
		}
	}

	r.Leave("A")
	lists = b.of(api.UserList)
	if rest := unwrap[api.UserListResponse](t, lists[len(lists)-1]); len(rest.Entries) != 1 {
		t.Errorf("expected one entry after leave, got %v", rest.Entries)
	}
}

func TestDropsAreReported(t *testing.T) {
	var drops []network.Uid
	r := New(Options{OnDrop: func(to network.Uid, _ api.PT) { drops = append(drops, to) }}, nil)
	a, b := newPeer("A"), newPeer("B")
	join(t, r, a, b)
	b.full = true

	_ = r.Handle("A", &api.DrawingRequest{Raw: json.RawMessage(`{"x":0,"y":0}`)})
	if len(drops) != 1 || drops[0] != "B" {
		t.Errorf("expected a drop for B, got %v", drops)
	}
}
