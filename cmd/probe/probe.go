package main

import (
	"errors"
	"net/url"
	"sync"

	"github.com/goccy/go-json"
	"github.com/sketchcast/sketchcast/pkg/api"
	"github.com/sketchcast/sketchcast/pkg/logger"
	"github.com/sketchcast/sketchcast/pkg/network"
	"github.com/sketchcast/sketchcast/pkg/network/websocket"
	"github.com/sketchcast/sketchcast/pkg/webrtc"
)

// probe is one side of the check, a room member with a WebRTC peer.
type probe struct {
	name    string
	sock    *websocket.WS
	factory *webrtc.ApiFactory

	roles      chan *api.RoleResponse
	newViewers chan network.Uid
	received   chan []byte
	failures   chan error

	mu   sync.Mutex
	peer *webrtc.Peer

	log *logger.Logger
}

func connect(name string, address url.URL, factory *webrtc.ApiFactory, log *logger.Logger) (*probe, error) {
	log = log.Extend(log.With().Str(logger.ServiceField, name))
	sock, err := websocket.NewClient(address, log)
	if err != nil {
		return nil, err
	}
	p := &probe{
		name:       name,
		sock:       sock,
		factory:    factory,
		roles:      make(chan *api.RoleResponse, 4),
		newViewers: make(chan network.Uid, 16),
		received:   make(chan []byte, 1),
		failures:   make(chan error, 4),
		log:        log,
	}
	sock.OnMessage = func(data []byte, err error) {
		if err != nil {
			return
		}
		if err := p.handle(data); err != nil {
			p.fail(err)
		}
	}
	sock.Listen()
	return p, nil
}

func (p *probe) handle(data []byte) error {
	var in api.In
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.log.Debug().Msgf("<- %v", in.T)
	switch in.T {
	case api.RoleNotice:
		rs, err := api.Unwrap[api.RoleResponse](in.Payload)
		if err != nil {
			return err
		}
		p.roles <- rs
	case api.NewViewer:
		rs, err := api.Unwrap[api.NewViewerResponse](in.Payload)
		if err != nil {
			return err
		}
		select {
		case p.newViewers <- rs.ViewerId:
		default:
		}
	case api.Signal:
		rs, err := api.Unwrap[api.SignalResponse](in.Payload)
		if err != nil {
			return err
		}
		var s webrtc.Signal
		if err = json.Unmarshal(rs.Payload, &s); err != nil {
			return err
		}
		peer, err := p.peerFor(rs.SenderId)
		if err != nil {
			return err
		}
		return peer.Apply(s)
	case api.ErrorNotice:
		rs, err := api.Unwrap[api.ErrorResponse](in.Payload)
		if err != nil {
			return err
		}
		return errors.New(string(rs.Code) + ": " + rs.Message)
	}
	return nil
}

// peerFor returns the peer for the remote side, making one on the first signal.
func (p *probe) peerFor(remote network.Uid) (*webrtc.Peer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peer != nil {
		return p.peer, nil
	}
	peer, err := p.factory.NewPeer(remote.Short())
	if err != nil {
		return nil, err
	}
	peer.OnSignal = func(s webrtc.Signal) {
		if err := p.signal(remote, s); err != nil {
			p.fail(err)
		}
	}
	peer.OnMessage = func(data []byte) {
		select {
		case p.received <- data:
		default:
		}
	}
	p.peer = peer
	return peer, nil
}

// call starts the negotiation with the remote side as the offerer.
func (p *probe) call(remote network.Uid, greeting []byte) error {
	peer, err := p.peerFor(remote)
	if err != nil {
		return err
	}
	peer.OnOpen = func() {
		if err := peer.Send(greeting); err != nil {
			p.fail(err)
		}
	}
	return peer.Offer("sketchcast-probe")
}

func (p *probe) signal(to network.Uid, s webrtc.Signal) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return p.send(api.Signal, api.SignalRequest{TargetId: to, Payload: payload})
}

func (p *probe) send(t api.PT, payload any) error {
	data, err := api.Encode(api.Out{T: t, Payload: payload})
	if err != nil {
		return err
	}
	if !p.sock.Write(data) {
		return errors.New("couldn't send " + t.String())
	}
	return nil
}

func (p *probe) fail(err error) {
	select {
	case p.failures <- err:
	default:
	}
}

func (p *probe) close() {
	p.mu.Lock()
	if p.peer != nil {
		_ = p.peer.Close()
	}
	p.mu.Unlock()
	p.sock.Close()
	<-p.sock.Done
}
