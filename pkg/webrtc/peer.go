package webrtc

import (
	"errors"
	"sync"

	pion "github.com/pion/webrtc/v3"
	"github.com/sketchcast/sketchcast/pkg/logger"
)

// Signal is the payload that peers exchange through the room,
// either a session description or one trickled ICE candidate.
type Signal struct {
	Description *pion.SessionDescription `json:"description,omitempty"`
	Candidate   *pion.ICECandidateInit   `json:"candidate,omitempty"`
}

var ErrEmptySignal = errors.New("empty signal")

type Peer struct {
	conn *pion.PeerConnection
	dc   *pion.DataChannel

	// OnSignal receives the local signals for the remote side.
	OnSignal func(Signal)
	// OnMessage receives the data channel messages.
	OnMessage func([]byte)
	// OnOpen is called once the data channel is ready.
	OnOpen func()

	mu      sync.Mutex
	pending []pion.ICECandidateInit

	log *logger.Logger
}

func newPeer(conn *pion.PeerConnection, log *logger.Logger) *Peer {
	p := &Peer{
		conn:      conn,
		OnSignal:  func(Signal) {},
		OnMessage: func([]byte) {},
		OnOpen:    func() {},
		log:       log,
	}
	conn.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		candidate := c.ToJSON()
		p.OnSignal(Signal{Candidate: &candidate})
	})
	conn.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		p.log.Debug().Msgf("Connection state: %v", state)
	})
	conn.OnDataChannel(func(dc *pion.DataChannel) { p.attach(dc) })
	return p
}

func (p *Peer) attach(dc *pion.DataChannel) {
	p.mu.Lock()
	p.dc = dc
	p.mu.Unlock()
	dc.OnOpen(func() {
		p.log.Debug().Msgf("Data channel [%v] is open", dc.Label())
		p.OnOpen()
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) { p.OnMessage(msg.Data) })
}

// Offer opens a data channel and sends the offer with OnSignal.
func (p *Peer) Offer(label string) error {
	dc, err := p.conn.CreateDataChannel(label, nil)
	if err != nil {
		return err
	}
	p.attach(dc)
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err = p.conn.SetLocalDescription(offer); err != nil {
		return err
	}
	p.OnSignal(Signal{Description: &offer})
	return nil
}

// Apply takes a remote signal, an offer is answered with OnSignal.
func (p *Peer) Apply(s Signal) error {
	switch {
	case s.Description != nil:
		return p.applyDescription(*s.Description)
	case s.Candidate != nil:
		p.mu.Lock()
		if p.conn.RemoteDescription() == nil {
			p.pending = append(p.pending, *s.Candidate)
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()
		return p.conn.AddICECandidate(*s.Candidate)
	default:
		return ErrEmptySignal
	}
}

func (p *Peer) applyDescription(sd pion.SessionDescription) error {
	p.mu.Lock()
	err := p.conn.SetRemoteDescription(sd)
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	if err != nil {
		return err
	}
	for _, c := range pending {
		if err := p.conn.AddICECandidate(c); err != nil {
			p.log.Warn().Err(err).Msg("Bad ICE candidate")
		}
	}
	if sd.Type != pion.SDPTypeOffer {
		return nil
	}
	answer, err := p.conn.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err = p.conn.SetLocalDescription(answer); err != nil {
		return err
	}
	p.OnSignal(Signal{Description: &answer})
	return nil
}

// Send writes into the data channel, it fails until the channel is open.
func (p *Peer) Send(data []byte) error {
	p.mu.Lock()
	dc := p.dc
	p.mu.Unlock()
	if dc == nil {
		return errors.New("no data channel")
	}
	return dc.Send(data)
}

func (p *Peer) SignalingState() pion.SignalingState { return p.conn.SignalingState() }

func (p *Peer) Close() error { return p.conn.Close() }
