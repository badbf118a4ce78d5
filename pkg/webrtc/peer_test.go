package webrtc

import (
	"testing"
	"time"

	pion "github.com/pion/webrtc/v3"
	"github.com/sketchcast/sketchcast/pkg/config"
	"github.com/sketchcast/sketchcast/pkg/logger"
)

func descriptions(p *Peer) chan pion.SessionDescription {
	ch := make(chan pion.SessionDescription, 1)
	p.OnSignal = func(s Signal) {
		if s.Description != nil {
			ch <- *s.Description
		}
	}
	return ch
}

func next(t *testing.T, ch chan pion.SessionDescription) pion.SessionDescription {
	t.Helper()
	select {
	case sd := <-ch:
		return sd
	case <-time.After(5 * time.Second):
		t.Fatalf("no session description")
	}
	return pion.SessionDescription{}
}

func TestOfferAnswer(t *testing.T) {
	factory, err := NewApiFactory(config.Webrtc{}, logger.Nop(), nil)
	if err != nil {
		t.Fatalf("couldn't make the factory, %v", err)
	}

	a, err := factory.NewPeer("b")
	if err != nil {
		t.Fatalf("couldn't make a peer, %v", err)
	}
	defer func() { _ = a.Close() }()
	b, err := factory.NewPeer("a")
	if err != nil {
		t.Fatalf("couldn't make a peer, %v", err)
	}
	defer func() { _ = b.Close() }()

	fromA, fromB := descriptions(a), descriptions(b)

	if err = a.Offer("sketch"); err != nil {
		t.Fatalf("offer failed, %v", err)
	}
	offer := next(t, fromA)
	if offer.Type != pion.SDPTypeOffer {
		t.Fatalf("expected an offer, got %v", offer.Type)
	}
	if err = b.Apply(Signal{Description: &offer}); err != nil {
		t.Fatalf("couldn't apply the offer, %v", err)
	}
	answer := next(t, fromB)
	if answer.Type != pion.SDPTypeAnswer {
		t.Fatalf("expected an answer, got %v", answer.Type)
	}
	if err = a.Apply(Signal{Description: &answer}); err != nil {
		t.Fatalf("couldn't apply the answer, %v", err)
	}

	for _, p := range []*Peer{a, b} {
		if state := p.SignalingState(); state != pion.SignalingStateStable {
			t.Errorf("expected stable signaling, got %v", state)
		}
	}
}

func TestEarlyCandidatesWait(t *testing.T) {
	factory, err := NewApiFactory(config.Webrtc{}, logger.Nop(), nil)
	if err != nil {
		t.Fatalf("couldn't make the factory, %v", err)
	}
	p, err := factory.NewPeer("x")
	if err != nil {
		t.Fatalf("couldn't make a peer, %v", err)
	}
	defer func() { _ = p.Close() }()

	candidate := pion.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host"}
	if err = p.Apply(Signal{Candidate: &candidate}); err != nil {
		t.Errorf("expected the candidate to wait, got %v", err)
	}
	if len(p.pending) != 1 {
		t.Errorf("expected one pending candidate, got %v", len(p.pending))
	}
	if err = p.Apply(Signal{}); err != ErrEmptySignal {
		t.Errorf("expected empty signal error, got %v", err)
	}
}

func TestConfiguration(t *testing.T) {
	c := Configuration([]config.IceServer{{Urls: "turn:turn.example.com", Username: "u", Credential: "p"}})
	if len(c.ICEServers) != 1 || c.ICEServers[0].URLs[0] != "turn:turn.example.com" || c.ICEServers[0].Username != "u" {
		t.Errorf("unexpected config %+v", c.ICEServers)
	}
}
