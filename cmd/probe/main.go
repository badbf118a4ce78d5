// Probe connects two peers to a running coordinator and checks
// that they can open a WebRTC data channel through its signaling.
//
// Usage: probe --addr ws://localhost:8000/ws
package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	goos "os"
	"time"

	"github.com/sketchcast/sketchcast/pkg/api"
	"github.com/sketchcast/sketchcast/pkg/config"
	"github.com/sketchcast/sketchcast/pkg/logger"
	"github.com/sketchcast/sketchcast/pkg/network"
	"github.com/sketchcast/sketchcast/pkg/webrtc"
	"github.com/spf13/pflag"
)

var greeting = []byte("hello from the broadcaster")

func main() {
	addr := pflag.String("addr", "ws://localhost:8000/ws", "coordinator websocket address")
	timeout := pflag.Duration("timeout", 20*time.Second, "how long to wait for each step")
	debug := pflag.BoolP("debug", "d", false, "verbose logs")
	stun := pflag.StringSlice("ice", nil, "ICE server URLs for the peers")
	pflag.Parse()

	log := logger.NewConsole(*debug, "p", false)

	address, err := url.Parse(*addr)
	if err != nil {
		log.Fatal().Err(err).Msg("bad address")
	}

	conf := config.Webrtc{LogLevel: int(logger.WarnLevel)}
	if *debug {
		conf.LogLevel = int(logger.DebugLevel)
	}
	for _, u := range *stun {
		conf.IceServers = append(conf.IceServers, config.IceServer{Urls: u})
	}

	if err := run(*address, conf, *timeout, log); err != nil {
		log.Error().Err(err).Msg("Probe failed")
		goos.Exit(1)
	}
	log.Info().Msg("Probe passed")
}

func run(address url.URL, conf config.Webrtc, timeout time.Duration, log *logger.Logger) error {
	factory, err := webrtc.NewApiFactory(conf, log, nil)
	if err != nil {
		return fmt.Errorf("webrtc: %w", err)
	}

	first, err := connect("1", address, factory, log)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer first.close()
	role, err := waitRole(first, timeout)
	if err != nil {
		return err
	}
	if role.Value != api.Broadcaster {
		return errors.New("the room has a broadcaster already, try an empty room")
	}
	log.Info().Msgf("Broadcaster %v", role.Id)

	second, err := connect("2", address, factory, log)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer second.close()
	viewer, err := waitRole(second, timeout)
	if err != nil {
		return err
	}
	log.Info().Msgf("Viewer %v", viewer.Id)

	if err = waitViewer(first, viewer.Id, timeout); err != nil {
		return err
	}
	if err = first.call(viewer.Id, greeting); err != nil {
		return fmt.Errorf("offer: %w", err)
	}

	select {
	case data := <-second.received:
		if !bytes.Equal(data, greeting) {
			return fmt.Errorf("unexpected data channel message %q", data)
		}
	case err = <-first.failures:
		return err
	case err = <-second.failures:
		return err
	case <-time.After(timeout):
		return errors.New("no data channel message, check the ICE servers")
	}
	log.Info().Msg("Data channel is open")
	return nil
}

func waitRole(p *probe, timeout time.Duration) (*api.RoleResponse, error) {
	select {
	case rs := <-p.roles:
		if rs.Value == api.Unassigned {
			// the coordinator waits for a name
			if err := p.send(api.SetUsername, api.SetUsernameRequest{Name: "probe-" + p.name}); err != nil {
				return nil, err
			}
			return waitRole(p, timeout)
		}
		return rs, nil
	case err := <-p.failures:
		return nil, err
	case <-time.After(timeout):
		return nil, fmt.Errorf("probe %v got no role", p.name)
	}
}

func waitViewer(p *probe, id network.Uid, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		select {
		case v := <-p.newViewers:
			if v == id {
				return nil
			}
		case err := <-p.failures:
			return err
		case <-deadline:
			return errors.New("the broadcaster wasn't told about the viewer")
		}
	}
}
