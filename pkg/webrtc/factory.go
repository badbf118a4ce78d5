package webrtc

import (
	"github.com/pion/interceptor"
	pion "github.com/pion/webrtc/v3"
	"github.com/sketchcast/sketchcast/pkg/config"
	"github.com/sketchcast/sketchcast/pkg/logger"
)

type ApiFactory struct {
	api  *pion.API
	conf pion.Configuration
	log  *logger.Logger
}

type ModApiFun func(m *pion.MediaEngine, i *interceptor.Registry, s *pion.SettingEngine)

func NewApiFactory(conf config.Webrtc, log *logger.Logger, mod ModApiFun) (api *ApiFactory, err error) {
	m := &pion.MediaEngine{}
	if err = m.RegisterDefaultCodecs(); err != nil {
		return
	}
	i := &interceptor.Registry{}
	if err = pion.RegisterDefaultInterceptors(m, i); err != nil {
		return
	}
	s := pion.SettingEngine{LoggerFactory: logger.NewPionLogger(log, conf.LogLevel)}
	if conf.HasPortRange() {
		if err = s.SetEphemeralUDPPortRange(conf.IcePorts.Min, conf.IcePorts.Max); err != nil {
			return
		}
	}

	if mod != nil {
		mod(m, i, &s)
	}

	return &ApiFactory{
		api:  pion.NewAPI(pion.WithMediaEngine(m), pion.WithInterceptorRegistry(i), pion.WithSettingEngine(s)),
		conf: Configuration(conf.IceServers),
		log:  log,
	}, nil
}

// Configuration converts the ICE servers list into pion's config.
func Configuration(servers []config.IceServer) pion.Configuration {
	c := pion.Configuration{ICEServers: []pion.ICEServer{}}
	for _, server := range servers {
		c.ICEServers = append(c.ICEServers, pion.ICEServer{
			URLs:       []string{server.Urls},
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	return c
}

// NewPeer makes a new peer connection, log tags it with the remote side.
func (a *ApiFactory) NewPeer(remote string) (*Peer, error) {
	conn, err := a.api.NewPeerConnection(a.conf)
	if err != nil {
		return nil, err
	}
	return newPeer(conn, a.log.Extend(a.log.With().Str(logger.ConnectionField, remote))), nil
}
