package coordinator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/cors"
	"github.com/sketchcast/sketchcast/pkg/config"
	"github.com/sketchcast/sketchcast/pkg/logger"
	"github.com/sketchcast/sketchcast/pkg/monitoring"
	"github.com/sketchcast/sketchcast/pkg/network/httpx"
	"github.com/sketchcast/sketchcast/pkg/os"
	"github.com/sketchcast/sketchcast/pkg/service"
)

type Coordinator struct {
	hub      *Hub
	services service.Group
	addr     string
	cancel   context.CancelFunc
	log      *logger.Logger
}

// New makes the room hub along with its HTTP and monitoring servers.
// Nothing runs before Run.
func New(conf config.CoordinatorConfig, log *logger.Logger) (*Coordinator, error) {
	c := &Coordinator{hub: NewHub(conf, log), log: log}

	srv, err := httpx.NewServer(
		conf.Coordinator.Server.GetAddr(),
		func(*httpx.Server) httpx.Handler { return c.routes(conf.Coordinator) },
		httpx.WithServerConfig(conf.Coordinator.Server),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}
	c.services.Add(srv)
	c.addr = srv.GetProtocol() + "://" + srv.Addr

	if conf.Coordinator.Monitoring.IsEnabled() {
		mon, err := monitoring.New(conf.Coordinator.Monitoring, "", log)
		if err != nil {
			_ = srv.Stop()
			return nil, fmt.Errorf("monitoring: %w", err)
		}
		c.services.Add(mon)
	}
	return c, nil
}

func (c *Coordinator) routes(conf config.Coordinator) http.Handler {
	h := httpx.NewServeMux("")
	h.HandleFunc("/ws", c.hub.handleWebsocket)
	h.HandleFunc("/healthz", c.health)
	if conf.Static != "" {
		if os.IsDir(conf.Static) {
			h.Handle("/", httpx.FileServer(conf.Static))
		} else {
			c.log.Warn().Msgf("No static files in %v", conf.Static)
		}
	}

	opts := cors.Options{AllowedMethods: []string{http.MethodGet}}
	if len(conf.Origin) > 0 {
		opts.AllowedOrigins = conf.Origin
	}
	return cors.New(opts).Handler(h)
}

type health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Broadcaster bool   `json:"broadcaster"`
}

func (c *Coordinator) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health{
		Status:      "ok",
		Connections: c.hub.Size(),
		Broadcaster: c.hub.HasBroadcaster(),
	})
}

func (c *Coordinator) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.hub.Run(ctx)
	c.services.Start()
	c.log.Info().Msgf("The room is open at %v", c.addr)
}

// Shutdown stops accepting new connections, then
// closes the room with everyone in it.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	err := c.services.Shutdown(ctx)
	if c.cancel != nil {
		c.cancel()
		select {
		case <-c.hub.stopped:
		case <-ctx.Done():
		}
	}
	return err
}

// Addr returns the public address of the HTTP server.
func (c *Coordinator) Addr() string { return c.addr }

func (c *Coordinator) String() string { return "coordinator" }
