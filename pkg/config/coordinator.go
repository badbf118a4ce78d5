package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
)

type CoordinatorConfig struct {
	Coordinator Coordinator
	Room        Room
	Webrtc      Webrtc
}

type Coordinator struct {
	Debug      bool
	Monitoring Monitoring
	// allowed browser origins, empty means any
	Origin []string
	// replaces {host} in the ICE server URLs
	PublicHost string
	Server     Server
	// a directory with the client assets
	Static string
}

type Room struct {
	// connect or username
	Assign         string `default:"connect"`
	Promote        bool
	Roster         bool
	Anonymous      string `default:"anonymous"`
	MaxNameLength  int    `default:"32"`
	MaxChatLength  int    `default:"1000"`
	MaxMessageSize int64  `default:"65536"`
	SendQueue      int    `default:"256"`
	// inbound messages per second for one connection, 0 is unlimited
	RateLimit float64 `default:"50"`
	RateBurst int     `default:"100"`
}

var errBadAssign = errors.New("room.assign should be either connect or username")

// NewCoordinatorConfig loads the config file named by the --conf flag
// and then applies the rest of the flags on top of it.
func NewCoordinatorConfig(args []string) (conf CoordinatorConfig, err error) {
	pre := pflag.NewFlagSet("pre", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.Usage = func() {}
	path := pre.String("conf", "", "")
	_ = pre.Parse(args)

	if err = LoadConfig(&conf, *path); err != nil {
		return conf, fmt.Errorf("config: %w", err)
	}

	fs := pflag.NewFlagSet("coordinator", pflag.ContinueOnError)
	fs.String("conf", *path, "Directory with a custom config.yaml")
	conf.WithFlags(fs)
	if err = fs.Parse(args); err != nil {
		return conf, err
	}
	return conf, conf.Validate()
}

func (c *CoordinatorConfig) WithFlags(fs *pflag.FlagSet) {
	c.Coordinator.Server.WithFlags(fs)
	fs.BoolVarP(&c.Coordinator.Debug, "debug", "d", c.Coordinator.Debug, "Verbose logs")
	fs.StringSliceVar(&c.Coordinator.Origin, "origin", c.Coordinator.Origin, "Allowed browser origins")
	fs.StringVar(&c.Coordinator.PublicHost, "publicHost", c.Coordinator.PublicHost, "Public host for the {host} of ICE URLs")
	fs.StringVar(&c.Coordinator.Static, "static", c.Coordinator.Static, "Client assets directory")
	fs.IntVar(&c.Coordinator.Monitoring.Port, "monitoring.port", c.Coordinator.Monitoring.Port, "Monitoring server port")
	fs.StringVar(&c.Room.Assign, "assign", c.Room.Assign, "When to assign roles: connect or username")
	fs.BoolVar(&c.Room.Promote, "promote", c.Room.Promote, "Promote the oldest viewer when the broadcaster leaves")
	fs.BoolVar(&c.Room.Roster, "roster", c.Room.Roster, "Broadcast the user list")
}

func (c *CoordinatorConfig) Validate() error {
	switch c.Room.Assign {
	case "connect", "username":
	default:
		return fmt.Errorf("%w, got %q", errBadAssign, c.Room.Assign)
	}
	if c.Room.RateLimit < 0 {
		return errors.New("room.rateLimit can't be negative")
	}
	return nil
}
