package config

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var ErrTurnCredentials = errors.New("TURN servers should have both username and credential")

type ServerConfig struct {
	Server     Server
	Matching   Matching
	Webrtc     Webrtc
	Monitoring Monitoring
}

type Server struct {
	Address string `fig:"address" default:":3001"`
	// Origin is the allowed Origin header of transport upgrades, * allows any.
	Origin string `fig:"origin" default:"*"`
	Debug  bool   `fig:"debug"`
	Https  bool   `fig:"https"`
	Tls    Tls
}

type Tls struct {
	Address   string `fig:"address" default:":443"`
	HttpsCert string `fig:"httpscert"`
	HttpsKey  string `fig:"httpskey"`
	// Domain enables automatic certificates when no cert/key files are set.
	Domain string `fig:"domain"`
}

type Matching struct {
	// MaxSessionsPerOrigin caps live transports sharing one network origin.
	MaxSessionsPerOrigin int `fig:"maxsessionsperorigin" default:"5"`
	// JoinCooldown throttles queue-join requests per session.
	JoinCooldown time.Duration `fig:"joincooldown" default:"1s"`
}

func (s Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}

// NewServerConfig loads the matching server configuration from the config
// file and the environment, with a custom file path override.
func NewServerConfig(path string) (conf ServerConfig, err error) {
	if err = LoadConfig(&conf, path); err != nil {
		return
	}
	err = conf.Webrtc.AddIceServersEnv()
	return
}

func (c *ServerConfig) ParseFlags() {
	c.AddFlags(pflag.CommandLine)
	pflag.Parse()
}

func (c *ServerConfig) AddFlags(fs *pflag.FlagSet) *ServerConfig {
	fs.StringVar(&c.Server.Address, "address", c.Server.Address, "server address")
	fs.StringVar(&c.Server.Origin, "origin", c.Server.Origin, "allowed transport origin")
	fs.BoolVar(&c.Server.Debug, "debug", c.Server.Debug, "debug logging")
	fs.IntVar(&c.Matching.MaxSessionsPerOrigin, "max-per-origin", c.Matching.MaxSessionsPerOrigin,
		"max concurrent sessions per network origin")
	fs.DurationVar(&c.Matching.JoinCooldown, "join-cooldown", c.Matching.JoinCooldown,
		"min interval between queue-join requests of one session")
	fs.IntVar(&c.Monitoring.Port, "monitoring-port", c.Monitoring.Port, "monitoring server port")
	return c
}
