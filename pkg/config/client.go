package config

import (
	"time"

	"github.com/spf13/pflag"
)

type ClientConfig struct {
	Client Client
	Webrtc Webrtc
}

type Client struct {
	// ServerAddress is the websocket endpoint of the matching server.
	ServerAddress string `fig:"serveraddress" default:"ws://localhost:3001/ws"`
	// StatusAddress is the read-only status endpoint, informational only.
	StatusAddress string   `fig:"statusaddress" default:"http://localhost:3001/status"`
	Role          string   `fig:"role"`
	Interests     []string `fig:"interests"`
	Debug         bool     `fig:"debug"`
	// PeerTimeout bounds how long a peer session may stay unconnected.
	PeerTimeout time.Duration `fig:"peertimeout" default:"30s"`
}

func NewClientConfig(path string) (conf ClientConfig, err error) {
	if err = LoadConfig(&conf, path); err != nil {
		return
	}
	err = conf.Webrtc.AddIceServersEnv()
	return
}

func (c *ClientConfig) ParseFlags() {
	c.AddFlags(pflag.CommandLine)
	pflag.Parse()
}

func (c *ClientConfig) AddFlags(fs *pflag.FlagSet) *ClientConfig {
	fs.StringVar(&c.Client.ServerAddress, "server", c.Client.ServerAddress, "matching server ws address")
	fs.StringVar(&c.Client.Role, "role", c.Client.Role, "participant role tag")
	fs.StringSliceVar(&c.Client.Interests, "interests", c.Client.Interests, "interest tags (up to 5)")
	fs.BoolVar(&c.Client.Debug, "debug", c.Client.Debug, "debug logging")
	return c
}
