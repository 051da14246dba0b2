package config

import "strings"

type Webrtc struct {
	IceServers []IceServer
	LogLevel   int `fig:"loglevel" default:"3"`
}

type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

// DefaultIceServers is used when neither the config file nor the
// environment provides any relay-discovery endpoints.
var DefaultIceServers = []IceServer{
	{Urls: "stun:stun.l.google.com:19302"},
	{Urls: "stun:stun1.l.google.com:19302"},
	{Urls: "stun:stun2.l.google.com:19302"},
	{Urls: "stun:global.stun.twilio.com:3478"},
}

// AddIceServersEnv appends or overrides ICE servers from the environment,
// i.e. CHAINMEET_ICESERVERS[0]_URLS. TURN entries are authenticated relays
// and have to carry both a username and a credential.
func (w *Webrtc) AddIceServersEnv() error {
	cfg := Webrtc{IceServers: []IceServer{{}, {}, {}, {}, {}}}
	_ = LoadConfigEnv(&cfg)
	for i, ice := range cfg.IceServers {
		if ice.Urls == "" {
			continue
		}
		if err := ice.validate(); err != nil {
			return err
		}
		if i > len(w.IceServers)-1 {
			w.IceServers = append(w.IceServers, ice)
		} else {
			w.IceServers[i] = ice
		}
	}
	if len(w.IceServers) == 0 {
		w.IceServers = DefaultIceServers
	}
	return nil
}

func (i IceServer) validate() error {
	if strings.HasPrefix(i.Urls, "turn:") || strings.HasPrefix(i.Urls, "turns:") {
		if i.Username == "" || i.Credential == "" {
			return ErrTurnCredentials
		}
	}
	return nil
}
