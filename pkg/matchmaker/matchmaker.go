// Package matchmaker is the matching authority: it admits participant
// transports, pairs them through the registry, and relays their
// handshake payloads.
package matchmaker

import (
	"context"

	"github.com/chainmeet/chainmeet/pkg/config"
	"github.com/chainmeet/chainmeet/pkg/logger"
	"github.com/chainmeet/chainmeet/pkg/monitoring"
	"github.com/chainmeet/chainmeet/pkg/service"
)

type Matchmaker struct {
	conf     config.ServerConfig
	log      *logger.Logger
	services service.Group
}

func New(conf config.ServerConfig, log *logger.Logger) *Matchmaker {
	m := &Matchmaker{conf: conf, log: log}
	hub := NewHub(conf, log)
	h, err := NewHTTPServer(conf, log, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("http init fail")
	}
	m.services.Add(h)
	m.services.AddIf(conf.Monitoring.IsEnabled(), monitoring.New(conf.Monitoring, "server", log))
	return m
}

func (m *Matchmaker) Start() { m.services.Start() }

func (m *Matchmaker) Shutdown(ctx context.Context) error { return m.services.Shutdown(ctx) }
