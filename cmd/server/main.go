package main

import (
	"context"

	"github.com/chainmeet/chainmeet/pkg/config"
	"github.com/chainmeet/chainmeet/pkg/logger"
	"github.com/chainmeet/chainmeet/pkg/matchmaker"
	"github.com/chainmeet/chainmeet/pkg/os"
)

var Version = "?"

func main() {
	conf, err := config.NewServerConfig("")
	if err == nil {
		conf.ParseFlags()
	}

	log := logger.NewConsole(conf.Server.Debug, "s")
	if err != nil {
		log.Fatal().Err(err).Msg("config load fail")
	}

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}
	m := matchmaker.New(conf, log)
	m.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := m.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()
	<-os.ExpectTermination()
	cancel()
}
