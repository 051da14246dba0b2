package main

import (
	"bufio"
	"context"
	stdos "os"
	"strings"
	"time"

	"github.com/chainmeet/chainmeet/pkg/api"
	"github.com/chainmeet/chainmeet/pkg/client"
	"github.com/chainmeet/chainmeet/pkg/client/peer"
	"github.com/chainmeet/chainmeet/pkg/config"
	"github.com/chainmeet/chainmeet/pkg/logger"
	"github.com/chainmeet/chainmeet/pkg/os"
)

var Version = "?"

// The client is headless: media tracks are not captured here, matches
// negotiate a peer session with the in-band chat channel only.
func main() {
	conf, err := config.NewClientConfig("")
	if err == nil {
		conf.ParseFlags()
	}

	log := logger.NewConsole(conf.Client.Debug, "u")
	if err != nil {
		log.Fatal().Err(err).Msg("config load fail")
	}
	log.Info().Msgf("version %s", Version)

	conn := client.New(conf.Client, log)
	peers, err := peer.NewController(conf.Webrtc, conf.Client.PeerTimeout, conn, log)
	if err != nil {
		log.Fatal().Err(err).Msg("peer init fail")
	}
	peers.OnChat = func(message string) { log.Info().Msgf("[peer] %s", message) }
	peers.OnStateChange = func(s peer.State) { log.Info().Msgf("peer session %v", s) }

	conn.SetHandlers(client.Handlers{
		OnConnected: func(sessionId string) { log.Info().Msgf("session %s", sessionId) },
		OnSearching: func() {
			log.Info().Msg("searching...")
			peers.Close()
		},
		OnMatch: func(partnerId string) {
			log.Info().Msgf("matched with %s", partnerId)
			if err := peers.Start(conn.Id(), partnerId, conn.IceServers(), nil); err != nil {
				log.Error().Err(err).Msg("peer start fail")
			}
		},
		OnPartnerLeft: func() {
			log.Info().Msg("partner left")
			peers.Close()
		},
		OnSignal: func(n api.SignalNotice) {
			if err := peers.HandleSignal(n); err != nil {
				log.Error().Err(err).Msg("signal fail")
			}
		},
		OnChat:  func(n api.ChatMessageNotice) { log.Info().Msgf("[%s] %s", n.From, n.Message) },
		OnError: func(message string) { log.Warn().Msgf("server: %s", message) },
	})

	if err := conn.Connect(); err != nil {
		log.Fatal().Err(err).Msg("connect fail")
	}
	if err := conn.JoinQueue(conf.Client.Role, conf.Client.Interests); err != nil {
		log.Fatal().Err(err).Msg("queue join fail")
	}

	if conf.Client.StatusAddress != "" {
		go pollOnline(conf.Client.StatusAddress, log)
	}
	go repl(conf.Client, conn, peers, log)

	<-os.ExpectTermination()
	peers.Close()
	conn.Disconnect()
}

// repl reads stdin lines: /next, /leave, /join, /quit, anything else
// goes to the partner as chat (peer channel first, relay as fallback).
func repl(conf config.Client, conn *client.Connection, peers *peer.Controller, log *logger.Logger) {
	in := bufio.NewScanner(stdos.Stdin)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "":
		case line == "/quit":
			peers.Close()
			conn.Disconnect()
			stdos.Exit(0)
		case line == "/next":
			// the peer session stays up until the server confirms the
			// skip: a throttled request keeps the current pairing
			conn.NextMatch()
		case line == "/leave":
			conn.LeaveQueue()
		case line == "/join":
			if err := conn.JoinQueue(conf.Role, conf.Interests); err != nil {
				log.Warn().Err(err).Msg("queue join fail")
			}
		default:
			if err := peers.SendChat(line); err != nil {
				conn.SendChat(line)
			}
		}
	}
}

func pollOnline(addr string, log *logger.Logger) {
	tick := time.NewTicker(30 * time.Second)
	defer tick.Stop()
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		st, err := client.Status(ctx, addr)
		cancel()
		if err != nil {
			log.Debug().Err(err).Msg("status poll fail")
		} else {
			log.Info().Msgf("%d online, %d waiting", st.OnlineCount, st.QueueLength)
		}
		<-tick.C
	}
}
