package gateway

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/database"
	"github.com/trackmate/trackmate/pkg/elastic_client"
	"github.com/trackmate/trackmate/pkg/events"
	"github.com/trackmate/trackmate/pkg/realtime/broadcast"
	"github.com/trackmate/trackmate/pkg/realtime/ingest"
	"github.com/trackmate/trackmate/pkg/realtime/registry"
	"github.com/trackmate/trackmate/pkg/realtime/snapshot"
	"github.com/trackmate/trackmate/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "gateway",
		Usage: "Websocket gateway for live bus tracking",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the websocket gateway",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8338",
						Usage: "listen target for the websocket server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}

					tokenValidator, err := NewJWKSValidator()
					if err != nil {
						return err
					}

					publisher, err := events.NewPublisher()
					if err != nil {
						return err
					}

					reg := registry.NewRegistry(tokenValidator)
					broadcaster := broadcast.NewBroadcaster(reg)
					snapshots := snapshot.NewCache()

					coordinator := ingest.NewCoordinator(ingest.GetConfig(), ingest.MongoTripStore{}, broadcaster).
						WithEventSink(publisher).
						WithSnapshotStore(snapshots)

					gateway := NewGateway(reg, coordinator, broadcaster).
						WithSnapshotReader(snapshots)

					mux := http.NewServeMux()
					mux.HandleFunc("/ws", gateway.HandleWebsocket)
					mux.Handle("/metrics", promhttp.Handler())
					mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
						w.Write([]byte("OK"))
					})

					listen := c.String("listen")
					server := &http.Server{
						Addr:    listen,
						Handler: mux,
					}

					go func() {
						log.Info().Str("listen", listen).Msg("Starting websocket gateway")
						if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
							log.Fatal().Err(err).Msg("Gateway server failed")
						}
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					server.Close()

					return nil
				},
			},
		},
	}
}
