package events

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/consumer"
	"github.com/trackmate/trackmate/pkg/database"
	"github.com/trackmate/trackmate/pkg/elastic_client"
	"github.com/trackmate/trackmate/pkg/redis_client"
	"github.com/trackmate/trackmate/pkg/tmdf"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Provides the events runner",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run events server",
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

					redisConsumer := consumer.RedisConsumer{
						QueueName:       QueueName,
						NumberConsumers: 5,
						BatchSize:       20,
						Timeout:         2 * time.Second,
						Consumer:        NewBatchConsumer(LoadRulesFromEnvironment()),
					}
					redisConsumer.Setup()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					return nil
				},
			},
			{
				Name:  "test-event",
				Usage: "generate a test stop event",
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					eventsQueue, err := redis_client.QueueConnection.OpenQueue(QueueName)
					if err != nil {
						log.Fatal().Err(err).Msg("Failed to start event queue")
					}

					stopEvent := tmdf.StopEvent{
						TripID:    "trackmate-trip-test",
						StopIndex: 0,
						StopName:  "Main Gate",
						Status:    tmdf.StopEventStatusArrived,
						Location:  tmdf.NewLocation(51.5074, -0.1278),
						Timestamp: time.Now(),
						Source:    "test-event",
					}

					eventBytes, _ := json.Marshal(stopEvent)

					eventsQueue.PublishBytes(eventBytes)

					return nil
				},
			},
		},
	}
}
