package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/trackmate/trackmate/pkg/database"
	"github.com/trackmate/trackmate/pkg/elastic_client"
	"github.com/trackmate/trackmate/pkg/stats"
	"github.com/trackmate/trackmate/pkg/tmdf"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type BatchConsumer struct {
	rules []AlertRule
}

func NewBatchConsumer(rules []AlertRule) *BatchConsumer {
	return &BatchConsumer{rules: rules}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	var stopEventOperations []mongo.WriteModel

	for _, payload := range payloads {
		var stopEvent *tmdf.StopEvent
		if err := json.Unmarshal([]byte(payload), &stopEvent); err != nil {
			log.Error().Err(err).Msg("Failed to decode stop event")
			continue
		}

		insertModel := mongo.NewInsertOneModel()
		insertModel.SetDocument(stopEvent)
		stopEventOperations = append(stopEventOperations, insertModel)

		consumer.evaluateRules(stopEvent)
		indexAuditEvent(stopEvent)
	}

	if len(stopEventOperations) > 0 {
		stopEventsCollection := database.GetCollection("stop_events")

		startTime := time.Now()
		_, err := stopEventsCollection.BulkWrite(context.Background(), stopEventOperations, &options.BulkWriteOptions{})
		log.Info().Int("Length", len(stopEventOperations)).Str("Time", time.Since(startTime).String()).Msg("Bulk write")

		if err != nil {
			log.Error().Err(err).Msg("Failed to bulk write stop events")
		} else {
			stats.StopEventsPersisted.Add(float64(len(stopEventOperations)))
		}
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Fatal().Err(err).Msg("Failed to consume stop event")
		}
	}
}

func (consumer *BatchConsumer) evaluateRules(event *tmdf.StopEvent) {
	for _, rule := range consumer.rules {
		matched, err := rule.Matches(event)
		if err != nil {
			log.Error().Err(err).Str("rule", rule.Expression).Msg("Failed to evaluate alert rule")
			continue
		}

		if matched {
			log.Info().
				Str("rule", rule.Expression).
				Str("trip", event.TripID).
				Int("stop", event.StopIndex).
				Str("status", string(event.Status)).
				Msg("Alert rule matched")
		}
	}
}

func indexAuditEvent(event *tmdf.StopEvent) {
	currentTime := time.Now()
	yearNumber, weekNumber := currentTime.ISOWeek()
	indexName := fmt.Sprintf("trackmate-stop-events-%d-%d", yearNumber, weekNumber)

	eventBytes, _ := json.Marshal(event)
	elastic_client.IndexRequest(indexName, bytes.NewReader(eventBytes))
}
