package events

import (
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/trackmate/trackmate/pkg/redis_client"
	"github.com/trackmate/trackmate/pkg/tmdf"
)

const QueueName = "events-queue"

// Publisher pushes stop events onto the persistence queue. The realtime
// gateway publishes, the events consumer drains.
type Publisher struct {
	queue rmq.Queue
}

func NewPublisher() (*Publisher, error) {
	queue, err := redis_client.QueueConnection.OpenQueue(QueueName)
	if err != nil {
		return nil, err
	}

	return &Publisher{queue: queue}, nil
}

func (p *Publisher) PublishStopEvent(event tmdf.StopEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.queue.PublishBytes(eventBytes)
}
