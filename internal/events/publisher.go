package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kernelworks/kernelbot/internal/domain"
)

// TranscriptPublisher pushes turn records onto a durable queue so the
// persist worker can write them out of band. The bot turn never blocks on
// the transcript database.
type TranscriptPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewTranscriptPublisher(conn *amqp.Connection, queueName string) *TranscriptPublisher {
	if queueName == "" {
		queueName = DefaultTranscriptQueue
	}
	return &TranscriptPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

// Record publishes each turn record as its own persistent message.
func (p *TranscriptPublisher) Record(ctx context.Context, records ...domain.TurnRecord) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	for _, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal turn record failed: %w", err)
		}

		if err := ch.PublishWithContext(
			ctx,
			"",
			p.queueName,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         payload,
				DeliveryMode: amqp.Persistent,
			},
		); err != nil {
			return fmt.Errorf("publish turn record failed: %w", err)
		}
	}
	return nil
}
