package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kernelworks/kernelbot/internal/domain"
)

// TranscriptStore defines the persistence operations the persist worker needs
type TranscriptStore interface {
	Insert(ctx context.Context, records ...domain.TurnRecord) error
}

// TranscriptPersistWorker consumes published turn records and writes them to
// the transcript store. Malformed or unwritable deliveries are rejected
// without requeue so a poison message cannot wedge the queue.
type TranscriptPersistWorker struct {
	conn      *amqp.Connection
	store     TranscriptStore
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTranscriptPersistWorker(conn *amqp.Connection, store TranscriptStore, queueName string) *TranscriptPersistWorker {
	return &TranscriptPersistWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
	}
}

func (w *TranscriptPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var record domain.TurnRecord
				if err := json.Unmarshal(d.Body, &record); err != nil {
					log.Printf("transcript worker decode record failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.store.Insert(workerCtx, record); err != nil {
					log.Printf("transcript worker persist record failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *TranscriptPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
