package consumer

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"products-api/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Worker struct {
	workerID  int
	channel   *amqp.Channel
	queueName string
	tracker   *EventTracker
}

func NewWorker(workerID int, conn *amqp.Connection, queueName string, tracker *EventTracker) (*Worker, error) {
	// Each worker gets its own channel
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel for worker %d: %w", workerID, err)
	}

	// one unacknowledged message per worker at a time
	err = ch.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS for worker %d: %w", workerID, err)
	}

	return &Worker{
		workerID:  workerID,
		channel:   ch,
		queueName: queueName,
		tracker:   tracker,
	}, nil
}

// Start consumes until the channel or connection is closed.
func (w *Worker) Start(wg *sync.WaitGroup) {
	defer wg.Done()
	defer w.channel.Close()

	msgs, err := w.channel.Consume(
		w.queueName,                          // queue
		w.consumerTag(),                      // consumer tag
		false,                                // auto-ack
		false,                                // exclusive
		false,                                // no-local
		false,                                // no-wait
		nil,                                  // args
	)
	if err != nil {
		log.Printf("Worker %d failed to register consumer: %v", w.workerID, err)
		return
	}

	log.Printf("Worker %d started and waiting for product events", w.workerID)

	for msg := range msgs {
		w.processMessage(msg)
	}

	log.Printf("Worker %d stopped", w.workerID)
}

func (w *Worker) processMessage(msg amqp.Delivery) {
	var event models.ProductEvent

	if err := json.Unmarshal(msg.Body, &event); err != nil || event.Type == "" {
		log.Printf("Worker %d: Failed to decode product event: %v", w.workerID, err)
		// malformed, requeueing would loop forever
		msg.Nack(false, false)
		return
	}

	w.tracker.RecordEvent(event)

	if err := msg.Ack(false); err != nil {
		log.Printf("Worker %d: Failed to acknowledge message: %v", w.workerID, err)
	} else {
		log.Printf("Worker %d: Processed and acknowledged %s for product %d", w.workerID, event.Type, event.ProductID)
	}
}

func (w *Worker) consumerTag() string {
	return fmt.Sprintf("worker-%d", w.workerID)
}

// Stop cancels the consumer. The broker stops delivering, the message being
// processed is still acked, and Start returns once the delivery channel drains.
func (w *Worker) Stop() {
	if w.channel == nil {
		return
	}
	if err := w.channel.Cancel(w.consumerTag(), false); err != nil {
		log.Printf("Worker %d: Failed to cancel consumer: %v", w.workerID, err)
		w.channel.Close()
	}
}
