package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"products-api/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	publishTimeout    = 5 * time.Second
	DefaultBufferSize = 1000
)

var (
	ErrPublisherClosed = errors.New("publisher is closed")
	ErrBufferFull      = errors.New("event buffer is full")
)

// Publisher delivers product events from a single background goroutine, so
// callers never wait on the broker. Events are sent in the order queued.
type Publisher struct {
	queueName string
	send      func(ctx context.Context, msg amqp.Publishing) error

	events    chan models.ProductEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewPublisher(pool *ChannelPool, queueName string, bufferSize int) *Publisher {
	p := &Publisher{queueName: queueName}
	return p.start(func(ctx context.Context, msg amqp.Publishing) error {
		return p.sendOnPool(ctx, pool, msg)
	}, bufferSize)
}

func newPublisherWithSender(queueName string, send func(context.Context, amqp.Publishing) error, bufferSize int) *Publisher {
	p := &Publisher{queueName: queueName}
	return p.start(send, bufferSize)
}

func (p *Publisher) start(send func(context.Context, amqp.Publishing) error, bufferSize int) *Publisher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	p.send = send
	p.events = make(chan models.ProductEvent, bufferSize)
	p.done = make(chan struct{})

	p.wg.Add(1)
	go p.run()
	return p
}

// PublishProductEvent queues event for delivery and returns at once. It fails
// only when the publisher is closed or its buffer is full; broker errors are
// logged by the background goroutine.
func (p *Publisher) PublishProductEvent(ctx context.Context, event models.ProductEvent) error {
	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}

	select {
	case p.events <- event:
		return nil
	default:
		return fmt.Errorf("dropped %s for product %d: %w", event.Type, event.ProductID, ErrBufferFull)
	}
}

// Close stops accepting events, delivers what is already queued and waits for
// the background goroutine to exit.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.events:
			p.deliver(event)
		case <-p.done:
			for {
				select {
				case event := <-p.events:
					p.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) deliver(event models.ProductEvent) {
	msg, err := newPublishing(event)
	if err != nil {
		log.Printf("Failed to encode %s for product %d: %v", event.Type, event.ProductID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.send(ctx, msg); err != nil {
		log.Printf("Failed to publish %s for product %d: %v", event.Type, event.ProductID, err)
		return
	}
	log.Printf("Published %s for product %d", event.Type, event.ProductID)
}

func (p *Publisher) sendOnPool(ctx context.Context, pool *ChannelPool, msg amqp.Publishing) error {
	ch, err := pool.GetChannel()
	if err != nil {
		return fmt.Errorf("failed to get channel from pool: %w", err)
	}
	defer pool.ReturnChannel(ch)

	return ch.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key (queue name)
		false,       // mandatory
		false,       // immediate
		msg)
}

func newPublishing(event models.ProductEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    event.EventID,
		Type:         string(event.Type),
		Timestamp:    event.OccurredAt,
		Body:         body,
	}, nil
}
