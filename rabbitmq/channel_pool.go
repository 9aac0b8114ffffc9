package rabbitmq

import (
	"errors"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrPoolClosed         = errors.New("channel pool is closed")
	ErrNoChannelAvailable = errors.New("no channels available")
)

type ChannelPool struct {
	url       string
	conn      *amqp.Connection
	channels  chan *amqp.Channel
	mu        sync.Mutex
	closed    bool
	open      int // channels idle in the pool or checked out
	size      int
	queueName string
}

// NewChannelPool dials rabbitmqURL and pre-opens size channels, each with the
// queue declared.
func NewChannelPool(rabbitmqURL string, queueName string, size int) (*ChannelPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("channel pool size must be positive, got %d", size)
	}

	conn, err := amqp.Dial(rabbitmqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	pool := &ChannelPool{
		url:       rabbitmqURL,
		conn:      conn,
		channels:  make(chan *amqp.Channel, size),
		size:      size,
		queueName: queueName,
	}

	for i := 0; i < size; i++ {
		ch, err := pool.createChannel()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create channel %d: %w", i, err)
		}
		pool.channels <- ch
		pool.open++
	}

	log.Printf("Created RabbitMQ channel pool with %d channels", size)
	return pool, nil
}

func (p *ChannelPool) createChannel() (*amqp.Channel, error) {
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := DeclareQueue(ch, p.queueName); err != nil {
		ch.Close()
		return nil, err
	}

	return ch, nil
}

// GetChannel never blocks. Idle channels that died are dropped and their
// slots refilled, redialing first if the connection itself was lost. When
// every channel is checked out it returns ErrNoChannelAvailable.
func (p *ChannelPool) GetChannel() (*amqp.Channel, error) {
	for {
		select {
		case ch, ok := <-p.channels:
			if !ok {
				return nil, ErrPoolClosed
			}
			if !ch.IsClosed() {
				return ch, nil
			}
			p.release()
		default:
			return p.openChannel()
		}
	}
}

func (p *ChannelPool) openChannel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	if p.open >= p.size {
		return nil, ErrNoChannelAvailable
	}

	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("failed to reconnect to RabbitMQ: %w", err)
		}
		p.conn = conn
		log.Println("Reconnected to RabbitMQ")
	}

	ch, err := p.createChannel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	p.open++
	return ch, nil
}

func (p *ChannelPool) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open > 0 {
		p.open--
	}
}

// ReturnChannel gives ch back to the pool, closing it if the pool is full or
// already shut down. A dead channel frees its slot.
func (p *ChannelPool) ReturnChannel(ch *amqp.Channel) {
	if ch == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		ch.Close()
		return
	}
	if ch.IsClosed() {
		p.open--
		return
	}
	select {
	case p.channels <- ch:
	default:
		ch.Close()
		p.open--
	}
}

// Close closes all channels and the connection
func (p *ChannelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	close(p.channels)
	for ch := range p.channels {
		ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	log.Println("Closed RabbitMQ channel pool")
}

// DeclareQueue declares the durable product event queue. Declaring is
// idempotent, so publishers and consumers both do it.
func DeclareQueue(ch *amqp.Channel, queueName string) error {
	_, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	return nil
}
