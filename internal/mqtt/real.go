package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/sweeney/volcano-manager/internal/control"
)

// bufferCapacity is the number of messages kept while the broker is unreachable.
const bufferCapacity = 100

// queueCapacity bounds messages waiting for the publisher goroutine.
const queueCapacity = 64

const publishTimeout = 5 * time.Second

var (
	// ErrQueueFull is returned when the publisher goroutine has fallen behind.
	ErrQueueFull = errors.New("mqtt: publish queue full")
	// ErrPublisherClosed is returned by Publish and PublishSystem after Close.
	ErrPublisherClosed = errors.New("mqtt: publisher closed")
)

// brokerClient is the subset of paho.Client the publisher drives.
type brokerClient interface {
	Connect() paho.Token
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Publish and PublishSystem
// only enqueue; a single goroutine owns every broker call. Messages published
// while disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client  brokerClient
	logger  zerolog.Logger
	timeout time.Duration

	queue     chan bufferedMsg
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu            sync.Mutex
	buffer        *ringBuffer
	connected     bool
	connectedOnce bool
	reconnectedAt time.Time // set until RECONNECTED has been sent
	closed        bool
}

// NewRealPublisher creates a publisher for the given broker. Connection is
// attempted in the background and retried, so startup never blocks on the broker.
func NewRealPublisher(broker, clientID string, logger zerolog.Logger) *RealPublisher {
	p := newPublisher(logger.With().Str("component", "mqtt").Str("broker", broker).Logger(), queueCapacity)

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, willPayload(), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.handleConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.handleConnectionLost(err) })

	p.start(paho.NewClient(opts))
	return p
}

func newPublisher(logger zerolog.Logger, queueSize int) *RealPublisher {
	return &RealPublisher{
		logger:  logger,
		timeout: publishTimeout,
		queue:   make(chan bufferedMsg, queueSize),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		buffer:  newRingBuffer(bufferCapacity),
	}
}

func (p *RealPublisher) start(c brokerClient) {
	p.client = c
	go p.run()
	c.Connect()
}

// willPayload carries no timestamp; the broker sends it at an unknown later time.
func willPayload() []byte {
	payload, _ := FormatSystemPayload(SystemEvent{Event: EventOffline})
	return payload
}

func (p *RealPublisher) handleConnect() {
	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	p.connected = true
	if reconnect {
		p.reconnectedAt = time.Now()
	}
	pending := p.buffer.len()
	p.mu.Unlock()

	p.logger.Info().Bool("reconnect", reconnect).Int("replay", pending).Msg("connected to broker")

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *RealPublisher) handleConnectionLost(err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.logger.Warn().Err(err).Msg("lost broker connection")
}

func (p *RealPublisher) run() {
	defer close(p.done)
	for {
		select {
		case msg, ok := <-p.queue:
			if !ok {
				return
			}
			p.flush(&msg)
		case <-p.wake:
			p.flush(nil)
		}
	}
}

// flush sends anything buffered during an outage, then msg. While
// disconnected msg is buffered instead; the connected check and the push
// happen under one lock so a reconnect cannot strand it.
func (p *RealPublisher) flush(msg *bufferedMsg) {
	p.mu.Lock()
	if !p.connected {
		dropped := false
		if msg != nil {
			dropped = p.buffer.push(*msg)
		}
		p.mu.Unlock()
		if dropped {
			p.logger.Warn().Int("capacity", bufferCapacity).Msg("offline buffer full, dropping oldest")
		}
		return
	}
	pending := p.buffer.drainAll()
	reconnectedAt := p.reconnectedAt
	p.reconnectedAt = time.Time{}
	p.mu.Unlock()

	if !reconnectedAt.IsZero() {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: reconnectedAt, Event: EventReconnected})
		p.deliver(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: true})
	}
	for _, m := range pending {
		p.deliver(m)
	}
	if msg != nil {
		p.deliver(*msg)
	}
}

func (p *RealPublisher) deliver(msg bufferedMsg) {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(p.timeout) {
		p.logger.Warn().Str("topic", msg.topic).Dur("timeout", p.timeout).Msg("publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn().Err(err).Str("topic", msg.topic).Msg("publish failed")
	}
}

func (p *RealPublisher) enqueue(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Publish queues a mode transition event for the MQTT broker.
func (p *RealPublisher) Publish(event control.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.enqueue(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem queues a system lifecycle event for the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.enqueue(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close stops accepting messages, waits for queued ones to be sent, and
// disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		select {
		case <-p.done:
		case <-time.After(p.timeout + time.Second):
			p.logger.Warn().Msg("gave up waiting for queued messages")
		}
		p.client.Disconnect(1000) // 1 second quiesce
	})
	return nil
}
