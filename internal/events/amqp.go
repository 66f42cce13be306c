package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cristianemoyano/swarm-autoscaler/internal/logger"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// AMQPSink forwards bus events to a RabbitMQ topic exchange.
// Delivery is best effort: a broken connection drops the message, logs
// it and triggers a lazy reconnect on the next publish. The sink never
// blocks the decision loop.
type AMQPSink struct {
	url      string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel

	eventChan <-chan *models.Event
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewAMQPSink(url, exchange string, eventChan <-chan *models.Event) *AMQPSink {
	ctx, cancel := context.WithCancel(context.Background())
	return &AMQPSink{
		url:       url,
		exchange:  exchange,
		eventChan: eventChan,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

func (s *AMQPSink) Start() {
	go s.run()
}

func (s *AMQPSink) Stop() {
	s.cancel()
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil && !s.conn.IsClosed() {
		s.conn.Close()
	}
}

func (s *AMQPSink) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-s.eventChan:
			if !ok {
				return
			}
			s.publish(event)
		}
	}
}

func (s *AMQPSink) publish(event *models.Event) {
	key := routingKey(event)
	body, err := json.Marshal(event)
	if err != nil {
		logger.Errorf("Failed to encode event %s: %v", event.Type, err)
		return
	}

	if err := s.send(key, body); err != nil {
		logger.Warnf("Dropping event %s (%s): %v", event.Type, key, err)
	}
}

func (s *AMQPSink) send(key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureChannel(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	err := s.channel.PublishWithContext(ctx, s.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		// Force a reconnect on the next publish.
		s.channel = nil
		if s.conn != nil && !s.conn.IsClosed() {
			s.conn.Close()
		}
		s.conn = nil
		return err
	}
	return nil
}

func (s *AMQPSink) ensureChannel() error {
	if s.channel != nil && s.conn != nil && !s.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := channel.ExchangeDeclare(s.exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("amqp exchange declare: %w", err)
	}

	s.conn = conn
	s.channel = channel
	logger.Infof("AMQP connection established, exchange %s", s.exchange)
	return nil
}

func routingKey(event *models.Event) string {
	switch event.Type {
	case models.EventTypeServiceAdded:
		return "service.added"
	case models.EventTypeServiceRemoved:
		return "service.removed"
	case models.EventTypeServiceUpdated:
		return "service.updated"
	case models.EventTypeServicesUpdated:
		return "services.updated"
	case models.EventTypeMetricsUpdated:
		if event.ServiceName != "" {
			return "metrics." + event.ServiceName
		}
		return "metrics.updated"
	case models.EventTypeScalingDecision:
		return "scaling.decision"
	case models.EventTypeHealthCheck:
		return "health.check"
	default:
		return string(event.Type)
	}
}
