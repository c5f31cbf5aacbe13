package ingest

import (
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/webramesh/email-marketing-sub000/internal/config"
)

// Source is a RabbitMQ channel consuming one durable queue with manual acks.
type Source struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *slog.Logger
}

func Dial(cfg config.RabbitMQConfig, log *slog.Logger) (*Source, error) {
	if log == nil {
		log = slog.Default()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // auto-delete
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = 20
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	log.Info("connected to rabbitmq", "queue", cfg.Queue, "prefetch", prefetch)
	return &Source{conn: conn, channel: ch, queue: cfg.Queue, log: log}, nil
}

func (s *Source) Deliveries(consumerTag string) (<-chan amqp.Delivery, error) {
	d, err := s.channel.Consume(
		s.queue,     // queue
		consumerTag, // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", s.queue, err)
	}
	return d, nil
}

func (s *Source) Close() error {
	if err := s.channel.Close(); err != nil {
		s.log.Error("close rabbitmq channel", "error", err)
	}
	return s.conn.Close()
}
