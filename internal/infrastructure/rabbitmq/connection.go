package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "minishop.events"
	ExchangeType    = "topic"
)

type Config struct {
	URL      string
	Exchange string
	// Attempts bounds dial retries while the broker is starting. Zero means 5.
	Attempts int
	Backoff  time.Duration
}

// SetupConn dials the broker, opens a channel and declares the durable topic exchange.
func SetupConn(ctx context.Context, cfg Config, logger observability.Logger) (*amqp.Connection, *amqp.Channel, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}

	var conn *amqp.Connection
	var err error
	for i := 0; i < cfg.Attempts; i++ {
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			break
		}
		logger.Warn("rabbitmq_dial_failed",
			observability.F("attempt", i+1),
			observability.F("error", err.Error()),
		)
		if i == cfg.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(cfg.Backoff):
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return conn, ch, nil
}
