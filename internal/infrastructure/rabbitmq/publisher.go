package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Envelope is the JSON body of every relayed event. The routing key is the event name.
type Envelope struct {
	Event       string    `json:"event"`
	Key         string    `json:"key,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Payload     any       `json:"payload"`
}

// Publisher forwards domain events to a topic exchange.
type Publisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
	now      func() time.Time
}

func NewPublisher(ch *amqp.Channel, exchange string) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{ch: ch, exchange: exchange, now: func() time.Time { return time.Now().UTC() }}
}

var _ outbox.Publisher = (*Publisher)(nil)

func (p *Publisher) Publish(ctx context.Context, e outbox.Event) error {
	msg, err := p.message(e)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx,
		p.exchange,    // exchange
		e.EventName(), // routing key
		false,         // mandatory
		false,         // immediate
		msg,
	)
}

func (p *Publisher) message(e outbox.Event) (amqp.Publishing, error) {
	env := Envelope{Event: e.EventName(), PublishedAt: p.now(), Payload: e}
	if k, ok := e.(outbox.Keyed); ok {
		env.Key = k.EventKey()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("could not marshal %s: %w", e.EventName(), err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.Key,
		Type:         env.Event,
		Timestamp:    env.PublishedAt,
		Body:         body,
	}, nil
}
