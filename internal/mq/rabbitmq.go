package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cinerate/apiserver/config"
)

// consumerQueueSuffix names the queue shared by every subscriber of a topic.
// Audit workers compete on it; other bindings may be added out of band.
const consumerQueueSuffix = ".consumers"

// RabbitMQClient maps each topic to a fanout exchange of the same name.
// Subscribers consume from a durable queue bound to that exchange, so events
// published before the first subscriber starts are not kept.
type RabbitMQClient struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	durable    bool
	autoDelete bool

	mu        sync.Mutex
	exchanges map[string]struct{}
}

func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}

	return &RabbitMQClient{
		conn:       conn,
		channel:    ch,
		durable:    cfg.QueueDurable,
		autoDelete: cfg.QueueAutoDelete,
		exchanges:  make(map[string]struct{}),
	}, nil
}

func (r *RabbitMQClient) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", errors.New("rabbitmq topic is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.declareExchangeLocked(topic); err != nil {
		return "", err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Headers:      make(amqp.Table, len(attrs)),
		Body:         data,
	}
	if r.durable {
		msg.DeliveryMode = amqp.Persistent
	}
	for key, value := range attrs {
		msg.Headers[key] = value
	}

	if err := r.channel.PublishWithContext(ctx, topic, "", false, false, msg); err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	return msg.MessageId, nil
}

// Subscribe consumes until ctx is cancelled. A handler error requeues the
// delivery.
func (r *RabbitMQClient) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("rabbitmq topic is required")
	}

	queue, err := r.bindConsumerQueue(topic)
	if err != nil {
		return err
	}

	tag := "cinerate-" + uuid.NewString()
	deliveries, err := r.channel.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}
	defer func() {
		_ = r.channel.Cancel(tag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			err := handler(ctx, Message{
				ID:         d.MessageId,
				Data:       d.Body,
				Attributes: headersToAttributes(d.Headers),
			})
			if err != nil {
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	var errs []error
	if r.channel != nil {
		errs = append(errs, r.channel.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	return errors.Join(errs...)
}

func (r *RabbitMQClient) bindConsumerQueue(topic string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.declareExchangeLocked(topic); err != nil {
		return "", err
	}

	q, err := r.channel.QueueDeclare(topic+consumerQueueSuffix, r.durable, r.autoDelete, false, false, nil)
	if err != nil {
		return "", fmt.Errorf("declare queue: %w", err)
	}
	if err := r.channel.QueueBind(q.Name, "", topic, false, nil); err != nil {
		return "", fmt.Errorf("bind %s to %s: %w", q.Name, topic, err)
	}
	return q.Name, nil
}

func (r *RabbitMQClient) declareExchangeLocked(topic string) error {
	if _, ok := r.exchanges[topic]; ok {
		return nil
	}
	err := r.channel.ExchangeDeclare(topic, amqp.ExchangeFanout, r.durable, r.autoDelete, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", topic, err)
	}
	r.exchanges[topic] = struct{}{}
	return nil
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch v := value.(type) {
		case string:
			attrs[key] = v
		case []byte:
			attrs[key] = string(v)
		default:
			attrs[key] = fmt.Sprint(v)
		}
	}
	return attrs
}
