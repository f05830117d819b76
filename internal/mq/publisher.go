package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher отправляет сообщения в exchange gcs2bq.loads.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish отправляет сообщение как persistent JSON.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	pub, err := publishing(msg)
	if err != nil {
		return err
	}

	err = p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, pub)
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s/%s: %w", msg.Type, exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// PublishLoadReady будит Worker'ов: загрузка taskID ждёт выполнения.
func (p *Publisher) PublishLoadReady(ctx context.Context, taskID uuid.UUID) error {
	return p.publishPayload(ctx, RoutingKeyReady, MessageTypeLoadReady, LoadReadyPayload{TaskID: taskID})
}

// PublishLoadCompleted сообщает о результате загрузки.
func (p *Publisher) PublishLoadCompleted(ctx context.Context, payload LoadCompletedPayload) error {
	return p.publishPayload(ctx, RoutingKeyCompleted, MessageTypeLoadCompleted, payload)
}

func (p *Publisher) publishPayload(ctx context.Context, key RoutingKey, msgType MessageType, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeLoads, key, msg)
}

// publishing собирает AMQP сообщение из конверта.
func publishing(msg *Message) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	}, nil
}
