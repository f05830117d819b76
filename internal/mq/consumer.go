package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — обработчик сообщения одного типа.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение. Ack/nack выполняет Consumer.
type Delivery struct {
	// Message — распарсенное сообщение.
	Message Message

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// ErrUnknownMessageType — для типа сообщения нет обработчика.
var ErrUnknownMessageType = errors.New("unknown message type")

// settlement — как Consumer подтверждает сообщение.
type settlement int

const (
	settleAck        settlement = iota // обработано
	settleRequeue                      // вернуть в очередь
	settleDeadLetter                   // отправить в DLQ
)

// settle выбирает подтверждение по результату обработки.
//
// Первая неудача возвращает сообщение в очередь, повторная отправляет
// его в DLQ. Сообщения без обработчика сразу уходят в DLQ.
func settle(err error, redelivered bool) settlement {
	switch {
	case err == nil:
		return settleAck
	case errors.Is(err, ErrUnknownMessageType):
		return settleDeadLetter
	case redelivered:
		return settleDeadLetter
	default:
		return settleRequeue
	}
}

// Consumer потребляет сообщения из очереди и раздаёт их обработчикам по типу.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	tag      string
	handlers map[MessageType]Handler
	prefetch int

	stop     chan struct{}
	stopOnce sync.Once
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — очередь.
	Queue Queue

	// Tag — consumer tag, виден в management UI. Пусто — генерирует сервер.
	Tag string

	// Handlers — обработчики по типу сообщения.
	Handlers map[MessageType]Handler

	// Prefetch — сколько неподтверждённых сообщений держать (default: 1).
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		tag:      cfg.Tag,
		handlers: cfg.Handlers,
		prefetch: prefetch,
		stop:     make(chan struct{}),
	}
}

// Start потребляет сообщения до отмены контекста или Stop.
// После разрыва соединения подписка восстанавливается автоматически.
func (c *Consumer) Start(ctx context.Context) error {
	select {
	case <-c.stop:
		return context.Canceled
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started", "tag", c.tag)
			err = c.drain(ctx, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

// Stop останавливает consumer. Безопасен из любой горутины и повторно.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// auto-ack выключен: подтверждаем после обработки
	deliveries, err := ch.Consume(string(c.queue), c.tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, raw)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message, dead-lettering", "error", err, "body", string(raw.Body))
		raw.Nack(false, false)
		return
	}

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)
	logger.Debug("received message", "redelivered", raw.Redelivered)

	err := c.dispatch(ctx, &Delivery{Message: msg, Raw: raw})

	switch settle(err, raw.Redelivered) {
	case settleAck:
		raw.Ack(false)
	case settleRequeue:
		logger.Warn("handler failed, requeueing", "error", err)
		raw.Nack(false, true)
	case settleDeadLetter:
		logger.Error("handler failed, dead-lettering", "error", err)
		raw.Nack(false, false)
	}
}

func (c *Consumer) dispatch(ctx context.Context, d *Delivery) error {
	h, ok := c.handlers[d.Message.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessageType, d.Message.Type)
	}
	return h(ctx, d)
}
