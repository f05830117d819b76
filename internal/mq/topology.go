package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeLoads Exchange = "gcs2bq.loads"
	ExchangeDLQ   Exchange = "gcs2bq.dlq"
)

// Queues — имена очередей.
const (
	QueueLoadsReady     Queue = "loads.ready"
	QueueLoadsCompleted Queue = "loads.completed"
	QueueDLQLoads       Queue = "dlq.loads"
)

// Routing keys.
const (
	RoutingKeyReady     RoutingKey = "ready"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQLoads  RoutingKey = "loads"
)

type queueBinding struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
	args       amqp.Table
}

// bindings описывает всю топологию: каждая очередь привязана ровно к одному exchange.
func bindings() []queueBinding {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQLoads),
	}

	return []queueBinding{
		// loads.ready — с DLQ, сюда попадают сообщения, которые Worker не смог обработать дважды
		{QueueLoadsReady, RoutingKeyReady, ExchangeLoads, dlqArgs},

		// loads.completed — события завершения для внешних потребителей
		{QueueLoadsCompleted, RoutingKeyCompleted, ExchangeLoads, nil},

		{QueueDLQLoads, RoutingKeyDLQLoads, ExchangeDLQ, nil},
	}
}

// SetupTopology объявляет exchanges, очереди и привязки. Операция идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range []Exchange{ExchangeLoads, ExchangeDLQ} {
			err := ch.ExchangeDeclare(
				string(ex), // name
				"direct",   // type
				true,       // durable
				false,      // auto-deleted
				false,      // internal
				false,      // no-wait
				nil,        // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, b := range bindings() {
			_, err := ch.QueueDeclare(
				string(b.queue), // name
				true,            // durable
				false,           // delete when unused
				false,           // exclusive
				false,           // no-wait
				b.args,          // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}

			err = ch.QueueBind(
				string(b.queue),      // queue name
				string(b.routingKey), // routing key
				string(b.exchange),   // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  gcs2bq RabbitMQ Topology:

    gcs2bq.loads (direct)
    ├── loads.ready [routing: ready]
    │       Consumer: Worker
    │       DLQ: dlq.loads
    └── loads.completed [routing: completed]
            Consumer: external subscribers

    gcs2bq.dlq (direct)
    └── dlq.loads [routing: loads]
            Manual processing
  `
}
