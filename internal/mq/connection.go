package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Параметры соединения по умолчанию.
const (
	defaultHeartbeat      = 10 * time.Second
	defaultReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
)

// Connection — AMQP соединение с одним каналом и автоматическим переподключением.
//
// Разрыв соединения обнаруживается через NotifyClose. Повторные попытки
// идут с удвоением задержки от 1 до 30 секунд, подписчики узнают об успехе
// через ReconnectNotify.
type Connection struct {
	url    string
	name   string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	done        chan struct{}
	reconnected chan struct{}
}

// ConnectionOption настраивает Connection.
type ConnectionOption func(*Connection)

// WithName задаёт имя соединения (client property connection_name),
// под которым его видно в management UI.
func WithName(name string) ConnectionOption {
	return func(c *Connection) {
		c.name = name
	}
}

// NewConnection подключается к RabbitMQ и запускает наблюдение за соединением.
func NewConnection(url string, logger *slog.Logger, opts ...ConnectionOption) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connection{
		url:         url,
		name:        "gcs2bq",
		logger:      logger,
		done:        make(chan struct{}),
		reconnected: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.dial(); err != nil {
		return nil, err
	}

	go c.watch()

	return c, nil
}

func (c *Connection) dial() error {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(c.name)

	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat:  defaultHeartbeat,
		Properties: props,
	})
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to RabbitMQ", "vhost", conn.Config.Vhost, "name", c.name)
	return nil
}

// watch ждёт разрыва соединения и переподключается, пока Connection не закрыт.
func (c *Connection) watch() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		closed := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.done:
			return
		case err := <-closed:
			if err != nil {
				c.logger.Warn("connection lost", "error", err)
			}
		}

		if !c.redial() {
			return
		}

		select {
		case c.reconnected <- struct{}{}:
		default:
		}
	}
}

// redial повторяет подключение с растущей задержкой.
// Возвращает false, если Connection закрыли во время ожидания.
func (c *Connection) redial() bool {
	delay := defaultReconnectDelay

	for {
		c.logger.Info("attempting to reconnect", "delay", delay)

		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		if err := c.dial(); err != nil {
			c.logger.Warn("reconnect failed", "error", err)
			delay = min(delay*2, maxReconnectDelay)
			continue
		}

		c.logger.Info("reconnected to RabbitMQ")
		return true
	}
}

// Channel возвращает текущий AMQP канал (nil до подключения).
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// ReconnectNotify сигнализирует об успешном переподключении.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnected
}

// IsConnected проверяет, открыто ли соединение.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// WithChannel выполняет fn с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch := c.Channel()
	if ch == nil || ch.IsClosed() {
		return ErrNoChannel
	}
	return fn(ch)
}

// Close закрывает канал и соединение. Повторный вызов ничего не делает.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	var errs []error
	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.logger.Info("RabbitMQ connection closed")
	return errors.Join(errs...)
}
