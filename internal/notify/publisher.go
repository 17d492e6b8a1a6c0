// Package notify публикует доменные уведомления в RabbitMQ.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mmeshcher/ticketing-system/internal/middleware"
	"github.com/mmeshcher/ticketing-system/internal/model"
)

// Exchange задаёт topic exchange, в который публикуются уведомления.
// Ключ маршрутизации совпадает с типом уведомления, например purchase.created.
const Exchange = "ticketing.events"

const (
	dialAttempts   = 10
	dialDelay      = 2 * time.Second
	publishTimeout = 5 * time.Second
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connection interface {
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

type dialFunc func() (connection, channel, error)

// Publisher отправляет уведомления в topic exchange RabbitMQ.
// После потери соединения с брокером Publisher переподключается в фоне.
type Publisher struct {
	mu     sync.Mutex
	conn   connection
	ch     channel
	closed bool
	done   chan struct{}

	dial       dialFunc
	logger     *zap.Logger
	timeout    time.Duration
	retryDelay time.Duration
}

// Dial подключается к брокеру с повторами и объявляет exchange.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Publisher, error) {
	dial := amqpDialer(url)

	var (
		conn connection
		ch   channel
		err  error
	)
	for i := 0; i < dialAttempts; i++ {
		conn, ch, err = dial()
		if err == nil {
			break
		}
		logger.Warn("rabbitmq is unavailable, retrying", zap.Error(err), zap.Int("attempt", i+1))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialDelay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", dialAttempts, err)
	}

	logger.Info("connected to rabbitmq", zap.String("exchange", Exchange))

	p := newPublisher(conn, ch, dial, logger)
	go p.watch(conn)
	return p, nil
}

func amqpDialer(url string) dialFunc {
	return func() (connection, channel, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, err
		}

		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("open channel: %w", err)
		}

		if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("declare exchange: %w", err)
		}
		return conn, ch, nil
	}
}

func newPublisher(conn connection, ch channel, dial dialFunc, logger *zap.Logger) *Publisher {
	return &Publisher{
		conn:       conn,
		ch:         ch,
		done:       make(chan struct{}),
		dial:       dial,
		logger:     logger,
		timeout:    publishTimeout,
		retryDelay: dialDelay,
	}
}

// watch ждёт разрыва соединения и переподключается, пока Publisher не закрыт.
func (p *Publisher) watch(conn connection) {
	for {
		lost := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-p.done:
			return
		case amqpErr := <-lost:
			if amqpErr != nil {
				p.logger.Warn("rabbitmq connection lost", zap.String("reason", amqpErr.Reason), zap.Int("code", amqpErr.Code))
			} else {
				p.logger.Warn("rabbitmq connection closed")
			}
		}

		conn = p.reconnect()
		if conn == nil {
			return
		}
	}
}

// reconnect повторяет подключение до успеха или закрытия Publisher.
// Возвращает nil, если Publisher закрыт.
func (p *Publisher) reconnect() connection {
	for attempt := 1; ; attempt++ {
		select {
		case <-p.done:
			return nil
		default:
		}

		conn, ch, err := p.dial()
		if err == nil {
			p.mu.Lock()
			if p.closed {
				p.mu.Unlock()
				_ = ch.Close()
				_ = conn.Close()
				return nil
			}
			p.conn, p.ch = conn, ch
			p.mu.Unlock()

			p.logger.Info("reconnected to rabbitmq", zap.Int("attempt", attempt))
			return conn
		}

		p.logger.Warn("rabbitmq reconnect failed", zap.Error(err), zap.Int("attempt", attempt))

		select {
		case <-p.done:
			return nil
		case <-time.After(p.retryDelay):
		}
	}
}

// Notify публикует уведомление. Ошибка публикации только логируется:
// к этому моменту транзакция уже зафиксирована.
func (p *Publisher) Notify(ctx context.Context, n model.Notification) {
	msg, err := encode(n, middleware.GetCorrelationID(ctx))
	if err != nil {
		p.logger.Error("encode notification", zap.Error(err), zap.String("type", string(n.Type)))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, Exchange, string(n.Type), false, false, msg)
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("publish notification",
			zap.Error(err),
			zap.String("type", string(n.Type)),
			zap.String("notification_id", n.ID),
		)
		return
	}

	p.logger.Debug("notification published",
		zap.String("type", string(n.Type)),
		zap.String("notification_id", n.ID),
		zap.String("correlation_id", msg.CorrelationId),
	)
}

// Close закрывает канал и соединение с брокером и останавливает переподключение.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func encode(n model.Notification, correlationID string) (amqp.Publishing, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return amqp.Publishing{}, err
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     n.ID,
		CorrelationId: correlationID,
		Type:          string(n.Type),
		Timestamp:     n.OccurredAt,
		DeliveryMode:  amqp.Persistent,
		Body:          body,
	}, nil
}

// Nop отбрасывает уведомления. Используется, когда брокер не настроен.
type Nop struct{}

// Notify ничего не делает.
func (Nop) Notify(context.Context, model.Notification) {}
