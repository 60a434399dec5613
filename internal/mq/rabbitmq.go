package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
)

// RabbitConfig RabbitMQ 发布配置
type RabbitConfig struct {
	URL               string
	Exchange          string
	HeartbeatInterval time.Duration
	ConfirmTimeout    time.Duration
	MaxRetryAttempts  int
	RetryInterval     time.Duration
}

// DefaultRabbitConfig 返回默认配置：topic 交换机，开启发布确认，失败重试 3 次
func DefaultRabbitConfig(url, exchange string) *RabbitConfig {
	return &RabbitConfig{
		URL:               url,
		Exchange:          exchange,
		HeartbeatInterval: 10 * time.Second,
		ConfirmTimeout:    5 * time.Second,
		MaxRetryAttempts:  3,
		RetryInterval:     500 * time.Millisecond,
	}
}

// RabbitPublisher 基于 amqp091-go 的订单事件发布者
// 单连接单通道，通道处于 confirm 模式；连接断开后在下次发布时重连
type RabbitPublisher struct {
	config *RabbitConfig
	logger *zap.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

// NewRabbitPublisher 建立连接并声明交换机
func NewRabbitPublisher(ctx context.Context, config *RabbitConfig, logger *zap.Logger) (*RabbitPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &RabbitPublisher{config: config, logger: logger}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitPublisher) connectLocked() error {
	conn, err := amqp.DialConfig(p.config.URL, amqp.Config{
		Heartbeat: p.config.HeartbeatInterval,
		Locale:    "en_US",
	})
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.config.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.config.Exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to set confirm mode: %w", err)
	}

	p.conn = conn
	p.ch = ch
	p.logger.Info("RabbitMQ连接成功", zap.String("exchange", p.config.Exchange))
	return nil
}

// channel 返回可用通道，必要时重连
func (p *RabbitPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New("publisher is closed")
	}
	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		if p.conn != nil && !p.conn.IsClosed() {
			_ = p.conn.Close()
		}
		p.logger.Warn("RabbitMQ连接已断开，重新连接")
		if err := p.connectLocked(); err != nil {
			return nil, err
		}
	}
	return p.ch, nil
}

// Publish 发布订单事件，路由键为事件类型（order.created / order.status_changed）
func (p *RabbitPublisher) Publish(ctx context.Context, event *domain.OrderEvent) error {
	body, err := encodeEvent(event)
	if err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	}

	var lastErr error
	maxAttempts := p.config.MaxRetryAttempts + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = p.publishOnce(ctx, string(event.Type), publishing)
		if lastErr == nil {
			return nil
		}

		p.logger.Warn("消息发布失败",
			zap.String("exchange", p.config.Exchange),
			zap.String("routing_key", string(event.Type)),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(lastErr))

		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(p.config.RetryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("failed to publish message after %d attempts: %w", maxAttempts, lastErr)
}

// publishOnce 单次发布并等待 broker 确认
func (p *RabbitPublisher) publishOnce(ctx context.Context, routingKey string, publishing amqp.Publishing) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.config.ConfirmTimeout)
	defer cancel()

	confirm, err := ch.PublishWithDeferredConfirmWithContext(publishCtx, p.config.Exchange, routingKey, false, false, publishing)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	acked, err := confirm.WaitContext(publishCtx)
	if err != nil {
		return fmt.Errorf("publish confirmation: %w", err)
	}
	if !acked {
		return errors.New("message was nacked by broker")
	}
	return nil
}

// Close 关闭连接
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.logger.Info("关闭RabbitMQ连接")
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
