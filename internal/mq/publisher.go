// Package mq 负责把订单事件发布到消息中间件（RabbitMQ 或 Kafka）。
// 发布发生在事务提交之后，失败只记录日志，不影响已提交的订单。
package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/config"
	"github.com/MorseWayne/cloth_shop/internal/domain"
)

// Publisher 订单事件发布接口
type Publisher interface {
	Publish(ctx context.Context, event *domain.OrderEvent) error
	Close() error
}

// NopPublisher 未配置消息中间件时使用
type NopPublisher struct{}

// Publish 丢弃事件
func (NopPublisher) Publish(ctx context.Context, event *domain.OrderEvent) error { return nil }

// Close 无操作
func (NopPublisher) Close() error { return nil }

// New 按 MQ_DRIVER 创建发布者
func New(ctx context.Context, cfg config.MQConfig, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "rabbitmq":
		return NewRabbitPublisher(ctx, DefaultRabbitConfig(cfg.RabbitURL, cfg.Exchange), logger)
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger), nil
	case "", "none":
		return NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unsupported mq driver %q", cfg.Driver)
	}
}

// encodeEvent 事件统一编码为 JSON，路由键 / 消息键取事件类型与订单号
func encodeEvent(event *domain.OrderEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return body, nil
}
