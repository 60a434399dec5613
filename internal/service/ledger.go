package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/repo"
)

var tracer = otel.Tracer("github.com/MorseWayne/cloth_shop/internal/service")

// endSpan 记录错误并结束 span
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// stockLedger 库存变更的唯一入口：锁定变体、截断应用变化量、追加流水
// 调用方必须已经开启事务，变体更新与流水写入在同一事务内提交或回滚
type stockLedger struct {
	variants repo.VariantRepository
	logs     repo.InventoryLogRepository
	logger   *zap.Logger
}

func newStockLedger(variants repo.VariantRepository, logs repo.InventoryLogRepository, logger *zap.Logger) *stockLedger {
	return &stockLedger{variants: variants, logs: logs, logger: logger}
}

// record 应用一条已校验的库存变更
func (l *stockLedger) record(ctx context.Context, req *domain.RecordStockChangeRequest) (*domain.LedgerRecord, error) {
	key := req.VariantKey.Normalize()

	delta, err := domain.SignedDelta(req.ChangeType, req.Quantity)
	if err != nil {
		return nil, err
	}

	change, err := l.variants.ApplyDelta(ctx, key, delta)
	if err != nil {
		return nil, err
	}

	entry := &domain.InventoryLogEntry{
		ProductID:      key.ProductID,
		Color:          key.Color,
		Size:           key.Size,
		ChangeType:     req.ChangeType,
		QuantityChange: delta,
		AppliedChange:  change.Applied,
		QuantityAfter:  change.Variant.Quantity,
		Reason:         req.Reason,
		OrderID:        req.OrderID,
		CreatedBy:      req.CreatedBy,
		CreatedAt:      time.Now().UTC(),
	}
	if err := l.logs.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append inventory log for %s: %w", key, err)
	}

	if entry.Clamped() {
		l.logger.Warn("stock change clamped at zero",
			zap.String("variant", key.String()),
			zap.String("change_type", string(req.ChangeType)),
			zap.Int("requested", delta),
			zap.Int("applied", change.Applied),
		)
	}
	if change.BecameUnavailable() {
		l.logger.Info("stock variant sold out", zap.String("variant", key.String()))
	}

	return &domain.LedgerRecord{Entry: entry, Variant: change.Variant}, nil
}
