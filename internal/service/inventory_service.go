// Package service 实现库存业务逻辑层，所有库存变化都经由流水记录。
package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/database"
	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/repo"
)

const defaultAdjustmentReason = "manual stock update"

// InventoryService 定义库存业务逻辑接口
type InventoryService interface {
	// 变体
	GetVariant(ctx context.Context, key domain.VariantKey) (*domain.StockVariant, error)
	ListVariants(ctx context.Context, productID int64) ([]*domain.StockVariant, error)
	CreateVariants(ctx context.Context, productID int64, req *domain.CreateVariantsRequest, actor *int64) ([]*domain.StockVariant, error)

	// 流水
	Record(ctx context.Context, req *domain.RecordStockChangeRequest) (*domain.LedgerRecord, error)
	SetStock(ctx context.Context, req *domain.SetStockRequest, actor *int64) (*domain.LedgerRecord, error)
	QueryLogs(ctx context.Context, q *domain.LedgerQuery) (*domain.LedgerPage, error)
	Reconcile(ctx context.Context, productID *int64) ([]*domain.VariantDrift, error)
}

// inventoryService 实现InventoryService接口
type inventoryService struct {
	txm         database.TxManager
	variantRepo repo.VariantRepository
	productRepo repo.ProductRepository
	logQuery    repo.InventoryLogQuery
	ledger      *stockLedger
	logger      *zap.Logger
}

// NewInventoryService 创建库存服务实例
func NewInventoryService(
	txm database.TxManager,
	variantRepo repo.VariantRepository,
	logRepo repo.InventoryLogRepository,
	logQuery repo.InventoryLogQuery,
	productRepo repo.ProductRepository,
	logger *zap.Logger,
) InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inventoryService{
		txm:         txm,
		variantRepo: variantRepo,
		productRepo: productRepo,
		logQuery:    logQuery,
		ledger:      newStockLedger(variantRepo, logRepo, logger),
		logger:      logger,
	}
}

// GetVariant 查询单个变体
func (s *inventoryService) GetVariant(ctx context.Context, key domain.VariantKey) (*domain.StockVariant, error) {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}
	v, err := s.variantRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get stock variant: %w", err)
	}
	if v == nil {
		return nil, domain.NotFoundError("stock variant", key)
	}
	return v, nil
}

// ListVariants 查询商品的全部变体
func (s *inventoryService) ListVariants(ctx context.Context, productID int64) ([]*domain.StockVariant, error) {
	if productID <= 0 {
		return nil, domain.NewValidationError("product_id must be positive")
	}
	variants, err := s.variantRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock variants: %w", err)
	}
	if variants == nil {
		variants = []*domain.StockVariant{}
	}
	return variants, nil
}

// CreateVariants 初始化商品的变体矩阵
// 每个变体以 0 创建，非零初始数量通过 RESTOCK 流水写入，保证流水重放与库存一致
func (s *inventoryService) CreateVariants(ctx context.Context, productID int64, req *domain.CreateVariantsRequest, actor *int64) ([]*domain.StockVariant, error) {
	if err := req.Validate(productID); err != nil {
		return nil, err
	}

	created := make([]*domain.StockVariant, 0, len(req.Variants))
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		created = created[:0]
		if err := s.requireProduct(ctx, productID); err != nil {
			return err
		}

		for _, spec := range req.Variants {
			key := domain.VariantKey{ProductID: productID, Color: spec.Color, Size: spec.Size}.Normalize()

			existing, err := s.variantRepo.GetByKey(ctx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				return domain.NewValidationError("stock variant %s already exists", key)
			}

			v := &domain.StockVariant{ProductID: key.ProductID, Color: key.Color, Size: key.Size}
			if err := s.variantRepo.Create(ctx, v); err != nil {
				if database.IsDuplicateKey(err) {
					return domain.NewValidationError("stock variant %s already exists", key)
				}
				return err
			}

			if spec.InitialQuantity > 0 {
				rec, err := s.ledger.record(ctx, &domain.RecordStockChangeRequest{
					VariantKey: key,
					ChangeType: domain.ChangeTypeRestock,
					Quantity:   spec.InitialQuantity,
					Reason:     "initial stock",
					CreatedBy:  actor,
				})
				if err != nil {
					return err
				}
				v = rec.Variant
			}
			created = append(created, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock variants created",
		zap.Int64("product_id", productID),
		zap.Int("count", len(created)),
	)
	return created, nil
}

// Record 记录一条库存变更
// 1. 事务外完成全部校验
// 2. 事务内确认商品存在，锁定变体并按符号策略应用变化量
// 3. 追加流水后提交，任何失败都整体回滚
func (s *inventoryService) Record(ctx context.Context, req *domain.RecordStockChangeRequest) (rec *domain.LedgerRecord, err error) {
	ctx, span := tracer.Start(ctx, "InventoryService.Record")
	defer func() { endSpan(span, err) }()

	req.VariantKey = req.VariantKey.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("variant", req.VariantKey.String()),
		attribute.String("change_type", string(req.ChangeType)),
	)

	err = s.txm.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.requireProduct(ctx, req.ProductID); err != nil {
			return err
		}
		var err error
		rec, err = s.ledger.record(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock change recorded",
		zap.String("variant", req.VariantKey.String()),
		zap.String("change_type", string(req.ChangeType)),
		zap.Int("applied", rec.Entry.AppliedChange),
		zap.Int("quantity_after", rec.Entry.QuantityAfter),
	)
	return rec, nil
}

// SetStock 直接设定库存，记为一条差值 ADJUSTMENT 流水；数量未变化时不写流水
func (s *inventoryService) SetStock(ctx context.Context, req *domain.SetStockRequest, actor *int64) (*domain.LedgerRecord, error) {
	req.VariantKey = req.VariantKey.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	reason := req.Reason
	if reason == "" {
		reason = defaultAdjustmentReason
	}

	var rec *domain.LedgerRecord
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.requireProduct(ctx, req.ProductID); err != nil {
			return err
		}

		current, err := s.variantRepo.GetByKeyForUpdate(ctx, req.VariantKey)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.NotFoundError("stock variant", req.VariantKey)
		}

		diff := req.Quantity - current.Quantity
		if diff == 0 {
			rec = &domain.LedgerRecord{Variant: current}
			return nil
		}

		rec, err = s.ledger.record(ctx, &domain.RecordStockChangeRequest{
			VariantKey: req.VariantKey,
			ChangeType: domain.ChangeTypeAdjustment,
			Quantity:   diff,
			Reason:     reason,
			CreatedBy:  actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// QueryLogs 流水分页查询，走只读投影
func (s *inventoryService) QueryLogs(ctx context.Context, q *domain.LedgerQuery) (*domain.LedgerPage, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	entries, total, err := s.logQuery.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory logs: %w", err)
	}
	return &domain.LedgerPage{
		Entries:  entries,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}

// Reconcile 重放流水，返回 SUM(applied_change) 与当前库存不一致的变体
func (s *inventoryService) Reconcile(ctx context.Context, productID *int64) ([]*domain.VariantDrift, error) {
	sums, err := s.logQuery.ReplaySums(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to replay inventory logs: %w", err)
	}

	drifts := []*domain.VariantDrift{}
	for _, d := range sums {
		d.Drift = d.Quantity - d.LedgerSum
		if d.Drift != 0 {
			drifts = append(drifts, d)
			s.logger.Warn("inventory ledger drift detected",
				zap.String("variant", d.VariantKey.String()),
				zap.Int("quantity", d.Quantity),
				zap.Int("ledger_sum", d.LedgerSum),
			)
		}
	}
	return drifts, nil
}

// requireProduct 流水引用的商品必须存在
func (s *inventoryService) requireProduct(ctx context.Context, productID int64) error {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("product %d: %w", productID, domain.ErrReferenceNotFound)
	}
	return nil
}
