// Package repo 提供带缓存的商品仓储实现
package repo

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/cache"
	"github.com/MorseWayne/cloth_shop/internal/database"
	"github.com/MorseWayne/cloth_shop/internal/domain"
)

// CachedProductRepository 带缓存的商品仓储（cache-aside）
// 事务内的读取直接走数据库，保证结算看到的是最新价格
type CachedProductRepository struct {
	repo   ProductRepository
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProductRepository 创建带缓存的商品仓储
func NewCachedProductRepository(repo ProductRepository, c cache.Cache, ttl time.Duration, logger *zap.Logger) ProductRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProductRepository{
		repo:   repo,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

// Create 创建商品
func (r *CachedProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if err := r.repo.Create(ctx, product); err != nil {
		return err
	}
	r.invalidate(ctx, product.ID)
	return nil
}

// GetByID 根据ID获取商品（带缓存）
func (r *CachedProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	if database.InTx(ctx) {
		return r.repo.GetByID(ctx, id)
	}

	cacheKey := productCacheKey(id)

	// 尝试从缓存获取
	var product domain.Product
	if err := r.cache.Get(ctx, cacheKey, &product); err == nil {
		return &product, nil
	}

	// 缓存未命中，从数据库获取
	result, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	if err := r.cache.Set(ctx, cacheKey, result, r.ttl); err != nil {
		r.logger.Warn("failed to cache product", zap.Int64("product_id", id), zap.Error(err))
	}
	return result, nil
}

// UpdatePrice 修改售价（清除缓存）
func (r *CachedProductRepository) UpdatePrice(ctx context.Context, id int64, product *domain.Product) error {
	if err := r.repo.UpdatePrice(ctx, id, product); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// Delete 删除商品（清除缓存）
func (r *CachedProductRepository) Delete(ctx context.Context, id int64) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *CachedProductRepository) invalidate(ctx context.Context, id int64) {
	if err := r.cache.Del(ctx, productCacheKey(id)); err != nil {
		r.logger.Warn("failed to invalidate product cache", zap.Int64("product_id", id), zap.Error(err))
	}
}

// 缓存键生成方法
func productCacheKey(id int64) string {
	return fmt.Sprintf("product:id:%d", id)
}
