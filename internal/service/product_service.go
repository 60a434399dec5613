// Package service 实现业务逻辑层，协调各种资源完成业务需求。
package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/repo"
)

// ProductService 定义商品业务逻辑接口
// 商品只保留结算所需的字段：名称、描述、售价、状态
type ProductService interface {
	CreateProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	UpdatePrice(ctx context.Context, id int64, req *domain.UpdatePriceRequest) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// productService 实现ProductService接口
type productService struct {
	productRepo repo.ProductRepository
	logger      *zap.Logger
}

// NewProductService 创建商品服务实例
func NewProductService(productRepo repo.ProductRepository, logger *zap.Logger) ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &productService{
		productRepo: productRepo,
		logger:      logger,
	}
}

// CreateProduct 创建商品，新商品默认可售
func (s *productService) CreateProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	product := &domain.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Status:      domain.ProductStatusActive,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("price", product.Price.StringFixed(2)),
	)
	return product, nil
}

// GetProduct 获取商品，不存在或已删除返回 ErrNotFound
func (s *productService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, domain.NotFoundError("product", id)
	}
	return product, nil
}

// UpdatePrice 修改售价
// 已存在的订单行保存的是下单时刻的单价，不会被这里影响
func (s *productService) UpdatePrice(ctx context.Context, id int64, req *domain.UpdatePriceRequest) (*domain.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	old := product.Price
	product.Price = req.Price
	if err := s.productRepo.UpdatePrice(ctx, id, product); err != nil {
		return nil, fmt.Errorf("failed to update product price: %w", err)
	}

	s.logger.Info("product price updated",
		zap.Int64("product_id", id),
		zap.String("old_price", old.StringFixed(2)),
		zap.String("new_price", product.Price.StringFixed(2)),
	)
	return product, nil
}

// DeleteProduct 软删除商品
func (s *productService) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.GetProduct(ctx, id); err != nil {
		return err
	}
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	s.logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}
