// Package repo 实现数据访问层，负责与数据库的交互。
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MorseWayne/cloth_shop/internal/database"
	"github.com/MorseWayne/cloth_shop/internal/domain"
)

// ProductRepository 定义商品数据访问接口
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	UpdatePrice(ctx context.Context, id int64, product *domain.Product) error
	Delete(ctx context.Context, id int64) error
}

// productRepo 实现ProductRepository接口
type productRepo struct {
	db database.Executor
}

// NewProductRepository 创建商品仓储实例
func NewProductRepository(db database.Executor) ProductRepository {
	return &productRepo{db: db}
}

// Create 创建商品
func (r *productRepo) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (name, description, price, status)
		VALUES (?, ?, ?, ?)
	`
	if product.Status == "" {
		product.Status = domain.ProductStatusActive
	}

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query,
		product.Name,
		product.Description,
		product.Price,
		string(product.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	product.ID = id
	return nil
}

// GetByID 根据ID获取商品，已删除的商品视为不存在
func (r *productRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), price, status, created_at, updated_at
		FROM products
		WHERE id = ? AND status != 'deleted'
	`

	product := &domain.Product{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Status,
		&product.CreatedAt,
		&product.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by id: %w", err)
	}

	return product, nil
}

// UpdatePrice 修改售价，只影响之后的下单
func (r *productRepo) UpdatePrice(ctx context.Context, id int64, product *domain.Product) error {
	query := `UPDATE products SET price = ? WHERE id = ? AND status != 'deleted'`

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, product.Price, id)
	if err != nil {
		return fmt.Errorf("failed to update product price: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.NotFoundError("product", id)
		}
	}
	return nil
}

// Delete 软删除商品，历史订单仍然引用它
func (r *productRepo) Delete(ctx context.Context, id int64) error {
	query := `UPDATE products SET status = 'deleted' WHERE id = ?`

	_, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	return nil
}
