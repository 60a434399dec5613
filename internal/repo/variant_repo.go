// Package repo 提供数据访问层实现，负责与数据库交互。
// 所有方法通过 database.Conn 选择执行者：ctx 中有事务时走事务，否则走连接池。
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MorseWayne/cloth_shop/internal/database"
	"github.com/MorseWayne/cloth_shop/internal/domain"
)

// ErrTxRequired 行锁类操作必须在事务中调用
var ErrTxRequired = errors.New("operation requires a transaction")

// VariantRepository 库存变体数据访问接口
type VariantRepository interface {
	Create(ctx context.Context, v *domain.StockVariant) error
	GetByKey(ctx context.Context, key domain.VariantKey) (*domain.StockVariant, error)
	ListByProduct(ctx context.Context, productID int64) ([]*domain.StockVariant, error)

	// 行锁操作，必须在事务中调用
	GetByKeyForUpdate(ctx context.Context, key domain.VariantKey) (*domain.StockVariant, error)
	ApplyDelta(ctx context.Context, key domain.VariantKey, delta int) (domain.VariantChange, error)
}

type variantRepo struct {
	db database.Executor
}

// NewVariantRepository 创建库存变体仓储
func NewVariantRepository(db database.Executor) VariantRepository {
	return &variantRepo{db: db}
}

const variantColumns = `id, product_id, color, size, quantity, available, created_at, updated_at`

// Create 创建变体，数量为 0 时不可售
func (r *variantRepo) Create(ctx context.Context, v *domain.StockVariant) error {
	query := `
		INSERT INTO stock_variants (product_id, color, size, quantity, available)
		VALUES (?, ?, ?, ?, ?)
	`
	v.Available = v.Quantity > 0

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, v.ProductID, v.Color, v.Size, v.Quantity, v.Available)
	if err != nil {
		return fmt.Errorf("failed to create stock variant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	v.ID = id
	return nil
}

// GetByKey 按 (商品, 颜色, 尺码) 查询，不存在返回 nil, nil
func (r *variantRepo) GetByKey(ctx context.Context, key domain.VariantKey) (*domain.StockVariant, error) {
	query := `SELECT ` + variantColumns + ` FROM stock_variants WHERE product_id = ? AND color = ? AND size = ?`
	return r.getOne(ctx, query, key)
}

// GetByKeyForUpdate 加行锁读取
func (r *variantRepo) GetByKeyForUpdate(ctx context.Context, key domain.VariantKey) (*domain.StockVariant, error) {
	if !database.InTx(ctx) {
		return nil, ErrTxRequired
	}
	query := `SELECT ` + variantColumns + ` FROM stock_variants WHERE product_id = ? AND color = ? AND size = ? FOR UPDATE`
	return r.getOne(ctx, query, key)
}

func (r *variantRepo) getOne(ctx context.Context, query string, key domain.VariantKey) (*domain.StockVariant, error) {
	v := &domain.StockVariant{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, key.ProductID, key.Color, key.Size).Scan(
		&v.ID,
		&v.ProductID,
		&v.Color,
		&v.Size,
		&v.Quantity,
		&v.Available,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock variant %s: %w", key, err)
	}
	return v, nil
}

// ListByProduct 查询商品的全部变体
func (r *variantRepo) ListByProduct(ctx context.Context, productID int64) ([]*domain.StockVariant, error) {
	query := `SELECT ` + variantColumns + ` FROM stock_variants WHERE product_id = ? ORDER BY color, size`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock variants: %w", err)
	}
	defer rows.Close()

	var variants []*domain.StockVariant
	for rows.Next() {
		v := &domain.StockVariant{}
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Color, &v.Size, &v.Quantity, &v.Available, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock variant: %w", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stock variants: %w", err)
	}
	return variants, nil
}

// ApplyDelta 原子地对变体应用带符号变化量
// 先 SELECT ... FOR UPDATE 锁定行，再一次 UPDATE 写回截断后的数量与可售状态，
// 同一变体上的并发变更被行锁串行化，不会丢失更新
func (r *variantRepo) ApplyDelta(ctx context.Context, key domain.VariantKey, delta int) (domain.VariantChange, error) {
	v, err := r.GetByKeyForUpdate(ctx, key)
	if err != nil {
		return domain.VariantChange{}, err
	}
	if v == nil {
		return domain.VariantChange{}, domain.NotFoundError("stock variant", key)
	}

	previous := v.Quantity
	applied := v.ApplyDelta(delta)

	query := `UPDATE stock_variants SET quantity = ?, available = ? WHERE id = ?`
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, v.Quantity, v.Available, v.ID)
	if err != nil {
		return domain.VariantChange{}, fmt.Errorf("failed to update stock variant %s: %w", key, err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 && applied != 0 {
		return domain.VariantChange{}, fmt.Errorf("stock variant %s: %w", key, domain.ErrConcurrencyConflict)
	}

	return domain.VariantChange{Variant: v, Previous: previous, Applied: applied}, nil
}
