package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MorseWayne/cloth_shop/internal/database"
	"github.com/MorseWayne/cloth_shop/internal/domain"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	// GetByUserID 读取购物车及全部行，用户没有购物车时返回 nil, nil
	GetByUserID(ctx context.Context, userID int64) (*domain.Cart, error)
	// GetByUserIDForUpdate 锁定购物车行后读取，必须在事务中调用
	GetByUserIDForUpdate(ctx context.Context, userID int64) (*domain.Cart, error)
	// GetOrCreate 返回用户的购物车（不含行），不存在时创建
	GetOrCreate(ctx context.Context, userID int64) (*domain.Cart, error)

	UpsertLine(ctx context.Context, cartID int64, key domain.VariantKey, quantity int) error
	UpdateLineQuantity(ctx context.Context, cartID, lineID int64, quantity int) error
	DeleteLine(ctx context.Context, cartID, lineID int64) (bool, error)
	DeleteLinesByProduct(ctx context.Context, cartID, productID int64) (int64, error)
	ClearLines(ctx context.Context, cartID int64) error
}

type cartRepo struct {
	db database.Executor
}

// NewCartRepository 创建购物车仓储
func NewCartRepository(db database.Executor) CartRepository {
	return &cartRepo{db: db}
}

func (r *cartRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Cart, error) {
	return r.getCart(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = ?`, userID)
}

func (r *cartRepo) GetByUserIDForUpdate(ctx context.Context, userID int64) (*domain.Cart, error) {
	if !database.InTx(ctx) {
		return nil, ErrTxRequired
	}
	return r.getCart(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = ? FOR UPDATE`, userID)
}

func (r *cartRepo) getCart(ctx context.Context, query string, userID int64) (*domain.Cart, error) {
	cart := &domain.Cart{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart of user %d: %w", userID, err)
	}

	lines, err := r.listLines(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Lines = lines
	return cart, nil
}

func (r *cartRepo) listLines(ctx context.Context, cartID int64) ([]*domain.CartLine, error) {
	query := `
		SELECT id, cart_id, product_id, color, size, quantity, created_at, updated_at
		FROM cart_lines WHERE cart_id = ? ORDER BY id
	`
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []*domain.CartLine{}
	for rows.Next() {
		l := &domain.CartLine{}
		if err := rows.Scan(&l.ID, &l.CartID, &l.ProductID, &l.Color, &l.Size, &l.Quantity, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart lines: %w", err)
	}
	return lines, nil
}

// GetOrCreate 依赖 carts.user_id 唯一键，并发创建时只会有一行；
// ON DUPLICATE KEY 分支同时对已存在的行加排他锁
func (r *cartRepo) GetOrCreate(ctx context.Context, userID int64) (*domain.Cart, error) {
	query := `INSERT INTO carts (user_id) VALUES (?) ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create cart: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return &domain.Cart{ID: id, UserID: userID, Lines: []*domain.CartLine{}}, nil
}

// UpsertLine 同一变体已在购物车中时数量累加
func (r *cartRepo) UpsertLine(ctx context.Context, cartID int64, key domain.VariantKey, quantity int) error {
	query := `
		INSERT INTO cart_lines (cart_id, product_id, color, size, quantity)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)
	`
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, cartID, key.ProductID, key.Color, key.Size, quantity); err != nil {
		return fmt.Errorf("failed to upsert cart line: %w", err)
	}
	return nil
}

func (r *cartRepo) UpdateLineQuantity(ctx context.Context, cartID, lineID int64, quantity int) error {
	query := `UPDATE cart_lines SET quantity = ? WHERE id = ? AND cart_id = ?`
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, quantity, lineID, cartID); err != nil {
		return fmt.Errorf("failed to update cart line: %w", err)
	}
	return nil
}

// DeleteLine 删除单行，返回是否删除了行
func (r *cartRepo) DeleteLine(ctx context.Context, cartID, lineID int64) (bool, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM cart_lines WHERE id = ? AND cart_id = ?`, lineID, cartID)
	if err != nil {
		return false, fmt.Errorf("failed to delete cart line: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteLinesByProduct 删除某商品的全部颜色尺码行
func (r *cartRepo) DeleteLinesByProduct(ctx context.Context, cartID, productID int64) (int64, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = ? AND product_id = ?`, cartID, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cart lines of product %d: %w", productID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}

func (r *cartRepo) ClearLines(ctx context.Context, cartID int64) error {
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = ?`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
