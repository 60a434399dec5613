package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/MorseWayne/cloth_shop/internal/database"
	"github.com/MorseWayne/cloth_shop/internal/domain"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64, offset, limit int) ([]*domain.Order, int64, error)

	// UpdateStatus 条件更新 WHERE status = from，返回受影响行数
	UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (int64, error)
	UpdatePaymentSlip(ctx context.Context, id int64, slipURL string) error
}

type orderRepo struct {
	db database.Executor
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db database.Executor) OrderRepository {
	return &orderRepo{db: db}
}

const orderColumns = `
	id, order_number, user_id, status, total, payment_method, payment_slip_url,
	ship_first_name, ship_last_name, ship_country, ship_postal_code, ship_phone, ship_address, ship_email,
	idempotency_key, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	var idemKey sql.NullString
	err := s.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.Status,
		&o.Total,
		&o.PaymentMethod,
		&o.PaymentSlipURL,
		&o.Shipping.FirstName,
		&o.Shipping.LastName,
		&o.Shipping.Country,
		&o.Shipping.PostalCode,
		&o.Shipping.PhoneNumber,
		&o.Shipping.HomeAddress,
		&o.Shipping.EmailAddress,
		&idemKey,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.IdempotencyKey = idemKey.String
	return o, nil
}

// Create 写入订单头和全部订单行
func (r *orderRepo) Create(ctx context.Context, o *domain.Order) error {
	conn := database.Conn(ctx, r.db)

	var idemKey sql.NullString
	if o.IdempotencyKey != "" {
		idemKey = sql.NullString{String: o.IdempotencyKey, Valid: true}
	}

	query := `
		INSERT INTO orders (order_number, user_id, status, total, payment_method, payment_slip_url,
			ship_first_name, ship_last_name, ship_country, ship_postal_code, ship_phone, ship_address, ship_email,
			idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := conn.ExecContext(ctx, query,
		o.OrderNumber,
		o.UserID,
		string(o.Status),
		o.Total,
		string(o.PaymentMethod),
		o.PaymentSlipURL,
		o.Shipping.FirstName,
		o.Shipping.LastName,
		o.Shipping.Country,
		o.Shipping.PostalCode,
		o.Shipping.PhoneNumber,
		o.Shipping.HomeAddress,
		o.Shipping.EmailAddress,
		idemKey,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	o.ID = id

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, product_name, color, size, quantity, unit_price, line_total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, it := range o.Items {
		it.OrderID = o.ID
		res, err := conn.ExecContext(ctx, itemQuery,
			it.OrderID, it.ProductID, it.ProductName, it.Color, it.Size, it.Quantity, it.UnitPrice, it.LineTotal)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
		if it.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

// GetByID 查询订单及订单行，不存在返回 nil, nil
func (r *orderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

// GetByIDForUpdate 锁定订单行，状态流转时使用
func (r *orderRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	if !database.InTx(ctx) {
		return nil, ErrTxRequired
	}
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ? FOR UPDATE`, id)
}

// GetByIdempotencyKey 按 (用户, 幂等键) 查找已经创建的订单
func (r *orderRepo) GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = ? AND idempotency_key = ?`, userID, key)
}

func (r *orderRepo) getOne(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(database.Conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.listItems(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListByUser 按创建时间倒序分页查询用户订单
func (r *orderRepo) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]*domain.Order, int64, error) {
	conn := database.Conn(ctx, r.db)

	var total int64
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := conn.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	var ids []int64
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate orders: %w", err)
	}

	items, err := r.listItems(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, o := range orders {
		o.Items = items[o.ID]
	}
	return orders, total, nil
}

// listItems 批量读取订单行，按订单 ID 分组
func (r *orderRepo) listItems(ctx context.Context, orderIDs []int64) (map[int64][]*domain.OrderItem, error) {
	grouped := make(map[int64][]*domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return grouped, nil
	}

	placeholders := strings.Repeat("?,", len(orderIDs)-1) + "?"
	query := fmt.Sprintf(`
		SELECT id, order_id, product_id, product_name, color, size, quantity, unit_price, line_total
		FROM order_items WHERE order_id IN (%s) ORDER BY id
	`, placeholders)

	args := make([]interface{}, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		it := &domain.OrderItem{}
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Color, &it.Size,
			&it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		grouped[it.OrderID] = append(grouped[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}
	return grouped, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (int64, error) {
	query := `UPDATE orders SET status = ? WHERE id = ? AND status = ?`
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, string(to), id, string(from))
	if err != nil {
		return 0, fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}

func (r *orderRepo) UpdatePaymentSlip(ctx context.Context, id int64, slipURL string) error {
	query := `UPDATE orders SET payment_slip_url = ? WHERE id = ?`
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, slipURL, id); err != nil {
		return fmt.Errorf("failed to update payment slip: %w", err)
	}
	return nil
}
