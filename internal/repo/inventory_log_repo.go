package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/MorseWayne/cloth_shop/internal/database"
	"github.com/MorseWayne/cloth_shop/internal/domain"
)

// InventoryLogRepository 库存流水写入接口
// 流水只追加，不提供更新与删除
type InventoryLogRepository interface {
	Append(ctx context.Context, entry *domain.InventoryLogEntry) error
	// AppliedByOrder 按变体汇总某订单某类流水实际生效的数量，事务内读取
	AppliedByOrder(ctx context.Context, orderID int64, changeType domain.ChangeType) (map[domain.VariantKey]int, error)
}

type inventoryLogRepo struct {
	db database.Executor
}

// NewInventoryLogRepository 创建库存流水仓储
func NewInventoryLogRepository(db database.Executor) InventoryLogRepository {
	return &inventoryLogRepo{db: db}
}

// Append 追加一条流水
func (r *inventoryLogRepo) Append(ctx context.Context, e *domain.InventoryLogEntry) error {
	query := `
		INSERT INTO inventory_logs
			(product_id, color, size, change_type, quantity_change, applied_change, quantity_after, reason, order_id, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query,
		e.ProductID,
		e.Color,
		e.Size,
		string(e.ChangeType),
		e.QuantityChange,
		e.AppliedChange,
		e.QuantityAfter,
		e.Reason,
		e.OrderID,
		e.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to append inventory log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// AppliedByOrder 汇总订单流水的 applied_change
func (r *inventoryLogRepo) AppliedByOrder(ctx context.Context, orderID int64, changeType domain.ChangeType) (map[domain.VariantKey]int, error) {
	query := `
		SELECT product_id, color, size, SUM(applied_change)
		FROM inventory_logs
		WHERE order_id = ? AND change_type = ?
		GROUP BY product_id, color, size
	`
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, orderID, string(changeType))
	if err != nil {
		return nil, fmt.Errorf("failed to sum inventory logs of order %d: %w", orderID, err)
	}
	defer rows.Close()

	sums := make(map[domain.VariantKey]int)
	for rows.Next() {
		var (
			key domain.VariantKey
			sum int
		)
		if err := rows.Scan(&key.ProductID, &key.Color, &key.Size, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan inventory log sum: %w", err)
		}
		sums[key] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inventory log sums: %w", err)
	}
	return sums, nil
}

// InventoryLogQuery 流水只读投影，可以挂在从库上
type InventoryLogQuery interface {
	Find(ctx context.Context, q *domain.LedgerQuery) ([]*domain.InventoryLogEntry, int64, error)
	ReplaySums(ctx context.Context, productID *int64) ([]*domain.VariantDrift, error)
	ProductIDsWithVariants(ctx context.Context) ([]int64, error)
}

type inventoryLogQuery struct {
	db *sqlx.DB
}

// NewInventoryLogQuery 创建流水查询
func NewInventoryLogQuery(db *sqlx.DB) InventoryLogQuery {
	return &inventoryLogQuery{db: db}
}

// Find 按商品、变体、类型、时间范围任意组合查询，按时间倒序分页
func (q *inventoryLogQuery) Find(ctx context.Context, lq *domain.LedgerQuery) ([]*domain.InventoryLogEntry, int64, error) {
	where, args := buildLedgerWhereClause(lq)

	var total int64
	countQuery := `SELECT COUNT(*) FROM inventory_logs` + where
	if err := q.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count inventory logs: %w", err)
	}

	listQuery := `
		SELECT id, product_id, color, size, change_type, quantity_change, applied_change,
		       quantity_after, reason, order_id, created_by, created_at
		FROM inventory_logs` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	listArgs := append(args, lq.PageSize, (lq.Page-1)*lq.PageSize)

	entries := []*domain.InventoryLogEntry{}
	if err := q.db.SelectContext(ctx, &entries, listQuery, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to query inventory logs: %w", err)
	}
	return entries, total, nil
}

// ReplaySums 在一次一致性读中返回每个变体的当前数量与流水实际变化量之和
func (q *inventoryLogQuery) ReplaySums(ctx context.Context, productID *int64) ([]*domain.VariantDrift, error) {
	query := `
		SELECT v.product_id, v.color, v.size, v.quantity,
		       CAST(COALESCE(SUM(l.applied_change), 0) AS SIGNED) AS ledger_sum
		FROM stock_variants v
		LEFT JOIN inventory_logs l
		       ON l.product_id = v.product_id AND l.color = v.color AND l.size = v.size`
	var args []interface{}
	if productID != nil {
		query += ` WHERE v.product_id = ?`
		args = append(args, *productID)
	}
	query += ` GROUP BY v.id, v.product_id, v.color, v.size, v.quantity ORDER BY v.product_id, v.color, v.size`

	rows := []*domain.VariantDrift{}
	if err := q.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to replay inventory logs: %w", err)
	}
	for _, r := range rows {
		r.Drift = r.Quantity - r.LedgerSum
	}
	return rows, nil
}

// ProductIDsWithVariants 返回所有拥有变体的商品 ID
func (q *inventoryLogQuery) ProductIDsWithVariants(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	if err := q.db.SelectContext(ctx, &ids, `SELECT DISTINCT product_id FROM stock_variants ORDER BY product_id`); err != nil {
		return nil, fmt.Errorf("failed to list products with variants: %w", err)
	}
	return ids, nil
}

// buildLedgerWhereClause 构建流水查询条件
func buildLedgerWhereClause(lq *domain.LedgerQuery) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if lq.ProductID != nil {
		conditions = append(conditions, "product_id = ?")
		args = append(args, *lq.ProductID)
	}
	if lq.Color != "" {
		conditions = append(conditions, "color = ?")
		args = append(args, lq.Color)
	}
	if lq.Size != "" {
		conditions = append(conditions, "size = ?")
		args = append(args, lq.Size)
	}
	if lq.ChangeType != "" {
		conditions = append(conditions, "change_type = ?")
		args = append(args, string(lq.ChangeType))
	}
	if lq.From != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *lq.From)
	}
	if lq.To != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, *lq.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
