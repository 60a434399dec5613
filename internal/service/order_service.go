package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/database"
	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/mq"
	"github.com/MorseWayne/cloth_shop/internal/repo"
	"github.com/MorseWayne/cloth_shop/internal/storage"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	publishTimeout       = 5 * time.Second
)

// OrderService 订单业务接口
type OrderService interface {
	Checkout(ctx context.Context, userID int64, req *domain.CheckoutRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	GetUserOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID int64, page, pageSize int) (*domain.OrderPage, error)
	UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus, actor *int64) (*domain.Order, error)
	CancelOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	AttachPaymentSlipURL(ctx context.Context, userID, orderID int64, url string) (*domain.Order, error)
	UploadPaymentSlip(ctx context.Context, userID, orderID int64, filename string, r io.Reader) (*domain.Order, error)
}

// OrderDeps 订单服务依赖
type OrderDeps struct {
	TxManager     database.TxManager
	Orders        repo.OrderRepository
	Carts         repo.CartRepository
	Products      repo.ProductRepository
	Users         repo.UserRepository
	Variants      repo.VariantRepository
	InventoryLogs repo.InventoryLogRepository
	Publisher     mq.Publisher
	SlipStore     storage.SlipStore
	Logger        *zap.Logger

	// StrictCheckout 为 true 时库存不足直接拒绝下单
	StrictCheckout bool
}

type orderService struct {
	txm       database.TxManager
	orders    repo.OrderRepository
	carts     repo.CartRepository
	products  repo.ProductRepository
	users     repo.UserRepository
	variants  repo.VariantRepository
	logs      repo.InventoryLogRepository
	ledger    *stockLedger
	publisher mq.Publisher
	slips     storage.SlipStore
	strict    bool
	logger    *zap.Logger
}

// NewOrderService 创建订单服务
func NewOrderService(deps OrderDeps) OrderService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	return &orderService{
		txm:       deps.TxManager,
		orders:    deps.Orders,
		carts:     deps.Carts,
		products:  deps.Products,
		users:     deps.Users,
		variants:  deps.Variants,
		logs:      deps.InventoryLogs,
		ledger:    newStockLedger(deps.Variants, deps.InventoryLogs, logger),
		publisher: publisher,
		slips:     deps.SlipStore,
		strict:    deps.StrictCheckout,
		logger:    logger,
	}
}

// Checkout 把购物车转换为订单，在一个可重试事务内完成：
// 1. 锁定购物车
// 2. 相同幂等键的订单已存在时直接返回，否则空购物车拒绝
// 3. 按当前价格生成订单行并计算总额
// 4. 写入订单，逐行记 ORDER 流水扣减库存
// 5. 清空购物车
// 提交后发布 order.created 事件，发布失败只记日志
func (s *orderService) Checkout(ctx context.Context, userID int64, req *domain.CheckoutRequest) (order *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.Checkout")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int64("user_id", userID))

	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.NotFoundError("user", userID)
	}

	replayed := false
	err = s.txm.WithinTx(ctx, func(ctx context.Context) error {
		order, replayed = nil, false

		// 先锁购物车再查幂等键：同键的并发请求在锁上排队，拿到锁时能读到先提交的订单
		cart, err := s.carts.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		if req.IdempotencyKey != "" {
			existing, err := s.orders.GetByIdempotencyKey(ctx, userID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				order, replayed = existing, true
				return nil
			}
		}

		if cart.IsEmpty() {
			return domain.ErrEmptyCart
		}

		o := &domain.Order{
			OrderNumber:    newOrderNumber(),
			UserID:         userID,
			Status:         domain.OrderStatusPending,
			PaymentMethod:  req.Payment.Method,
			PaymentSlipURL: req.Payment.SlipURL,
			Shipping:       req.Shipping,
			IdempotencyKey: req.IdempotencyKey,
		}
		for _, line := range cart.Lines {
			p, err := s.products.GetByID(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if p == nil || !p.IsAvailable() {
				return fmt.Errorf("product %d: %w", line.ProductID, domain.ErrProductUnavailable)
			}
			o.Items = append(o.Items, domain.NewOrderItem(p, line))
		}
		o.Total = o.ComputeTotal()

		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}

		for _, it := range o.Items {
			if err := s.consumeStock(ctx, o, it, userID); err != nil {
				return err
			}
		}

		if err := s.carts.ClearLines(ctx, cart.ID); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		// 并发的同键请求撞上唯一索引，返回先提交的那一单
		if req.IdempotencyKey != "" && database.IsDuplicateKey(err) {
			existing, getErr := s.orders.GetByIdempotencyKey(ctx, userID, req.IdempotencyKey)
			if getErr == nil && existing != nil {
				s.logger.Info("checkout replayed after concurrent duplicate",
					zap.Int64("user_id", userID),
					zap.String("order_number", existing.OrderNumber),
				)
				return existing, nil
			}
		}
		return nil, err
	}

	if replayed {
		s.logger.Info("checkout replayed", zap.Int64("user_id", userID), zap.String("order_number", order.OrderNumber))
		return order, nil
	}

	span.SetAttributes(attribute.String("order_number", order.OrderNumber))
	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", userID),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)
	s.publish(ctx, domain.OrderEventCreated, order, "")
	return order, nil
}

// consumeStock 为订单行记一条 ORDER 流水
func (s *orderService) consumeStock(ctx context.Context, o *domain.Order, it *domain.OrderItem, userID int64) error {
	key := it.Key()

	if s.strict {
		v, err := s.variants.GetByKeyForUpdate(ctx, key)
		if err != nil {
			return err
		}
		if v == nil {
			return fmt.Errorf("stock variant %s: %w", key, domain.ErrProductUnavailable)
		}
		if v.Quantity < it.Quantity {
			return fmt.Errorf("stock variant %s has %d, requested %d: %w", key, v.Quantity, it.Quantity, domain.ErrInsufficientStock)
		}
	}

	orderID := o.ID
	_, err := s.ledger.record(ctx, &domain.RecordStockChangeRequest{
		VariantKey: key,
		ChangeType: domain.ChangeTypeOrder,
		Quantity:   it.Quantity,
		Reason:     "order " + o.OrderNumber,
		OrderID:    &orderID,
		CreatedBy:  &userID,
	})
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("stock variant %s: %w", key, domain.ErrProductUnavailable)
	}
	return err
}

// GetOrder 查询订单（店员使用）
func (s *orderService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if o == nil {
		return nil, domain.NotFoundError("order", orderID)
	}
	return o, nil
}

// GetUserOrder 查询用户自己的订单
func (s *orderService) GetUserOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", orderID, domain.ErrForbidden)
	}
	return o, nil
}

// ListUserOrders 按创建时间倒序分页
func (s *orderService) ListUserOrders(ctx context.Context, userID int64, page, pageSize int) (*domain.OrderPage, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultOrderPageSize
	}
	if pageSize > maxOrderPageSize {
		pageSize = maxOrderPageSize
	}

	orders, total, err := s.orders.ListByUser(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return &domain.OrderPage{Orders: orders, Total: total, Page: page, PageSize: pageSize}, nil
}

// UpdateStatus 按状态机修改订单状态，进入 CANCELLED 时回补库存
func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus, actor *int64) (order *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateStatus")
	defer func() { endSpan(span, err) }()

	next, err := domain.ParseOrderStatus(string(status))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order_id", orderID), attribute.String("status", string(next)))

	return s.transition(ctx, orderID, next, actor, nil)
}

// CancelOrder 顾客取消自己尚未支付的订单
func (s *orderService) CancelOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	return s.transition(ctx, orderID, domain.OrderStatusCancelled, &userID, func(o *domain.Order) error {
		if o.UserID != userID {
			return fmt.Errorf("order %d: %w", orderID, domain.ErrForbidden)
		}
		if o.Status != domain.OrderStatusPending {
			return fmt.Errorf("%w: only pending orders can be cancelled by the customer", domain.ErrInvalidTransition)
		}
		return nil
	})
}

// transition 锁定订单后做状态流转，check 为额外的前置检查
func (s *orderService) transition(ctx context.Context, orderID int64, next domain.OrderStatus, actor *int64, check func(o *domain.Order) error) (*domain.Order, error) {
	var (
		order    *domain.Order
		previous domain.OrderStatus
	)
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.NotFoundError("order", orderID)
		}
		if check != nil {
			if err := check(o); err != nil {
				return err
			}
		}
		if !o.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, next)
		}

		affected, err := s.orders.UpdateStatus(ctx, o.ID, o.Status, next)
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("order %d status changed concurrently: %w", o.ID, domain.ErrConcurrencyConflict)
		}

		if next == domain.OrderStatusCancelled {
			if err := s.restoreStock(ctx, o, actor); err != nil {
				return err
			}
		}

		previous = o.Status
		o.Status = next
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
	)
	s.publish(ctx, domain.OrderEventStatusChanged, order, previous)
	return order, nil
}

// restoreStock 按 ORDER 流水实际扣减的数量回补库存
// 下单时被截断到 0 的部分没有真正出库，不回补
func (s *orderService) restoreStock(ctx context.Context, o *domain.Order, actor *int64) error {
	applied, err := s.logs.AppliedByOrder(ctx, o.ID, domain.ChangeTypeOrder)
	if err != nil {
		return err
	}

	keys := make([]domain.VariantKey, 0, len(applied))
	for key, sum := range applied {
		if sum < 0 {
			keys = append(keys, key)
		}
	}
	// 固定加锁顺序
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	orderID := o.ID
	for _, key := range keys {
		if _, err := s.ledger.record(ctx, &domain.RecordStockChangeRequest{
			VariantKey: key,
			ChangeType: domain.ChangeTypeCancel,
			Quantity:   -applied[key],
			Reason:     fmt.Sprintf("order %s cancelled", o.OrderNumber),
			OrderID:    &orderID,
			CreatedBy:  actor,
		}); err != nil {
			return err
		}
	}
	return nil
}

// AttachPaymentSlipURL 记录付款凭证链接
func (s *orderService) AttachPaymentSlipURL(ctx context.Context, userID, orderID int64, url string) (*domain.Order, error) {
	if err := domain.ValidateSlipURL(url); err != nil {
		return nil, err
	}
	return s.attachSlip(ctx, userID, orderID, url)
}

// UploadPaymentSlip 保存付款凭证文件，订单上只记录存储返回的引用
func (s *orderService) UploadPaymentSlip(ctx context.Context, userID, orderID int64, filename string, r io.Reader) (*domain.Order, error) {
	ext, err := domain.ValidateSlipFilename(filename)
	if err != nil {
		return nil, err
	}
	if s.slips == nil {
		return nil, errors.New("payment slip storage is not configured")
	}

	// 先检查一次，避免为不接受凭证的订单写文件
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := checkSlipTarget(o, userID); err != nil {
		return nil, err
	}

	ref, err := s.slips.Save(ctx, o.OrderNumber, ext, r)
	if err != nil {
		if errors.Is(err, storage.ErrSlipTooLarge) {
			return nil, domain.NewValidationError("payment slip must not exceed %d bytes", storage.MaxSlipSize)
		}
		return nil, fmt.Errorf("failed to save payment slip: %w", err)
	}
	return s.attachSlip(ctx, userID, orderID, ref)
}

func (s *orderService) attachSlip(ctx context.Context, userID, orderID int64, ref string) (*domain.Order, error) {
	var order *domain.Order
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.NotFoundError("order", orderID)
		}
		if err := checkSlipTarget(o, userID); err != nil {
			return err
		}
		if err := s.orders.UpdatePaymentSlip(ctx, o.ID, ref); err != nil {
			return err
		}
		o.PaymentSlipURL = ref
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment slip attached", zap.Int64("order_id", orderID), zap.String("ref", ref))
	return order, nil
}

func checkSlipTarget(o *domain.Order, userID int64) error {
	if o.UserID != userID {
		return fmt.Errorf("order %d: %w", o.ID, domain.ErrForbidden)
	}
	if !o.CanAttachPaymentSlip() {
		return domain.NewValidationError("order %s is %s and no longer accepts a payment slip", o.OrderNumber, o.Status)
	}
	if o.PaymentMethod != domain.PaymentMethodPaymentSlip {
		return domain.NewValidationError("order %s is paid by %s", o.OrderNumber, o.PaymentMethod)
	}
	return nil
}

// publish 事务提交后发布事件，失败不影响已提交的订单
func (s *orderService) publish(ctx context.Context, t domain.OrderEventType, o *domain.Order, previous domain.OrderStatus) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := domain.NewOrderEvent(t, o, previous)
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		s.logger.Warn("failed to publish order event",
			zap.String("type", string(t)),
			zap.String("order_number", o.OrderNumber),
			zap.Error(err),
		)
	}
}

func newOrderNumber() string {
	return "ORD-" + uuid.NewString()
}
