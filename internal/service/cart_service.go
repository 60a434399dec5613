package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/database"
	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/repo"
)

// CartService 购物车业务接口
// 购物车只表达购买意向，加购时不检查也不占用库存
type CartService interface {
	AddLine(ctx context.Context, userID int64, req *domain.AddCartLineRequest) (*domain.Cart, error)
	UpdateLineQuantity(ctx context.Context, userID, lineID int64, quantity int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, userID, productID int64) (*domain.Cart, error)
	RemoveLineByID(ctx context.Context, userID, lineID int64) (*domain.Cart, error)
	Clear(ctx context.Context, userID int64) error
	Snapshot(ctx context.Context, userID int64) (*domain.Cart, error)
}

type cartService struct {
	txm         database.TxManager
	cartRepo    repo.CartRepository
	productRepo repo.ProductRepository
	logger      *zap.Logger
}

// NewCartService 创建购物车服务
func NewCartService(txm database.TxManager, cartRepo repo.CartRepository, productRepo repo.ProductRepository, logger *zap.Logger) CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cartService{
		txm:         txm,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		logger:      logger,
	}
}

// AddLine 加入购物车，同一变体合并数量
func (s *cartService) AddLine(ctx context.Context, userID int64, req *domain.AddCartLineRequest) (*domain.Cart, error) {
	req.VariantKey = req.VariantKey.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil || !product.IsAvailable() {
		return nil, fmt.Errorf("product %d: %w", req.ProductID, domain.ErrProductUnavailable)
	}

	var cart *domain.Cart
	err = s.txm.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.cartRepo.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.cartRepo.UpsertLine(ctx, c.ID, req.VariantKey, req.Quantity); err != nil {
			return err
		}
		cart, err = s.cartRepo.GetByUserIDForUpdate(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("cart line added",
		zap.Int64("user_id", userID),
		zap.String("variant", req.VariantKey.String()),
		zap.Int("quantity", req.Quantity),
	)
	return cart, nil
}

// UpdateLineQuantity 修改购物车行数量，行必须属于该用户
func (s *cartService) UpdateLineQuantity(ctx context.Context, userID, lineID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.NewValidationError("quantity must be at least 1")
	}

	return s.mutate(ctx, userID, func(ctx context.Context, cart *domain.Cart) error {
		if !hasLine(cart, lineID) {
			return domain.NotFoundError("cart line", lineID)
		}
		return s.cartRepo.UpdateLineQuantity(ctx, cart.ID, lineID, quantity)
	})
}

// RemoveLine 移除某商品的全部行
func (s *cartService) RemoveLine(ctx context.Context, userID, productID int64) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(ctx context.Context, cart *domain.Cart) error {
		n, err := s.cartRepo.DeleteLinesByProduct(ctx, cart.ID, productID)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.NotFoundError("cart line of product", productID)
		}
		return nil
	})
}

// RemoveLineByID 移除单个购物车行
func (s *cartService) RemoveLineByID(ctx context.Context, userID, lineID int64) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(ctx context.Context, cart *domain.Cart) error {
		deleted, err := s.cartRepo.DeleteLine(ctx, cart.ID, lineID)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.NotFoundError("cart line", lineID)
		}
		return nil
	})
}

// Clear 清空购物车，没有购物车时什么也不做
func (s *cartService) Clear(ctx context.Context, userID int64) error {
	return s.txm.WithinTx(ctx, func(ctx context.Context) error {
		cart, err := s.cartRepo.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if cart == nil {
			return nil
		}
		return s.cartRepo.ClearLines(ctx, cart.ID)
	})
}

// Snapshot 在一个事务内锁定并读取购物车及全部行，用户没有购物车时返回空购物车
func (s *cartService) Snapshot(ctx context.Context, userID int64) (*domain.Cart, error) {
	var cart *domain.Cart
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		cart, err = s.cartRepo.GetByUserIDForUpdate(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &domain.Cart{UserID: userID, Lines: []*domain.CartLine{}}
	}
	return cart, nil
}

// mutate 锁定购物车执行修改并返回修改后的快照
func (s *cartService) mutate(ctx context.Context, userID int64, fn func(ctx context.Context, cart *domain.Cart) error) (*domain.Cart, error) {
	var cart *domain.Cart
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.cartRepo.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.NotFoundError("cart of user", userID)
		}
		if err := fn(ctx, c); err != nil {
			return err
		}
		cart, err = s.cartRepo.GetByUserIDForUpdate(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func hasLine(cart *domain.Cart, lineID int64) bool {
	for _, l := range cart.Lines {
		if l.ID == lineID {
			return true
		}
	}
	return false
}
