package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
)

// Executor 由 *sql.DB 与 *sql.Tx 共同实现，仓储只依赖它
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// Conn 返回 ctx 中携带的事务，没有时返回 fallback
func Conn(ctx context.Context, fallback Executor) Executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return fallback
}

// InTx ctx 是否已处于事务中
func InTx(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok && tx != nil
}

// ContextWithTx 把事务放入 ctx
func ContextWithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxOptions 事务选项
type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	MaxRetries     int
	BaseBackoff    time.Duration
}

// DefaultTxOptions 读已提交 + 行锁，死锁与锁等待超时最多重试 3 次
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		ReadOnly:       false,
		MaxRetries:     3,
		BaseBackoff:    50 * time.Millisecond,
	}
}

// TxManager 事务管理器，fn 内通过 ctx 获取事务
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLTxManager 基于 database/sql 的事务管理器
type SQLTxManager struct {
	db     *sql.DB
	opts   TxOptions
	logger *zap.Logger
}

// NewTxManager 创建事务管理器
func NewTxManager(db *sql.DB, opts TxOptions, logger *zap.Logger) *SQLTxManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLTxManager{db: db, opts: opts, logger: logger}
}

// WithinTx 在事务中执行 fn，可重试错误按指数退避重试
// 已在事务中时直接复用外层事务，由外层负责提交与重试
func (m *SQLTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	err := WithRetry(ctx, m.db, m.opts, func(tx *sql.Tx) error {
		return fn(ContextWithTx(ctx, tx))
	}, m.logger)
	return toDomainError(err)
}

// WithTransaction 在单个事务中执行 fn，出错回滚
func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// WithRetry 与 WithTransaction 相同，但遇到死锁、锁等待超时、连接失效时重试
func WithRetry(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	backoff := opts.BaseBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := WithTransaction(ctx, db, opts, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}

		lastErr = err
		if attempt == opts.MaxRetries {
			break
		}

		logger.Warn("transaction retry",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", opts.MaxRetries),
			zap.Error(err),
		)

		jitter := time.Duration(rand.Int63n(int64(backoff/4) + 1))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", opts.MaxRetries, lastErr)
}

// toDomainError 把存储层错误归入领域错误分类
// 业务错误与唯一键冲突原样返回，由服务层处理
func toDomainError(err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) || IsDuplicateKey(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	switch ClassifyError(err) {
	case ErrorClassDeadlock, ErrorClassLockTimeout:
		return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
	}
	if IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: %w", domain.ErrReferenceNotFound, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domain.ErrNotFound, domain.ErrEmptyCart, domain.ErrReferenceNotFound,
		domain.ErrConcurrencyConflict, domain.ErrValidation, domain.ErrPersistence,
		domain.ErrProductUnavailable, domain.ErrInsufficientStock, domain.ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
