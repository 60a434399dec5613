// Package storage 保存付款凭证文件，订单上只记录返回的引用
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxSlipSize 付款凭证文件大小上限
const MaxSlipSize = 10 << 20

// ErrSlipTooLarge 文件超过 MaxSlipSize
var ErrSlipTooLarge = errors.New("payment slip exceeds size limit")

// SlipStore 付款凭证存储接口
type SlipStore interface {
	// Save 保存文件并返回引用，ext 为带点的小写扩展名
	Save(ctx context.Context, orderNumber, ext string, r io.Reader) (string, error)
}

// LocalSlipStore 本地文件系统实现
type LocalSlipStore struct {
	dir    string
	logger *zap.Logger
}

// NewLocalSlipStore 创建本地存储，目录不存在时创建
func NewLocalSlipStore(dir string, logger *zap.Logger) (*LocalSlipStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create slip dir %s: %w", dir, err)
	}
	return &LocalSlipStore{dir: dir, logger: logger}, nil
}

// Save 写入临时文件后重命名，避免留下半截文件
func (s *LocalSlipStore) Save(ctx context.Context, orderNumber, ext string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%s%s", orderNumber, uuid.NewString(), ext)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, io.LimitReader(r, MaxSlipSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write payment slip: %w", err)
	}
	if n > MaxSlipSize {
		return "", ErrSlipTooLarge
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("failed to store payment slip: %w", err)
	}

	s.logger.Info("payment slip stored", zap.String("order_number", orderNumber), zap.Int64("bytes", n))
	return "slips/" + name, nil
}

// Path 把引用解析为本地路径
func (s *LocalSlipStore) Path(ref string) string {
	return filepath.Join(s.dir, filepath.Base(ref))
}
