package main

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/cache"
	"github.com/MorseWayne/cloth_shop/internal/config"
)

func TestInitCache(t *testing.T) {
	lg := zap.NewNop()

	cfg := &config.Config{}
	cfg.Cache.Enabled = false
	c, rc := initCache(cfg, lg)
	if _, ok := c.(*cache.NullCache); !ok || rc != nil {
		t.Fatalf("expected null cache without redis, got %T %v", c, rc)
	}

	cfg.Cache.Enabled = true
	cfg.Cache.Type = "memory"
	cfg.Cache.TTL = time.Minute
	c, rc = initCache(cfg, lg)
	if _, ok := c.(*cache.MemoryCache); !ok || rc != nil {
		t.Fatalf("expected memory cache, got %T", c)
	}
}

func TestInitCache_RedisFallback(t *testing.T) {
	cfg := &config.Config{}
	cfg.Cache.Enabled = true
	cfg.Cache.Type = "redis"
	cfg.Redis.Host = "127.0.0.1"
	cfg.Redis.Port = 1 // 无服务监听

	c, rc := initCache(cfg, zap.NewNop())
	if _, ok := c.(*cache.MemoryCache); !ok {
		t.Fatalf("expected memory fallback, got %T", c)
	}
	if rc != nil {
		t.Fatal("expected no redis client")
	}
}

func TestInitLimiter_Disabled(t *testing.T) {
	cfg := &config.Config{}
	if l := initLimiter(cfg, nil, zap.NewNop()); l != nil {
		t.Fatal("limiter should be nil when disabled")
	}

	cfg.Limiter.Enabled = true
	if l := initLimiter(cfg, nil, zap.NewNop()); l != nil {
		t.Fatal("limiter should be nil without redis")
	}
}
