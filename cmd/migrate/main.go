// Package main 提供数据库迁移管理的命令行工具
// 基于 go-migrate 库，支持向上迁移、向下迁移和版本管理
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/config"
	"github.com/MorseWayne/cloth_shop/internal/database"
	"github.com/MorseWayne/cloth_shop/internal/logger"
)

// withDB 加载配置、连接数据库后执行 fn
func withDB(c *cli.Context, fn func(db *database.DB, dir string, lg *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, "migrate", cfg.App.Version)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	db, err := database.New(cfg, lg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Error("failed to close database", zap.Error(err))
		}
	}()

	dir := c.String("dir")
	if dir == "" {
		dir = cfg.Migrations.Dir
	}
	return fn(db, dir, lg)
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "migrate",
		Usage: "manage cloth_shop database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "migrations directory (defaults to MIGRATIONS_DIR)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "run all pending migrations",
				Action: func(c *cli.Context) error {
					return withDB(c, func(db *database.DB, dir string, lg *zap.Logger) error {
						if err := db.RunMigrations(dir); err != nil {
							return err
						}
						lg.Info("up migrations completed successfully")
						return nil
					})
				},
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
				},
				Action: func(c *cli.Context) error {
					return withDB(c, func(db *database.DB, dir string, lg *zap.Logger) error {
						if err := db.MigrateDown(dir, c.Int("steps")); err != nil {
							return err
						}
						lg.Info("down migrations completed successfully", zap.Int("steps", c.Int("steps")))
						return nil
					})
				},
			},
			{
				Name:  "goto",
				Usage: "migrate up or down to a specific version",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "target", Required: true},
				},
				Action: func(c *cli.Context) error {
					return withDB(c, func(db *database.DB, dir string, lg *zap.Logger) error {
						if err := db.MigrateToVersion(dir, c.Uint("target")); err != nil {
							return err
						}
						lg.Info("version migration completed successfully", zap.Uint("target", c.Uint("target")))
						return nil
					})
				},
			},
			{
				Name:  "force",
				Usage: "force the schema version and clear the dirty flag",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "target", Required: true, Usage: "0 resets to no migrations"},
				},
				Action: func(c *cli.Context) error {
					return withDB(c, func(db *database.DB, dir string, lg *zap.Logger) error {
						lg.Warn("forcing migration version", zap.Uint("target", c.Uint("target")))
						return db.ForceMigrationVersion(dir, c.Uint("target"))
					})
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}
