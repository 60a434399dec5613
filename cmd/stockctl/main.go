// Package main 库存运维命令行：对账、补录流水、盘点设定库存
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MorseWayne/cloth_shop/internal/config"
	"github.com/MorseWayne/cloth_shop/internal/database"
	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/logger"
	"github.com/MorseWayne/cloth_shop/internal/repo"
	"github.com/MorseWayne/cloth_shop/internal/service"
)

// driftExitCode 对账发现偏差时的退出码
const driftExitCode = 2

// reconciler stockctl 用到的库存能力
type reconciler interface {
	Reconcile(ctx context.Context, productID *int64) ([]*domain.VariantDrift, error)
}

type productLister interface {
	ProductIDsWithVariants(ctx context.Context) ([]int64, error)
}

// env 命令执行期间共享的依赖
type env struct {
	inventory service.InventoryService
	products  productLister
	lg        *zap.Logger
	close     func()
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, "stockctl", cfg.App.Version)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	txm := database.NewTxManager(db.DB, database.DefaultTxOptions(), lg)
	logQuery := repo.NewInventoryLogQuery(db.Replica)
	inventory := service.NewInventoryService(txm,
		repo.NewVariantRepository(db.DB),
		repo.NewInventoryLogRepository(db.DB),
		logQuery,
		repo.NewProductRepository(db.DB),
		lg,
	)

	return &env{
		inventory: inventory,
		products:  logQuery,
		lg:        lg,
		close: func() {
			_ = db.Close()
			_ = lg.Sync()
		},
	}, nil
}

// reconcileAll 按商品并发对账，结果按变体排序
func reconcileAll(ctx context.Context, r reconciler, lister productLister, concurrency int) ([]*domain.VariantDrift, error) {
	ids, err := lister.ProductIDsWithVariants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	var (
		mu     sync.Mutex
		drifts []*domain.VariantDrift
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, concurrency))
	for _, id := range ids {
		g.Go(func() error {
			found, err := r.Reconcile(gctx, &id)
			if err != nil {
				return fmt.Errorf("reconcile product %d: %w", id, err)
			}
			mu.Lock()
			drifts = append(drifts, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(drifts, func(i, j int) bool {
		return drifts[i].VariantKey.String() < drifts[j].VariantKey.String()
	})
	return drifts, nil
}

func printDrifts(w io.Writer, drifts []*domain.VariantDrift) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tQUANTITY\tLEDGER_SUM\tDRIFT")
	for _, d := range drifts {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%+d\n", d.VariantKey, d.Quantity, d.LedgerSum, d.Drift)
	}
	_ = tw.Flush()
}

func variantFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{Name: "product", Required: true},
		&cli.StringFlag{Name: "color", Required: true},
		&cli.StringFlag{Name: "size", Required: true},
		&cli.StringFlag{Name: "reason"},
	}
}

func variantKey(c *cli.Context) domain.VariantKey {
	return domain.VariantKey{ProductID: c.Int64("product"), Color: c.String("color"), Size: c.String("size")}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "stockctl",
		Usage: "inventory ledger operations",
		Commands: []*cli.Command{
			{
				Name:  "reconcile",
				Usage: "compare variant quantities with the ledger sum",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "product", Usage: "only this product"},
					&cli.IntFlag{Name: "concurrency", Value: 4},
				},
				Action: func(c *cli.Context) error {
					e, err := openEnv()
					if err != nil {
						return err
					}
					defer e.close()

					var drifts []*domain.VariantDrift
					if c.IsSet("product") {
						pid := c.Int64("product")
						drifts, err = e.inventory.Reconcile(c.Context, &pid)
					} else {
						drifts, err = reconcileAll(c.Context, e.inventory, e.products, c.Int("concurrency"))
					}
					if err != nil {
						return err
					}

					if len(drifts) == 0 {
						fmt.Fprintln(c.App.Writer, "ledger consistent")
						return nil
					}
					printDrifts(c.App.Writer, drifts)
					e.lg.Warn("inventory drift detected", zap.Int("variants", len(drifts)))
					return cli.Exit("", driftExitCode)
				},
			},
			{
				Name:  "record",
				Usage: "append a stock change (DAMAGE, RESTOCK, RETURN, ADJUSTMENT)",
				Flags: append(variantFlags(),
					&cli.StringFlag{Name: "type", Required: true},
					&cli.IntFlag{Name: "quantity", Required: true},
				),
				Action: func(c *cli.Context) error {
					ct, err := domain.ParseChangeType(c.String("type"))
					if err != nil {
						return err
					}
					e, err := openEnv()
					if err != nil {
						return err
					}
					defer e.close()

					rec, err := e.inventory.Record(c.Context, &domain.RecordStockChangeRequest{
						VariantKey: variantKey(c),
						ChangeType: ct,
						Quantity:   c.Int("quantity"),
						Reason:     c.String("reason"),
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%s %s applied %+d, quantity now %d\n",
						rec.Variant.Key(), rec.Entry.ChangeType, rec.Entry.AppliedChange, rec.Variant.Quantity)
					return nil
				},
			},
			{
				Name:  "set",
				Usage: "set a variant to a counted quantity, recording the difference",
				Flags: append(variantFlags(),
					&cli.IntFlag{Name: "quantity", Required: true},
				),
				Action: func(c *cli.Context) error {
					e, err := openEnv()
					if err != nil {
						return err
					}
					defer e.close()

					rec, err := e.inventory.SetStock(c.Context, &domain.SetStockRequest{
						VariantKey: variantKey(c),
						Quantity:   c.Int("quantity"),
						Reason:     c.String("reason"),
					}, nil)
					if err != nil {
						return err
					}
					if rec.Entry == nil {
						fmt.Fprintf(c.App.Writer, "%s unchanged at %d\n", rec.Variant.Key(), rec.Variant.Quantity)
						return nil
					}
					fmt.Fprintf(c.App.Writer, "%s adjusted %+d, quantity now %d\n",
						rec.Variant.Key(), rec.Entry.AppliedChange, rec.Variant.Quantity)
					return nil
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("stockctl: %v", err)
	}
}
