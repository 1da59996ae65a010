package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"pitaka.app/internal/bank"
	"pitaka.app/internal/config"
	"pitaka.app/internal/migrate"
	"pitaka.app/internal/obs"
	"pitaka.app/internal/store/pg"
)

func main() {
	cfg, _ := config.Load()
	var (
		dsn     = flag.String("dsn", firstNonEmpty(cfg.PGDSN, os.Getenv("PITAKA_PG_DSN")), "PostgreSQL DSN")
		timeout = flag.Duration("timeout", 60*time.Second, "overall timeout")
	)
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [-dsn DSN] up|down|status|pending|seed")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, err := obs.NewLogger(firstNonEmpty(cfg.Env, "development"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if *dsn == "" {
		logger.Fatal("missing DSN: provide via -dsn or PITAKA_PG_DSN")
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), pg.Migrations, "migrations")

	cmd := flag.Arg(0)
	switch cmd {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		if err == nil {
			logger.Info("migrations applied", zap.Strings("names", applied))
		}
	case "down":
		var reverted string
		reverted, err = mgr.Down(ctx)
		if err == nil {
			logger.Info("migration reverted", zap.String("name", reverted))
		}
	case "status":
		err = printAll(mgr.Status(ctx))
	case "pending":
		err = printAll(mgr.Pending(ctx))
	case "seed":
		var svc *bank.Service
		svc, err = bank.NewService(store, bank.WithLogger(logger))
		if err == nil {
			err = svc.Bootstrap(ctx, bank.DefaultCatalog())
		}
		if err == nil {
			logger.Info("reference data seeded")
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("migrate failed", zap.String("command", cmd), zap.Error(err))
	}
}

func printAll(items []string, err error) error {
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Println(item)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
