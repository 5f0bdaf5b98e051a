package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/chain"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/config"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/engine"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/ledger"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/match"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/monitor"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/scanner"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/server"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/tx"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the matcher daemon. It wires the scanner,
// matching engine, deal ledger, and monitor endpoint together, runs one
// immediate settlement cycle, then keeps cycling on the configured schedule
// until interrupted.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()

	signer, err := tx.NewSigner(cfg.PrivateKey)
	if err != nil {
		logger.WithError(err).Fatal("invalid MATCHER_PRIVATE_KEY")
	}

	// The matcher lock args are derived from the signing key unless the
	// environment pins them explicitly.
	if cfg.MatcherLock.Args == "" {
		cfg.MatcherLock.Args = signer.LockArgs()
	}

	ps, err := cfg.PairScripts()
	if err != nil {
		logger.WithError(err).Fatal("invalid pair script configuration")
	}

	cellDeps, err := cfg.CellDeps()
	if err != nil {
		logger.WithError(err).Fatal("invalid cell dep configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	chainClient := chain.NewClient(chain.ClientConfig{
		NodeURL:      cfg.NodeURL,
		IndexerURL:   cfg.IndexerURL,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})

	// Redis holds the in-flight deal chain; the matcher cannot reconcile
	// across restarts without it.
	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	store, err := ledger.NewRedisStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create deal store")
	}

	// ClickHouse archive is optional analytics, not a dependency.
	var archiver engine.Archiver
	if cfg.ClickHouseAddr != "" {
		arch, err := ledger.NewClickHouseArchive(cfg.ClickHouseAddr, cfg.ClickHouseDatabase,
			cfg.ClickHouseUsername, cfg.ClickHousePassword)
		if err != nil {
			logger.WithError(err).Warn("failed to connect to ClickHouse, archiving disabled")
		} else {
			archiver = arch
			defer func() {
				_ = arch.Close()
			}()
		}
	}

	tracker := monitor.NewTracker()
	eng := engine.New(
		ps,
		scanner.NewScanner(ps, chainClient, logger),
		match.NewMatcher(ps, cfg.BlockMinerFee),
		tx.NewComposer(ps, signer, cellDeps),
		chainClient,
		store,
		tracker,
		archiver,
		logger,
	)

	// Immediate pass before the scheduler takes over.
	if err := eng.RunCycle(ctx); err != nil {
		logger.WithError(err).Warn("initial cycle failed")
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.PrintfLogger(logger))))
	if _, err := c.AddFunc(cfg.CronSpec, func() {
		// keep each run bounded
		rctx, rcancel := context.WithTimeout(ctx, 25*time.Second)
		defer rcancel()
		if err := eng.RunCycle(rctx); err != nil {
			logger.WithError(err).Error("settlement cycle failed")
		}
	}); err != nil {
		logger.WithError(err).Fatal("invalid CRON_SPEC")
	}
	c.Start()

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: server.NewHandlers(tracker, store),
		Config: server.ServerConfig{
			Addr:   cfg.ServerAddr,
			APIKey: cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		<-c.Stop().Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithFields(logrus.Fields{
		"addr":      cfg.ServerAddr,
		"cron_spec": cfg.CronSpec,
	}).Info("matcher starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("http server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
