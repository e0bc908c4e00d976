// Package main runs the copy-trade service: it tails a Telegram signal
// channel, records parsed signals, and (when trading is enabled) mirrors
// them as swaps on Solana through Jupiter.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dandagow3t/copy-trade-telegram/internal/config"
	"github.com/dandagow3t/copy-trade-telegram/internal/decision"
	"github.com/dandagow3t/copy-trade-telegram/internal/domain"
	"github.com/dandagow3t/copy-trade-telegram/internal/executor"
	"github.com/dandagow3t/copy-trade-telegram/internal/ingestion"
	"github.com/dandagow3t/copy-trade-telegram/internal/observability"
	"github.com/dandagow3t/copy-trade-telegram/internal/signer"
	"github.com/dandagow3t/copy-trade-telegram/internal/solana"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage"
	chstore "github.com/dandagow3t/copy-trade-telegram/internal/storage/clickhouse"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage/memory"
	"github.com/dandagow3t/copy-trade-telegram/internal/storage/migrations"
	pgstore "github.com/dandagow3t/copy-trade-telegram/internal/storage/postgres"
	"github.com/dandagow3t/copy-trade-telegram/internal/telegram"
	"github.com/dandagow3t/copy-trade-telegram/internal/venue"
)

// nopQueue stands in for the execution pool when trading is disabled.
// The decision engine never reaches it on the recorded-only path.
type nopQueue struct{}

func (nopQueue) TryEnqueue(*domain.TradeExecution) bool { return false }

func main() {
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] CHANNEL\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "CHANNEL is the Telegram channel username or title to follow.")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	channel := flag.Arg(0)
	if channel == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	var (
		signals    storage.SignalStore
		executions storage.ExecutionStore
	)
	if *useMemory {
		log.Println("Using in-memory storage")
		signals = memory.NewSignalStore()
		executions = memory.NewExecutionStore()
	} else {
		pgPool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("PostgreSQL error: %v", err)
		}
		defer pgPool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pgPool); err != nil {
			log.Fatalf("PostgreSQL migration error: %v", err)
		}
		signals = pgstore.NewSignalStore(pgPool)
		executions = pgstore.NewExecutionStore(pgPool)
	}

	// Optional attempt audit sink
	var audit storage.AttemptAuditSink
	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			log.Fatalf("ClickHouse error: %v", err)
		}
		defer conn.Close()
		audit = chstore.NewAttemptSink(conn)
		log.Println("Attempt audit sink enabled")
	}

	// Execution stack, only when trading is on
	var queue decision.Enqueuer = nopQueue{}
	var pool *executor.Pool
	if cfg.TradeOn {
		wallet, err := signer.NewLocal(cfg.SolanaPrivateKey)
		if err != nil {
			log.Fatalf("Wallet error: %v", err)
		}
		log.Printf("Trading enabled, wallet %s", wallet.PublicKey())

		jup := venue.NewJupiter(venue.WithBaseURL(cfg.JupiterBaseURL))
		chain := solana.NewClient(cfg.SolanaRPCURL, solana.WithWSEndpoint(cfg.SolanaWSURL))

		exec, err := executor.New(executor.Options{
			Executions:      executions,
			Audit:           audit,
			Venue:           jup,
			Chain:           chain,
			Signer:          wallet,
			Logger:          log,
			PriorityFeeBase: cfg.PriorityFeeBase,
			PriorityFeeMult: cfg.PriorityFeeMult,
			PriorityFeeMax:  cfg.PriorityFeeMax,
			MaxAttempts:     cfg.MaxAttempts,
			ConfirmTimeout:  cfg.ConfirmTimeout,
		})
		if err != nil {
			log.Fatalf("Executor error: %v", err)
		}

		// Resolve whatever a previous process left in flight before
		// accepting new work.
		if err := exec.Reconcile(ctx); err != nil {
			log.Fatalf("Reconcile error: %v", err)
		}

		pool = executor.NewPool(exec, cfg.ExecQueueSize, cfg.ExecWorkers, log)
		pool.Start(ctx)
		queue = pool
	} else {
		log.Println("Trading disabled, signals will be recorded only")

		// No execution stack means no chain client to reconcile against,
		// but leftovers from an earlier trading run should not sit unnoticed.
		leftover, err := executions.ListNonTerminal(ctx)
		if err != nil {
			log.Fatalf("List non-terminal executions: %v", err)
		}
		for _, exec := range leftover {
			log.Warnf("Execution for signal %d (%s %s) is still %s; re-enable trading to reconcile it",
				exec.SignalID, exec.Direction, exec.Token, exec.Status)
		}
	}

	engine, err := decision.NewEngine(decision.Options{
		Executions:      executions,
		Queue:           queue,
		Logger:          log,
		TradeOn:         cfg.TradeOn,
		PositionSize:    cfg.PositionSize,
		SlippageBPS:     cfg.SlippageBPS,
		Cooldown:        cfg.TradeCooldown,
		StrategyAllowed: cfg.StrategyAllowed,
	})
	if err != nil {
		log.Fatalf("Decision engine error: %v", err)
	}

	var tgOpts []telegram.ClientOption
	if cfg.TelegramBaseURL != "" {
		tgOpts = append(tgOpts, telegram.WithBaseURL(cfg.TelegramBaseURL))
	}
	poller := telegram.NewClient(cfg.BotToken(), tgOpts...)

	runner, err := ingestion.NewRunner(ingestion.RunnerOptions{
		Poller:    poller,
		Signals:   signals,
		Decisions: engine,
		Channel:   channel,
		PollEvery: cfg.PollFrequency,
		Logger:    log,
	})
	if err != nil {
		log.Fatalf("Runner error: %v", err)
	}

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			log.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go startHTTPServer(*metricsAddr, log)

	err = runner.Run(ctx)
	if pool != nil {
		// Drain queued executions before exiting.
		pool.Stop()
	}
	close(done)

	if err != nil && err != context.Canceled {
		log.Fatalf("Runner error: %v", err)
	}
	log.Println("Shutdown complete")
}

// startHTTPServer serves health and metrics endpoints.
func startHTTPServer(addr string, log *logrus.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	log.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Printf("HTTP server error: %v", err)
	}
}
