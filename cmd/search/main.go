package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	serve := flag.Bool("serve", false, "serve the HTTP search API instead of the interactive prompt")
	splitLines := flag.Bool("split-lines", false, "index every line of every file as its own document")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] [-serve] [-split-lines] path...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if flag.NArg() > 0 {
		cfg.Indexer.Paths = flag.Args()
	}
	if *splitLines {
		cfg.Indexer.SplitLines = true
	}
	if len(cfg.Indexer.Paths) == 0 && !cfg.Postgres.Enabled {
		flag.Usage()
		os.Exit(2)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *serve); err != nil {
		slog.Error("search exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, serve bool) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdown := m.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	checker := health.NewChecker()
	engine := indexer.NewEngine(cfg.Indexer, m)
	defer engine.Close(nil)

	if len(cfg.Indexer.Paths) > 0 {
		if _, err := engine.LoadPaths(ctx, cfg.Indexer.Paths); err != nil {
			return fmt.Errorf("indexing paths: %w", err)
		}
	}
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		src, err := source.NewPostgres(pg.DB, cfg.Postgres)
		if err != nil {
			return err
		}
		if _, err := engine.LoadSource(ctx, src); err != nil {
			return err
		}
		checker.Register("postgres", health.Ping(true, pg.Ping))
	}

	st := engine.Stats()
	slog.Info("index ready", "documents", st.Documents, "terms", st.Terms)
	fmt.Printf("indexed %d documents, %d unique terms\n", st.Documents, st.Terms)

	if !serve {
		// Ctrl-C should end the prompt immediately.
		signal.Reset(os.Interrupt, syscall.SIGTERM)
		return repl(ctx, os.Stdin, os.Stdout, engine, cfg.Search.DefaultLimit)
	}

	var store cache.Store
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			store = redisClient
			checker.Register("redis", health.Ping(true, redisClient.Ping))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	queryCache := cache.New(store, cfg.Redis.CacheTTL, m)

	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		collector = analytics.NewCollector(producer, cfg.Kafka.BufferSize)
		collector.Start(ctx)
		defer collector.Close()
	}

	checker.Register("index", health.Ping(false, func(context.Context) error {
		if engine.Stats().Documents == 0 {
			return fmt.Errorf("index is empty")
		}
		return nil
	}))

	mux := http.NewServeMux()
	handler.New(engine, queryCache, collector, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Metrics(m),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Deferred closers run only after Shutdown has drained in-flight handlers.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	<-shutdownDone
	slog.Info("search service stopped")
	return nil
}
