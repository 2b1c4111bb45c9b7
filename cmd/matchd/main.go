package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"matchd/api/httpserver"
	"matchd/config"
	"matchd/engine"
	"matchd/infra/kafka"
	"matchd/infra/outbox"
	"matchd/infra/sequence"
	"matchd/infra/store"
	"matchd/infra/wal"
	"matchd/ingest"
	"matchd/jobs/publisher"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---------------- Store ----------------

	var st store.Store
	switch cfg.Store.Backend {
	case "pebble":
		st, err = store.OpenPebble(cfg.Store.Dir)
		if err != nil {
			log.Fatal("open store", zap.Error(err))
		}
	default:
		st = store.NewMemory()
	}
	defer st.Close()

	// ---------------- Outbox + publisher ----------------

	ob, err := outbox.Open(cfg.Publisher.OutboxDir)
	if err != nil {
		log.Fatal("open outbox", zap.Error(err))
	}
	defer ob.Close()

	pub, err := publisher.New(ob, cfg.Kafka.Brokers, publisher.Config{
		Topic:       cfg.Kafka.TradesTopic,
		Interval:    cfg.Publisher.Interval,
		BaseBackoff: cfg.Publisher.BaseBackoff,
		MaxBackoff:  cfg.Publisher.MaxBackoff,
	}, log)
	if err != nil {
		log.Fatal("connect trade publisher", zap.Error(err))
	}
	defer pub.Close()

	// ---------------- Journal replay ----------------

	seq := sequence.New(0)

	if err := engine.Replay(ctx, cfg.Journal.Dir, st, seq, log); err != nil {
		log.Fatal("journal replay", zap.Error(err))
	}

	journal, err := wal.Open(wal.Config{
		Dir:         cfg.Journal.Dir,
		SegmentSize: cfg.Journal.SegmentSize,
	})
	if err != nil {
		log.Fatal("open journal", zap.Error(err))
	}
	defer journal.Close()

	// ---------------- Engine ----------------

	eng := engine.New(st, journal, seq, ob, log)
	router := engine.NewRouter(eng, cfg.Engine.Shards, log)
	router.Start(ctx)

	// ---------------- Background jobs ----------------

	go pub.Run(ctx)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, cfg.Kafka.GroupID, log)
	adapter := ingest.New(consumer, router, log)
	go func() {
		if err := adapter.Run(ctx); err != nil {
			log.Error("ingestion stopped", zap.Error(err))
			cancel()
		}
	}()

	// ---------------- HTTP ----------------

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpserver.New(st, log).Router(),
	}
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server exited", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = adapter.Close()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
