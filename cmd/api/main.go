package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/httpx"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/logging"
	"github.com/ariefcatur/go-order-fulfillment/internal/memstore"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
	"github.com/ariefcatur/go-order-fulfillment/internal/refund"
)

type stores struct {
	orders    orders.Store
	movements inventory.MovementStore
	stock     inventory.StockStore
	seq       inventory.Sequencer
	close     func()
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	st, err := openStores(ctx, cfg, rdb, logger)
	if err != nil {
		logger.Fatal("open store", zap.String("store", cfg.Store), zap.Error(err))
	}
	defer st.close()

	// Kafka producer, satu writer untuk semua topic
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger)
	prod.Start(ctx)
	events := kafkax.NewEventPublisher(prod, cfg.ServiceName)

	recorder, err := inventory.NewRecorder(inventory.RecorderDeps{
		Movements: st.movements,
		Ledger:    inventory.NewLedger(st.stock),
		Sequencer: st.seq,
		Events:    events,
		Logger:    logger.Named("inventory"),
	})
	if err != nil {
		logger.Fatal("recorder", zap.Error(err))
	}
	refunds, err := refund.NewManager(refund.Deps{
		Orders: st.orders,
		Events: events,
		Logger: logger.Named("refund"),
	})
	if err != nil {
		logger.Fatal("refund manager", zap.Error(err))
	}
	svc, err := fulfillment.NewService(fulfillment.Deps{
		Orders:   st.orders,
		Recorder: recorder,
		Refunds:  refunds,
		Cache:    redisx.NewTrackingCache(rdb, cfg.TrackingCacheTTL),
		Events:   events,
		Logger:   logger.Named("fulfillment"),
	})
	if err != nil {
		logger.Fatal("fulfillment service", zap.Error(err))
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Service: svc, Logger: logger}).Register(router)
	(&httpx.InventoryHandler{Recorder: recorder, Logger: logger}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
	cancel()
}

func openStores(ctx context.Context, cfg config.Config, rdb *redis.Client, logger *zap.Logger) (stores, error) {
	if cfg.Store == config.StoreMemory {
		mem := memstore.New()
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				return stores{}, err
			}
			defer f.Close()
			if err := mem.Load(ctx, f); err != nil {
				return stores{}, err
			}
			logger.Info("memory store seeded", zap.String("file", cfg.SeedFile))
		}
		return stores{orders: mem, movements: mem, stock: mem, seq: mem, close: func() {}}, nil
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return stores{}, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return stores{}, err
	}
	return stores{
		orders:    &postgres.OrderStore{DB: db},
		movements: &postgres.MovementStore{DB: db},
		stock:     &postgres.StockStore{DB: db},
		seq:       redisx.NewSequencer(rdb),
		close:     db.Close,
	}, nil
}
