package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	carthttp "github.com/Skotchmaster/ebee_shop/internal/cart/httpserver"
	cartrepo "github.com/Skotchmaster/ebee_shop/internal/cart/repo"
	cartservice "github.com/Skotchmaster/ebee_shop/internal/cart/service"
	"github.com/Skotchmaster/ebee_shop/internal/catalog"
	"github.com/Skotchmaster/ebee_shop/internal/config"
	"github.com/Skotchmaster/ebee_shop/internal/events"
	"github.com/Skotchmaster/ebee_shop/internal/httpserver"
	"github.com/Skotchmaster/ebee_shop/internal/idempotency"
	"github.com/Skotchmaster/ebee_shop/internal/mail"
	"github.com/Skotchmaster/ebee_shop/internal/models"
	"github.com/Skotchmaster/ebee_shop/internal/notification"
	orderhttp "github.com/Skotchmaster/ebee_shop/internal/order/httpserver"
	orderrepo "github.com/Skotchmaster/ebee_shop/internal/order/repo"
	orderservice "github.com/Skotchmaster/ebee_shop/internal/order/service"
	"github.com/Skotchmaster/ebee_shop/pkg/authclient"
	"github.com/Skotchmaster/ebee_shop/pkg/db"
	"github.com/Skotchmaster/ebee_shop/pkg/logging"
	"github.com/Skotchmaster/ebee_shop/pkg/middleware/csrf"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("db init error: %v", err)
	}
	if err := models.Migrate(initCtx, gdb); err != nil {
		cancel()
		log.Fatalf("db migrate error: %v", err)
	}
	cancel()

	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db() error: %v", err)
	}

	publishers := events.Fanout{}
	var kafkaPub *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = events.NewKafkaPublisher(cfg.KafkaBrokers)
		publishers = append(publishers, kafkaPub)
	}
	if cfg.ESURL != "" {
		esClient, err := events.NewElasticClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		publishers = append(publishers, events.NewElasticIndexer(esClient, cfg.ESIndex))
	}

	var idem idempotency.Store = idempotency.NewMemoryStore()
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		idem = idempotency.NewRedisStore(rdb)
	}

	mailer, err := mail.New(cfg)
	if err != nil {
		log.Fatalf("mail: %v", err)
	}

	cartService := &cartservice.CartService{
		Repo:    &cartrepo.GormRepo{DB: gdb},
		Catalog: &catalog.GormCatalog{DB: gdb},
		Events:  publishers,
	}
	dispatcher := &notification.Dispatcher{DB: gdb}
	orderService := &orderservice.OrderService{
		Repo:        &orderrepo.GormRepo{DB: gdb},
		Catalog:     &catalog.GormCatalog{DB: gdb},
		Notifier:    dispatcher,
		Mail:        mailer,
		Events:      publishers,
		Idempotency: idem,
		Saga: orderservice.Saga{
			Timeout:  cfg.EffectTimeout,
			Attempts: cfg.EffectAttempts,
			Backoff:  200 * time.Millisecond,
		},
	}

	var authClient *authclient.Client
	if cfg.AuthHTTPURL != "" {
		authClient = authclient.NewClient(cfg.AuthHTTPURL)
	}

	var csrfCfg *csrf.Config
	if cfg.CSRFEnabled {
		c := csrf.DefaultConfig()
		c.SkipPaths = []string{"/health/live", "/health/ready"}
		csrfCfg = &c
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	httpserver.Register(e, &httpserver.Deps{
		Logger:              logger,
		CartHandler:         &carthttp.CartHTTP{Svc: cartService},
		OrderHandler:        &orderhttp.OrderHTTP{Svc: orderService},
		NotificationHandler: &notification.HTTP{Dispatcher: dispatcher},
		JWTSecret:           cfg.JWTSecret,
		AuthClient:          authClient,
		CSRF:                csrfCfg,
		DB:                  sqlDB,
	})

	go func() {
		addr := ":" + strconv.Itoa(cfg.ServerPort)
		logger.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("db close error", "error", err)
	}

	logger.Info("shutdown complete")
}
