// Command marketplace-api serves the cooperative marketplace REST API.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	_ "github.com/MikeMC777/coopmarket/docs"
	"github.com/MikeMC777/coopmarket/internal/article"
	"github.com/MikeMC777/coopmarket/internal/attribute"
	"github.com/MikeMC777/coopmarket/internal/auth"
	"github.com/MikeMC777/coopmarket/internal/cart"
	"github.com/MikeMC777/coopmarket/internal/category"
	"github.com/MikeMC777/coopmarket/internal/comment"
	"github.com/MikeMC777/coopmarket/internal/community"
	"github.com/MikeMC777/coopmarket/internal/config"
	"github.com/MikeMC777/coopmarket/internal/contact"
	"github.com/MikeMC777/coopmarket/internal/cooperative"
	"github.com/MikeMC777/coopmarket/internal/courier"
	"github.com/MikeMC777/coopmarket/internal/event"
	"github.com/MikeMC777/coopmarket/internal/httpx"
	"github.com/MikeMC777/coopmarket/internal/kafka"
	"github.com/MikeMC777/coopmarket/internal/mail"
	"github.com/MikeMC777/coopmarket/internal/notify"
	"github.com/MikeMC777/coopmarket/internal/order"
	"github.com/MikeMC777/coopmarket/internal/post"
	"github.com/MikeMC777/coopmarket/internal/postgres"
	"github.com/MikeMC777/coopmarket/internal/product"
	"github.com/MikeMC777/coopmarket/internal/storage"
	"github.com/MikeMC777/coopmarket/internal/supplier"
	"github.com/MikeMC777/coopmarket/internal/supplierproduct"
	"github.com/MikeMC777/coopmarket/internal/user"
)

// @title       Cooperative Marketplace API
// @version     1.0
// @BasePath    /api/v1
// @securityDefinitions.apikey BearerAuth
// @in          header
// @name        Authorization
func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return run(ctx, lg, m, cfg)
	})
}

func run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *config.Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	ctx = zctx.Base(ctx, lg)

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return errors.Wrap(err, "connect postgres")
	}
	defer pool.Close()

	if cfg.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		lg.Info("Migrations applied")
	}

	// Notifications: local bus, joined across instances through Redis when configured.
	bus := notify.NewBus()
	var notifier notify.Publisher = bus
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer func() { _ = rdb.Close() }()
		bridge := notify.NewRedisBridge(rdb, cfg.Redis.Channel, bus)
		notifier = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil {
				lg.Error("Redis notification bridge stopped", zap.Error(err))
			}
		}()
		lg.Info("Redis notification bridge enabled", zap.String("channel", cfg.Redis.Channel))
	}

	events := orderEvents{notifier: notifier}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, 1024, lg.Named("kafka"))
		producer.Start()
		defer producer.Close()
		events.sinks = append(events.sinks, producer)
		lg.Info("Kafka order events enabled", zap.String("topic", cfg.Kafka.Topic))
	}

	var sender mail.Sender = mail.LogSender{}
	if cfg.SMTP.Host != "" {
		sender = mail.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	}

	uploads, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "object storage")
	}

	users := user.NewPGRepo(pool)
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	orders, err := order.NewService(order.NewPGStore(pool), events, m.MeterProvider(), m.TracerProvider())
	if err != nil {
		return errors.Wrap(err, "order service")
	}

	d := deps{
		verifier: auth.NewVerifier(tokens, users),
		accounts: user.NewService(users, tokens, sender, cfg.PublicURL, cfg.Auth.ResetTTL),
		notifier: notifier,
		hub:      notify.NewHub(bus),
		uploads:  uploads,
		ready:    func(ctx context.Context) error { return pool.Ping(ctx) },

		cooperatives:     cooperative.NewPGRepo(pool),
		suppliers:        supplier.NewPGRepo(pool),
		categories:       category.NewPGRepo(pool),
		products:         product.NewPGRepo(pool),
		attributes:       attribute.NewPGRepo(pool),
		supplierProducts: supplierproduct.NewPGRepo(pool),
		events:           event.NewPGRepo(pool),
		articles:         article.NewPGRepo(pool),
		couriers:         courier.NewPGRepo(pool),
		contacts:         contact.NewPGRepo(pool),
		communities:      community.NewPGRepo(pool),
		posts:            post.NewPGRepo(pool),
		comments:         comment.NewPGRepo(pool),
		carts:            cart.NewPGRepo(pool),
		orders:           orders,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(httpx.RequestID(), httpx.Logger(lg), httpx.Recovery())
	registerRoutes(r, d)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	server := &http.Server{
		Addr:              cfg.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		Handler: otelhttp.NewHandler(r, "marketplace-api",
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithTracerProvider(m.TracerProvider()),
		),
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.HTTP.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
