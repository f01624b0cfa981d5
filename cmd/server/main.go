package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gemcart/gemcart/internal/cache"
	h "github.com/gemcart/gemcart/internal/http"
	"github.com/gemcart/gemcart/internal/poller"
	"github.com/gemcart/gemcart/internal/pricing"
	"github.com/gemcart/gemcart/internal/publisher"
	"github.com/gemcart/gemcart/internal/repository"
	"github.com/gemcart/gemcart/internal/service"
)

type Config struct {
	HTTPPort        string
	MongoURI        string
	MongoDBName     string
	MongoTimeout    time.Duration
	MongoMaxPool    uint64
	MongoMinPool    uint64
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    []string
	SweepInterval   time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "gemcart"),
		MongoTimeout:    10 * time.Second,
		MongoMaxPool:    100,
		MongoMinPool:    10,
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		SweepInterval:   10 * time.Minute,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoDB, err := repository.ConnectMongoDB(ctx, repository.MongoConfig{
		URI:            cfg.MongoURI,
		Database:       cfg.MongoDBName,
		ConnectTimeout: cfg.MongoTimeout,
		MaxPoolSize:    cfg.MongoMaxPool,
		MinPoolSize:    cfg.MongoMinPool,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	if err := repository.EnsureIndexes(ctx, mongoDB); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	cartRepo := repository.NewMongoCartRepository(mongoDB)
	orderRepo := repository.NewMongoOrderRepository(mongoDB)
	catalog := repository.WithCatalogBreaker(repository.NewMongoCatalog(mongoDB))
	vendors := repository.NewMongoCatalog(mongoDB)
	discounts := repository.NewMongoDiscountLookup(mongoDB)
	inventory := repository.NewMongoInventoryStore(mongoDB)
	outbox := repository.NewMongoOutboxRepository(mongoDB)

	cartCache := cache.NewRedisCache(redisClient)
	engine := pricing.NewEngine(catalog)

	cartService := service.NewCartService(cartRepo, catalog, vendors, discounts, cartCache, engine)
	orderService := service.NewOrderService(orderRepo, catalog, vendors, inventory, outbox)

	cartHandler := h.NewCartHandler(cartService)
	orderHandler := h.NewOrderHandler(cartService, orderService)

	// Background workers
	sweeper := poller.NewCartSweeper(cartRepo, cfg.SweepInterval)
	go sweeper.Run(ctx)

	outboxPoller := publisher.NewOutboxPoller(outbox, cfg.KafkaBrokers...)
	defer outboxPoller.Close()
	go outboxPoller.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(h.IdentityMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{lineID}", cartHandler.UpdateQuantity)
			r.Delete("/items/{lineID}", cartHandler.RemoveItem)
			r.Post("/discounts", cartHandler.ApplyDiscount)
			r.Delete("/discounts/{code}", cartHandler.RemoveDiscount)
			r.Put("/addresses", cartHandler.SetAddresses)
			r.Put("/shipping-option", cartHandler.SetShippingOption)
			r.Post("/merge", cartHandler.Merge)
			r.Get("/checkout/validate", cartHandler.ValidateCheckout)
		})
		r.Post("/checkout", orderHandler.Checkout)
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.ListOrders)
			r.Get("/{orderID}", orderHandler.GetOrder)
			r.Post("/{orderID}/cancel", orderHandler.Cancel)
			r.Put("/{orderID}/status", orderHandler.UpdateStatus)
			r.Put("/{orderID}/payment", orderHandler.UpdatePayment)
			r.Put("/{orderID}/tracking", orderHandler.SetTracking)
		})
		r.Get("/vendors/{vendorID}/orders", orderHandler.ListVendorOrders)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "gemcart"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("gemcart listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}

	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.Printf("mongo disconnect error: %v", err)
	}
	log.Println("Stopped")
}
