package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dastanm/restops/internal/adapter/logger"
	"github.com/dastanm/restops/internal/adapter/postgres"
	"github.com/dastanm/restops/internal/adapter/rabbitmq"
	"github.com/dastanm/restops/internal/app/delivery"
	"github.com/dastanm/restops/internal/app/kitchen"
	"github.com/dastanm/restops/internal/app/order"
	"github.com/dastanm/restops/internal/app/timeline"
	"github.com/dastanm/restops/internal/app/tracking"
	"github.com/dastanm/restops/internal/config"
	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/lock"

	amqpAdapter "github.com/dastanm/restops/internal/adapter/amqp"
	httpAdapter "github.com/dastanm/restops/internal/adapter/http"
)

func main() {
	mode := flag.String("mode", "", "Service mode: order-service, tracking-service, notification-subscriber")
	port := flag.Int("port", 3000, "HTTP port")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	lgr := logger.New(*mode)

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
		"host": cfg.Database.Host,
		"db":   cfg.Database.Database,
	})

	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": cfg.RabbitMQ.Host,
	})

	switch *mode {
	case "order-service":
		runOrderService(db, mqConn, cfg, lgr, *port)

	case "tracking-service":
		runTrackingService(db, lgr, *port)

	case "notification-subscriber":
		runNotificationSubscriber(ctx, mqConn, lgr)

	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}
}

func pricingFromConfig(cfg config.FulfillmentConfig) domain.Pricing {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		log.Fatalf("Invalid tax_rate %q: %v", cfg.TaxRate, err)
	}
	deliveryFee, err := decimal.NewFromString(cfg.DeliveryFee)
	if err != nil {
		log.Fatalf("Invalid delivery_fee %q: %v", cfg.DeliveryFee, err)
	}
	return domain.Pricing{
		TaxRate:     taxRate,
		DeliveryFee: deliveryFee,
		PrepMinutes: cfg.DefaultPrepMinutes,
	}
}

func runOrderService(db postgres.DB, mqConn rabbitmq.Connection, cfg *config.Config, lgr logger.Logger, port int) {
	orderRepo := postgres.NewOrderRepository(db)
	kitchenRepo := postgres.NewKitchenRepository(db)
	deliveryRepo := postgres.NewDeliveryRepository(db)
	timelineRepo := postgres.NewTimelineRepository(db)

	gate := postgres.NewAuthorizationGate(db)
	ledger := postgres.NewInventoryLedger(db)
	catalog := postgres.NewCatalogLookup(db)
	partners := postgres.NewPartnerDirectory(db)

	publisher := rabbitmq.NewPublisher(mqConn)
	recorder := timeline.NewRecorder(timelineRepo, lgr)
	locks := lock.NewKeyedMutex()
	pricing := pricingFromConfig(cfg.Fulfillment)

	orderService := order.NewService(orderRepo, deliveryRepo, gate, ledger, catalog,
		recorder, publisher, locks, pricing, lgr)
	kitchenService := kitchen.NewService(orderRepo, kitchenRepo, orderService, gate,
		locks, cfg.Fulfillment.DefaultPrepMinutes, lgr)
	orderService.BindKitchen(kitchenService)
	deliveryService := delivery.NewService(orderRepo, deliveryRepo, orderService, gate,
		partners, recorder, publisher, locks, cfg.Fulfillment.PartnerCapacity,
		cfg.Fulfillment.PickupEtaMinutes, cfg.Fulfillment.DeliveryEtaMinutes, lgr)

	orderHandler := httpAdapter.NewOrderHandler(orderService, lgr)
	kitchenHandler := httpAdapter.NewKitchenHandler(kitchenService, lgr)
	deliveryHandler := httpAdapter.NewDeliveryHandler(deliveryService, lgr)

	mux := http.NewServeMux()
	mux.HandleFunc("/orders", orderHandler.HandleOrders)
	mux.HandleFunc("/orders/", orderHandler.HandleOrders)
	mux.HandleFunc("/kitchen/", kitchenHandler.HandleKitchen)
	mux.HandleFunc("/deliveries/", deliveryHandler.HandleDeliveries)

	runHTTPServer(mux, lgr, port, "Order Service")
}

func runTrackingService(db postgres.DB, lgr logger.Logger, port int) {
	orderRepo := postgres.NewOrderRepository(db)
	kitchenRepo := postgres.NewKitchenRepository(db)
	deliveryRepo := postgres.NewDeliveryRepository(db)
	timelineRepo := postgres.NewTimelineRepository(db)

	gate := postgres.NewAuthorizationGate(db)
	partners := postgres.NewPartnerDirectory(db)
	recorder := timeline.NewRecorder(timelineRepo, lgr)

	trackingService := tracking.NewService(orderRepo, kitchenRepo, deliveryRepo,
		partners, recorder, gate, lgr)

	trackingHandler := httpAdapter.NewTrackingHandler(trackingService, lgr)

	mux := http.NewServeMux()
	mux.HandleFunc("/tracking/", trackingHandler.HandleTracking)

	runHTTPServer(mux, lgr, port, "Tracking Service")
}

func runHTTPServer(mux *http.ServeMux, lgr logger.Logger, port int, name string) {
	handler := httpAdapter.LoggingMiddleware(lgr)(mux)
	handler = httpAdapter.RecoveryMiddleware(lgr)(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lgr.Info("service_started", fmt.Sprintf("%s started on port %d", name, port), "startup", map[string]interface{}{
		"port": port,
	})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		lgr.Info("shutdown_initiated", fmt.Sprintf("Shutting down %s", name), "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		lgr.Error("server_error", "Server error", "runtime", nil, err)
	}
}

func runNotificationSubscriber(ctx context.Context, mqConn rabbitmq.Connection, lgr logger.Logger) {
	consumer := rabbitmq.NewConsumer(mqConn)
	notificationHandler := amqpAdapter.NewNotificationHandler(lgr)

	lgr.Info("service_started", "Notification Subscriber started", "startup", nil)

	go func() {
		if err := consumer.ConsumeNotifications(ctx, notificationHandler.HandleNotification); err != nil {
			lgr.Error("consumer_error", "Error consuming notifications", "runtime", nil, err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	<-sigint

	lgr.Info("shutdown_initiated", "Shutting down Notification Subscriber", "shutdown", nil)
}
