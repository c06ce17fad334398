package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	api "gearbox-rental-backend/internal/api/grpc"
	"gearbox-rental-backend/internal/api/grpc/interceptor"
	httpapi "gearbox-rental-backend/internal/api/http"
	"gearbox-rental-backend/internal/catalog"
	"gearbox-rental-backend/internal/config"
	"gearbox-rental-backend/internal/logger"
	"gearbox-rental-backend/internal/repository"
	"gearbox-rental-backend/internal/repository/memory"
	"gearbox-rental-backend/internal/repository/postgres"
	"gearbox-rental-backend/internal/security"
	"gearbox-rental-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	catalogPath := flag.String("catalog", "", "Catalog YAML to load when running on the memory store")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring unreadable .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Gearbox Rental Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "grpc_address", cfg.GetServerAddress(), "http_address", cfg.GetHTTPAddress())

	// Initialize store
	var (
		store       repository.Store
		healthCheck httpapi.HealthChecker
	)
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		mem := memory.NewStore()
		if *catalogPath != "" {
			seed, err := catalog.Load(*catalogPath)
			if err != nil {
				log.Fatalf("Failed to load catalog: %v", err)
			}
			catalog.ApplyMemory(mem, seed)
		}
		store = mem
	default:
		logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
		db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

		if err := db.Ping(); err != nil {
			logger.Error("Failed to ping database", "error", err)
			log.Fatalf("Failed to ping database: %v", err)
		}
		logger.Info("Database connection established")
		store = postgres.NewStore(db)
		healthCheck = db.PingContext
	}

	// Initialize notifier
	var notifier service.Notifier
	if cfg.Email.SendGridAPIKey != "" {
		logger.Info("Email configuration", "provider", "sendgrid", "from", cfg.Email.FromEmail)
		notifier = service.NewSendGridNotifier(cfg.Email.SendGridAPIKey, cfg.Email.FromEmail, cfg.Email.FromName)
	} else {
		logger.Info("Email configuration", "provider", "log")
		notifier = service.NewLogNotifier()
	}

	// Initialize services
	bookingSvc := service.NewBookingService(store, notifier, cfg.Booking.LateFeePolicy(), time.Now)
	availabilitySvc := service.NewAvailabilityService(store)
	backOfficeSvc := service.NewBackOfficeService(store, time.Now)

	// Initialize security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)
	authInterceptor := interceptor.NewAuthInterceptor(tokenManager)

	// Set up gRPC server
	lis, err := net.Listen("tcp", cfg.GetServerAddress())
	if err != nil {
		logger.Error("Failed to listen", "error", err, "address", cfg.GetServerAddress())
		log.Fatalf("Failed to listen: %v", err)
	}

	s := grpc.NewServer(
		grpc.UnaryInterceptor(authInterceptor.Unary()),
		grpc.StreamInterceptor(authInterceptor.Stream()),
	)
	api.NewAdminHandler(bookingSvc, availabilitySvc, backOfficeSvc).Register(s)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(s, healthSrv)
	healthSrv.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Register reflection service for grpcurl
	reflection.Register(s)

	// Set up HTTP storefront
	router := mux.NewRouter()
	httpapi.RegisterStorefrontRoutes(router, httpapi.NewStorefrontHandler(availabilitySvc, bookingSvc, healthCheck))
	httpSrv := &http.Server{
		Addr:              cfg.GetHTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP storefront listening", "address", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		logger.Info("gRPC server listening", "address", cfg.GetServerAddress())
		if err := s.Serve(lis); err != nil {
			logger.Error("Failed to serve gRPC", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down servers...")
	healthSrv.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	s.GracefulStop()
	logger.Info("Servers stopped. Goodbye!")
}
