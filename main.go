package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/leaf-check/internal/auth"
	"github.com/example/leaf-check/internal/config"
	"github.com/example/leaf-check/internal/container"
	"github.com/example/leaf-check/internal/grpchealth"
	"github.com/example/leaf-check/internal/handlers"
	"github.com/example/leaf-check/internal/logging"
	"github.com/example/leaf-check/internal/model"
	"github.com/example/leaf-check/internal/report"
	"github.com/example/leaf-check/internal/repository"
	"github.com/example/leaf-check/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheck(cfg, logger))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db := initDatabase(ctx, cfg.DatabaseDSN, logger)
	users := repository.NewUserRepository(db, logger)
	if err := users.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)
	defer redisClient.Close()

	jwtSvc, err := auth.NewJWTService(cfg.JWTSecret, cfg.JWTAudience, cfg.JWTIssuer, cfg.JWTTTL, logger)
	if err != nil {
		logger.Fatal("invalid auth settings", zap.Error(err))
	}
	accounts := auth.NewAccounts(users, jwtSvc, logger)

	models := model.NewCache(cfg.ONNXLibraryPath, logger)
	defer models.Close() //nolint:errcheck

	deps := container.Instance(container.Options{
		Auth:            jwtSvc,
		Loader:          models,
		Backend:         model.Backend(cfg.ModelBackend),
		RiceCheckpoint:  cfg.RiceModelPath,
		PulseCheckpoint: cfg.PulseModelPath,
		Logger:          logger,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := usecase.NewMetrics(registry)

	uc := usecase.NewAnalysisUseCase(deps, usecase.NewRedisCache(redisClient), report.NewGenerator(logger), metrics, cfg.ResultTTL, logger)

	checker := grpchealth.NewChecker(deps, logger)
	grpcServer := grpc.NewServer()
	checker.Register(grpcServer)
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("failed to listen for grpc", zap.Error(err), zap.String("addr", cfg.GRPCAddr))
	}
	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc server stopped", zap.Error(err))
		}
	}()
	go func() {
		ready := checker.Refresh(context.Background())
		logger.Info("crop models checked", zap.Any("ready", ready))
	}()

	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger))
	r.MaxMultipartMemory = handlers.MaxUploadSize

	handlers.RegisterRoutes(r, handlers.Dependencies{
		Analyses: uc,
		Accounts: accounts,
		Auth:     deps.Auth(),
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("leaf-check API listening", zap.String("addr", cfg.HTTPAddr), zap.String("grpc_addr", cfg.GRPCAddr))
	serveErr := serveHTTPServer(server, cfg.ShutdownTimeout, logger)

	checker.Shutdown()
	grpcServer.GracefulStop()
	if serveErr != nil {
		logger.Fatal("server failed", zap.Error(serveErr))
	}
}

func initDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

// runHealthcheck probes the local gRPC health endpoint and returns the process exit code.
func runHealthcheck(cfg *config.Config, logger *zap.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, conn, err := grpchealth.Dial(ctx, dialAddr(cfg.GRPCAddr), logger)
	if err != nil {
		return 1
	}
	defer conn.Close()

	status, err := grpchealth.Check(ctx, client, "")
	if err != nil || status != healthpb.HealthCheckResponse_SERVING {
		logger.Error("service unhealthy", zap.Error(err), zap.String("status", status.String()))
		return 1
	}
	return 0
}

// dialAddr turns a listen address such as ":9090" into one a client can dial.
func dialAddr(listenAddr string) string {
	if strings.HasPrefix(listenAddr, ":") {
		return "localhost" + listenAddr
	}
	return listenAddr
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
