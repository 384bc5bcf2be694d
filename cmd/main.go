package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pawpay/internal/clients"
	"pawpay/internal/config"
	"pawpay/internal/money"
	"pawpay/internal/repository"
	"pawpay/internal/service"
	"pawpay/internal/transport/auth"
	"pawpay/internal/transport/rest"
	"pawpay/internal/transport/websocket"
	"pawpay/pkg/database/postgres"
	"pawpay/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env or defaults")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	zlog, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db := mustInitPostgres(cfg.Postgres)
	defer postgres.Close(db)

	redisClient := mustInitRedis(cfg.Redis)
	defer redisClient.Close()

	storageClient, err := clients.NewLocalStorage(cfg.StatementDir, cfg.FilesPublicPrefix, cfg.ExternalURL)
	if err != nil {
		zlog.Fatal("storage init failed", zap.Error(err))
	}

	var s3Client *clients.S3Client
	if cfg.S3.Enabled {
		s3Client, err = clients.NewS3Client(ctx, clients.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			zlog.Fatal("s3 init failed", zap.Error(err))
		}
	}

	var notifier *clients.NotificationPublisher
	if cfg.AMQP.URL != "" {
		notifier, err = clients.NewNotificationPublisher(clients.AMQPConfig{
			URL:      cfg.AMQP.URL,
			Exchange: cfg.AMQP.Exchange,
		})
		if err != nil {
			zlog.Fatal("amqp init failed", zap.Error(err))
		}
		defer notifier.Close()
	} else {
		zlog.Warn("AMQP_URL not set, lifecycle events will not be published")
	}

	wsHub := websocket.NewHub(zlog)
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	processor := clients.NewProcessorClient(clients.ProcessorConfig{
		BaseURL: cfg.Processor.BaseURL,
		APIKey:  cfg.Processor.APIKey,
	})

	txDB := repository.NewDB(db)
	clinicRepo := repository.NewClinicRepository(db)
	ownerRepo := repository.NewOwnerRepository(db)
	planRepo := repository.NewPlanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	riskPoolRepo := repository.NewRiskPoolRepository(db)
	collectionRepo := repository.NewCollectionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statementRepo := repository.NewStatementRepository(db)

	policy := billingPolicy(cfg.Billing)

	auditLogger := service.NewAuditLogger(auditRepo, zlog)
	riskPoolSvc := service.NewRiskPoolService(riskPoolRepo, auditLogger, zlog)
	enrollmentSvc := service.NewEnrollmentService(
		txDB, clinicRepo, ownerRepo, planRepo, paymentRepo,
		riskPoolSvc, auditLogger, notifier, policy, zlog,
	)
	lifecycleSvc := service.NewPaymentLifecycleService(
		txDB, planRepo, paymentRepo, ownerRepo, riskPoolSvc, collectionRepo,
		auditLogger, processor, notifier, wsClient, policy, zlog,
	)
	payoutSvc := service.NewPayoutService(
		txDB, clinicRepo, planRepo, paymentRepo, payoutRepo,
		auditLogger, processor, wsClient, policy, zlog,
	)
	collectionsSvc := service.NewCollectionsService(
		txDB, planRepo, paymentRepo, collectionRepo, riskPoolSvc,
		auditLogger, notifier, wsClient, policy, zlog,
	)
	clinicSvc := service.NewClinicService(txDB, clinicRepo, auditLogger, zlog)
	statementSvc := service.NewStatementService(
		statementRepo, clinicRepo, redisClient, s3Client, storageClient, wsClient, zlog,
	)

	handler := rest.NewHandler(
		enrollmentSvc, lifecycleSvc, payoutSvc, riskPoolSvc,
		clinicSvc, statementSvc, redisClient, wsHub, zlog,
	)
	router := handler.InitRouterWithAuth(auth.ActorMiddleware())

	root := chi.NewRouter()

	// public: serve locally stored statement files
	root.Get("/files/{file}", func(w http.ResponseWriter, r *http.Request) {
		file := chi.URLParam(r, "file")
		path := filepath.Join(storageClient.BaseDir, filepath.Base(file))
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "failed to access file", http.StatusInternalServerError)
			return
		}

		orig := file
		if idx := strings.IndexByte(file, '_'); idx >= 0 {
			orig = file[idx+1:]
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", orig))
		http.ServeFile(w, r, path)
	})

	root.Mount("/", router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withCORS(root),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		zlog.Info("HTTP server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	// background loops: due charges, payout settlement, collections
	go runSweep(ctx, cfg.Sweeps.DueCharges, func() {
		if n, err := lifecycleSvc.ChargeDuePayments(ctx, cfg.Sweeps.ChargeLimit); err != nil {
			zlog.Error("due charge sweep failed", zap.Error(err))
		} else if n > 0 {
			zlog.Info("due charges submitted", zap.Int("count", n))
		}
	})
	go runSweep(ctx, cfg.Sweeps.Payouts, func() {
		if _, err := payoutSvc.ProcessPendingPayouts(ctx); err != nil {
			zlog.Error("payout sweep failed", zap.Error(err))
		}
	})
	go runSweep(ctx, cfg.Sweeps.Collections, func() {
		now := time.Now().UTC()
		if _, err := collectionsSvc.OpenDelinquentCollections(ctx, now); err != nil {
			zlog.Error("collections open sweep failed", zap.Error(err))
		}
		if _, _, err := collectionsSvc.EscalateDueCollections(ctx, now); err != nil {
			zlog.Error("collections escalation sweep failed", zap.Error(err))
		}
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			zlog.Fatal("HTTP server error", zap.Error(err))
		}
	case sig := <-stop:
		zlog.Info("shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			zlog.Warn("HTTP server shutdown error", zap.Error(err))
		}

		cancel()
		zlog.Info("shutdown complete")
	}
}

func runSweep(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func billingPolicy(cfg config.BillingConfig) service.BillingPolicy {
	return service.BillingPolicy{
		Rates: money.Rates{
			FeeBps:         cfg.FeeBps,
			DepositBps:     cfg.DepositBps,
			RiskPoolBps:    cfg.RiskPoolBps,
			ReserveBps:     cfg.ReserveBps,
			ClinicShareBps: cfg.ClinicShareBps,
		},
		MinBillCents:        cfg.MinBillCents,
		MaxBillCents:        cfg.MaxBillCents,
		NumInstallments:     cfg.NumInstallments,
		InstallmentInterval: time.Duration(cfg.InstallmentIntervalDay) * 24 * time.Hour,
		MaxPaymentRetries:   cfg.MaxPaymentRetries,
		PayoutBatchSize:     cfg.PayoutBatchSize,
		OverdueGrace:        time.Duration(cfg.OverdueGraceDays) * 24 * time.Hour,
	}
}

func mustInitPostgres(cfg config.PostgresConfig) *sql.DB {
	db, err := postgres.NewPostgresConnection(postgres.ConnectionInfo{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
		Password: cfg.Password,
	})
	if err != nil {
		log.Fatalf("postgres init error: %v", err)
	}
	return db
}

func mustInitRedis(cfg config.RedisConfig) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	return client
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Actor-Id, X-Actor-Type, X-Actor-Role")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
