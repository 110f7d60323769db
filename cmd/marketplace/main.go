// Command marketplace is the marketplace core's single process entrypoint: it
// wires the intake, vendor-selection, credit, ledger, workflow, and job
// fabric packages into one HTTP server plus its background recovery
// scheduler, and drains both cleanly on shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mandiflow/core/internal/cache"
	"github.com/mandiflow/core/internal/config"
	"github.com/mandiflow/core/internal/credit"
	"github.com/mandiflow/core/internal/database"
	"github.com/mandiflow/core/internal/httpapi"
	"github.com/mandiflow/core/internal/intake"
	"github.com/mandiflow/core/internal/jobs"
	"github.com/mandiflow/core/internal/ledger"
	"github.com/mandiflow/core/internal/logging"
	"github.com/mandiflow/core/internal/models"
	"github.com/mandiflow/core/internal/parser"
	"github.com/mandiflow/core/internal/providers"
	"github.com/mandiflow/core/internal/scheduler"
	"github.com/mandiflow/core/internal/vendorselect"
	"github.com/mandiflow/core/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLog := logging.New(logging.Config{
		Level:       "info",
		Service:     "marketplace-core",
		Environment: cfg.Environment,
		Format:      "json",
	})
	defer appLog.Sync()

	gormLog := gormlogger.New(log.New(os.Stdout, "gorm ", log.LstdFlags), gormlogger.Config{
		SlowThreshold: cfg.SlowQueryThreshold,
		LogLevel:      gormlogger.Warn,
	})
	db, err := database.Connect(cfg.DatabaseURL, database.DefaultPoolConfig(), gormLog)
	if err != nil {
		appLog.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		appLog.Fatal("failed to run migrations", zap.Error(err))
	}

	var redisClient *redis.Client
	if !cfg.SyncMode() {
		opts, err := redis.ParseURL(cfg.BrokerURL)
		if err != nil {
			appLog.Fatal("invalid BROKER_URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			appLog.Warn("broker unreachable at startup, falling back to sync job fabric", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}

	queues := jobs.DefaultQueues()
	if cfg.QueueConfigFile != "" {
		queues, err = jobs.LoadQueueFile(cfg.QueueConfigFile)
		if err != nil {
			appLog.Fatal("invalid QUEUE_CONFIG_FILE", zap.Error(err))
		}
	}
	fabric := jobs.New(redisClient, queues, appLog)
	vendorCache := cache.New()

	// --- parser ---
	sessionStore := parser.NewSessionStore(db.DB)
	catalog := parser.NewGormCatalogProvider(db.DB)
	orderParser := parser.New(sessionStore, catalog, parser.Thresholds{
		AutoAccept:     cfg.ParseAutoAccept,
		NeedsReview:    cfg.ParseNeedsReview,
		MatchThreshold: cfg.ProductMatchThreshold,
	})

	// --- vendor selection ---
	vendorRepo := vendorselect.NewGormVendorRepository(db.DB)
	decisionLog := vendorselect.NewDecisionLogStore(db.DB)
	strategy := vendorselect.Strategy(cfg.LoadBalancingStrategy)
	selector := vendorselect.NewSelector(vendorRepo, vendorCache, decisionLog, appLog, vendorselect.EligibilityConfig{
		MonopolyThreshold:       cfg.MonopolyThreshold,
		WorkingHoursEnabled:     cfg.WorkingHoursEnabled,
		DefaultMaxActiveOrders:  cfg.MaxActiveOrdersPerVendor,
		DefaultMaxPendingOrders: cfg.MaxPendingOrdersPerVendor,
	}, strategy)
	retryStore := vendorselect.NewRetryStore(db.DB)
	reassignCfg := vendorselect.ReassignmentConfig{
		ResponseDeadline: time.Duration(cfg.RecoveryVendorResponseDeadlineHours) * time.Hour,
		MaxAttempts:      cfg.RecoveryMaxVendorAttempts,
	}
	reassigner := vendorselect.NewReassigner(selector, retryStore, reassignCfg)

	// --- credit ---
	validatorCfg := credit.DefaultValidatorConfig()
	validatorCfg.HighRiskThreshold = 70
	atomicWriter := credit.NewAtomicWriter(db.DB, validatorCfg)
	idempotencyGuard := credit.NewIdempotencyGuard(db.DB)
	rejectionStore := credit.NewRejectionStore(db.DB)

	// --- ledger / price intelligence ---
	creditLedger := ledger.New(db.DB)
	priceTracker := ledger.NewPriceTracker(db.DB)

	// --- workflow / recovery ---
	heartbeatTimeout := time.Duration(cfg.RecoveryWorkflowTimeoutMinutes) * time.Minute
	workflowMgr := workflow.NewManager(db.DB, heartbeatTimeout)
	webhookStore := workflow.NewWebhookStore(db.DB)
	recoveryMgr := workflow.NewRecoveryManager(db.DB, cfg.RecoveryMaxVendorAttempts)
	selfHealer := workflow.NewSelfHealer(db.DB)

	notify := func(kind, message string, fields map[string]interface{}) {
		f := make([]zap.Field, 0, len(fields)+1)
		f = append(f, zap.String("kind", kind))
		for k, v := range fields {
			f = append(f, zap.Any(k, v))
		}
		appLog.Error("admin_notification: "+message, f...)
	}

	recoveryWorker := workflow.NewRecoveryWorker(db.DB, webhookStore, workflowMgr, recoveryMgr, selfHealer, appLog, notify,
		&workflow.VendorRetryAccessor{ExpiredAwaitingResponse: retryStore.ExpiredAwaitingResponse},
		func(retry *models.VendorAssignmentRetry) error { return reassigner.ReassignExpired(db.DB, retry) },
	)

	// --- intake pipeline ---
	pipeline := &intake.Pipeline{
		DB:         db.DB,
		Parser:     orderParser,
		Selector:   selector,
		Decisions:  decisionLog,
		Retries:    retryStore,
		Reassign:   reassignCfg,
		Writer:     atomicWriter,
		Idempotent: idempotencyGuard,
		Rejections: rejectionStore,
		Workflows:  workflowMgr,
		Fabric:     fabric,
		Log:        appLog,
	}

	// --- outbound providers ---
	var ocrClient *providers.OCRClient
	if cfg.OCRProviderURL != "" {
		ocrClient = providers.NewOCRClient(cfg.OCRProviderURL, 10*time.Second, appLog)
	}
	var llmClient *providers.LLMClient
	if cfg.LLMProviderURL != "" {
		llmClient = providers.NewLLMClient(cfg.LLMProviderURL, 15*time.Second, appLog)
	}
	objectStore := providers.NewObjectStore(cfg.ObjectStoreURL, 10*time.Second, appLog)
	whatsappSender := providers.NewWhatsAppSender(cfg.WhatsAppProviderURL, 10*time.Second, appLog)
	extractor := providers.NewTieredExtractor(llmClient, ocrClient, appLog)

	// --- job processors ---
	fabric.Register(jobs.QueueWhatsAppMessages, newWhatsAppProcessor(db.DB, webhookStore, pipeline, whatsappSender, appLog))
	fabric.Register(jobs.QueueImageProcessing, newImageProcessor(db.DB, objectStore, extractor, pipeline, appLog))

	production := cfg.Environment == "production"

	// --- HTTP surface ---
	recoveryHandlers := &httpapi.RecoveryHandlers{Worker: recoveryWorker}
	deps := httpapi.Deps{
		Orders: &httpapi.OrderHandlers{
			DB:          db.DB,
			Pipeline:    pipeline,
			ObjectStore: objectStore,
			Fabric:      fabric,
			Log:         appLog,
			Production:  production,
		},
		Webhook: &httpapi.WebhookHandlers{
			Webhooks:    webhookStore,
			Fabric:      fabric,
			VerifyToken: cfg.WhatsAppVerifyToken,
			Secret:      cfg.WhatsAppWebhookSecret,
			MaxRetries:  cfg.RecoveryWebhookMaxRetries,
			Log:         appLog,
			Production:  production,
		},
		Recovery: recoveryHandlers,
		Queues:   &httpapi.QueueHandlers{Fabric: fabric, Production: production},
		SelfHeal: &httpapi.SelfHealHandlers{Worker: recoveryWorker, Recovery: recoveryHandlers},
		Vendors:  &httpapi.VendorHandlers{DB: db.DB, Prices: priceTracker, Production: production},
		Retailers: &httpapi.RetailerHandlers{DB: db.DB, Ledger: creditLedger, Production: production},

		RateLimitMax:    cfg.RateLimitMaxRequests,
		RateLimitWindow: cfg.RateLimitWindow,
	}
	server := httpapi.New(deps, appLog, production)

	httpSrv := &http.Server{Addr: ":" + cfg.ServerPort, Handler: server.Engine}

	ctx, cancelFabric := context.WithCancel(context.Background())
	fabric.Start(ctx)

	sched := scheduler.New(appLog)
	registerTickers(sched, recoveryWorker, recoveryHandlers, priceTracker, db.DB, validatorCfg, appLog)
	sched.Start()

	go func() {
		appLog.Info("marketplace core listening", zap.String("port", cfg.ServerPort), zap.String("job_fabric_mode", fabric.Mode()))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sched.Stop()
	fabric.Stop()
	cancelFabric()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http server shutdown error", zap.Error(err))
	}

	sqlDB, err := db.DB.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	appLog.Info("shutdown complete")
	fmt.Println("marketplace core stopped")
}

// registerTickers wires the single-instance, overlap-preventing
// timers: the recovery/self-healing sweep (every 2 minutes) and the
// hourly performance/price-analytics recompute pass. Each recovery run's report is published to the
// recovery dashboard so scheduled sweeps are visible alongside
// operator-triggered ones.
func registerTickers(sched *scheduler.Scheduler, worker *workflow.RecoveryWorker, recoveryHandlers *httpapi.RecoveryHandlers, prices *ledger.PriceTracker, db *gorm.DB, validatorCfg credit.ValidatorConfig, log *logging.Logger) {
	if err := sched.Register(scheduler.Job{
		Name: "recovery_sweep",
		Spec: "@every 2m",
		Run: func() {
			report := worker.RunCycle()
			recoveryHandlers.RecordCycle(report)
		},
	}); err != nil {
		log.Error("failed to register recovery sweep ticker", zap.Error(err))
	}

	if err := sched.Register(scheduler.Job{
		Name: "price_analytics_recompute",
		Spec: "@hourly",
		Run: func() {
			n, err := prices.RecomputeAll(func(a ledger.MarketAnalytics) {
				log.Warn("abnormal market price trend",
					zap.String("product_id", a.ProductID), zap.String("trend", a.Trend), zap.Float64("volatility", a.VolatilityScore))
			})
			if err != nil {
				log.Error("price analytics recompute failed", zap.Error(err))
				return
			}
			log.Info("price analytics recompute complete", zap.Int("products", n))
		},
	}); err != nil {
		log.Error("failed to register price analytics ticker", zap.Error(err))
	}

	if err := sched.Register(scheduler.Job{
		Name: "performance_recompute",
		Spec: "@hourly",
		Run: func() {
			vendors, err := ledger.RecomputeAllVendorReliability(db)
			if err != nil {
				log.Error("vendor reliability recompute failed", zap.Error(err))
			} else {
				log.Info("vendor reliability recompute complete", zap.Int("vendors", vendors))
			}

			retailers, err := ledger.RecomputeAllRiskScores(db, ledger.RiskScoreConfig{OverdueBlockDays: validatorCfg.OverdueBlockDays})
			if err != nil {
				log.Error("retailer risk score recompute failed", zap.Error(err))
			} else {
				log.Info("retailer risk score recompute complete", zap.Int("retailers", retailers))
			}
		},
	}); err != nil {
		log.Error("failed to register performance recompute ticker", zap.Error(err))
	}
}
