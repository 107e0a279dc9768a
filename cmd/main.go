package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/facades"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/handlers"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/middlewares"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/repositories"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/retry"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// @title gw-wallet-ledger API
// @version 1.0.0
// @description Microservice for wallet balances, transfers and the transaction ledger
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	printBuildInfo()
	configPath := parseFlags()

	appHost, appPort, pgHost, pgPort, pgUser, pgPassword, pgDB,
		pgMaxOpenConns, pgMaxIdleConns,
		redisHost, redisPort, redisDB, redisPassword, cacheTTLSecond,
		kafkaHost, kafkaPort, kafkaTopic,
		logLevel, jwtSecret, jwtExpSecond,
		transferFeeRate, transferFeeCap, paymentFeeRate, paymentFeeCap,
		depositFeeRate, depositFeeCap, providerFlatFee,
		platformWalletID, collectionWalletID,
		repaymentPollSecond, retryBaseSecond, retryMaxAttempts,
		err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(),
		appHost, appPort,
		pgHost, pgPort, pgUser, pgPassword, pgDB,
		pgMaxOpenConns, pgMaxIdleConns,
		redisHost, redisPort, redisDB, redisPassword, cacheTTLSecond,
		kafkaHost, kafkaPort, kafkaTopic,
		logLevel, jwtSecret, jwtExpSecond,
		transferFeeRate, transferFeeCap, paymentFeeRate, paymentFeeCap,
		depositFeeRate, depositFeeCap, providerFlatFee,
		platformWalletID, collectionWalletID,
		repaymentPollSecond, retryBaseSecond, retryMaxAttempts,
	); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Starting service version %s, commit %s, build %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// parseConfig loads environment variables from a file and returns all
// application, database, Redis, Kafka, logging, JWT, fee and repayment
// configuration.
func parseConfig(path string) (
	appHost, appPort string,
	pgHost string, pgPort int, pgUser, pgPassword, pgDB string,
	pgMaxOpenConns, pgMaxIdleConns int,
	redisHost string, redisPort, redisDB int, redisPassword string, cacheTTLSecond int,
	kafkaHost string, kafkaPort int, kafkaTopic string,
	logLevel, jwtSecretKey string, jwtExpSecond int,
	transferFeeRate, transferFeeCap, paymentFeeRate, paymentFeeCap string,
	depositFeeRate, depositFeeCap, providerFlatFee string,
	platformWalletID, collectionWalletID string,
	repaymentPollSecond, retryBaseSecond, retryMaxAttempts int,
	err error,
) {
	_ = godotenv.Load(path)

	getEnv := func(key, defaultValue string) string {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val
		}
		return defaultValue
	}

	// Application config
	appHost = getEnv("APP_HOST", "localhost")
	appPort = getEnv("APP_PORT", "8080")
	logLevel = getEnv("APP_LOG_LEVEL", "info")

	// PostgreSQL config
	pgHost = getEnv("POSTGRES_HOST", "localhost")
	pgUser = getEnv("POSTGRES_USER", "user")
	pgPassword = getEnv("POSTGRES_PASSWORD", "password")
	pgDB = getEnv("POSTGRES_DB", "database")
	if pgPort, err = strconv.Atoi(getEnv("POSTGRES_PORT", "5432")); err != nil {
		return
	}
	if pgMaxOpenConns, err = strconv.Atoi(getEnv("POSTGRES_MAX_OPEN_CONNS", "16")); err != nil {
		return
	}
	if pgMaxIdleConns, err = strconv.Atoi(getEnv("POSTGRES_MAX_IDLE_CONNS", "8")); err != nil {
		return
	}

	// Redis config
	redisHost = getEnv("REDIS_HOST", "localhost")
	if redisPort, err = strconv.Atoi(getEnv("REDIS_PORT", "6379")); err != nil {
		return
	}
	if redisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return
	}
	redisPassword = getEnv("REDIS_PASSWORD", "")
	if cacheTTLSecond, err = strconv.Atoi(getEnv("REFERENCE_CACHE_TTL_SECOND", "3600")); err != nil {
		return
	}

	// Kafka config
	kafkaHost = getEnv("KAFKA_HOST", "localhost")
	if kafkaPort, err = strconv.Atoi(getEnv("KAFKA_PORT", "9092")); err != nil {
		return
	}
	kafkaTopic = getEnv("KAFKA_TOPIC", "wallet-transactions")

	// JWT config
	jwtSecretKey = getEnv("JWT_SECRET_KEY", "my_super_secret_key")
	if jwtExpSecond, err = strconv.Atoi(getEnv("JWT_EXP_SECOND", "3600")); err != nil {
		return
	}

	// Fee config
	transferFeeRate = getEnv("TRANSFER_FEE_RATE", "0.015")
	transferFeeCap = getEnv("TRANSFER_FEE_CAP", "1000")
	paymentFeeRate = getEnv("PAYMENT_FEE_RATE", "0.015")
	paymentFeeCap = getEnv("PAYMENT_FEE_CAP", "1000")
	depositFeeRate = getEnv("DEPOSIT_FEE_RATE", "0.015")
	depositFeeCap = getEnv("DEPOSIT_FEE_CAP", "1000")
	providerFlatFee = getEnv("PROVIDER_FLAT_FEE", "0")
	platformWalletID = getEnv("PLATFORM_WALLET_ID", "")
	collectionWalletID = getEnv("REPAYMENT_COLLECTION_WALLET_ID", "")

	// Auto-repayment config
	if repaymentPollSecond, err = strconv.Atoi(getEnv("REPAYMENT_POLL_SECOND", "60")); err != nil {
		return
	}
	if retryBaseSecond, err = strconv.Atoi(getEnv("REPAYMENT_RETRY_BASE_SECOND", "3600")); err != nil {
		return
	}
	if retryMaxAttempts, err = strconv.Atoi(getEnv("REPAYMENT_MAX_RETRY_ATTEMPTS", "3")); err != nil {
		return
	}

	return
}

// percentPolicy builds a capped percentage fee policy from config strings.
func percentPolicy(rate, cap string) (money.FeePolicy, error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid fee rate %q: %w", rate, err)
	}
	if r.IsZero() {
		return money.NoFee{}, nil
	}

	policy := money.PercentFee{Rate: r}
	if cap != "" {
		capAmount, err := money.Parse(cap)
		if err != nil {
			return nil, fmt.Errorf("invalid fee cap %q: %w", cap, err)
		}
		policy.Cap = &capAmount
	}
	return policy, nil
}

// optionalWalletID parses a wallet id config value, empty meaning unset.
func optionalWalletID(value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet id %q: %w", value, err)
	}
	return &id, nil
}

// run initializes the logger, database, Redis, Kafka, services and the HTTP
// server. It sets up routes, applies middleware, starts the auto-repayment
// worker, and handles graceful shutdown.
func run(ctx context.Context,
	appHost, appPort string,
	pgHost string, pgPort int, pgUser, pgPassword, pgDB string,
	pgMaxOpenConns, pgMaxIdleConns int,
	redisHost string, redisPort, redisDB int, redisPassword string, cacheTTLSecond int,
	kafkaHost string, kafkaPort int, kafkaTopic string,
	logLevel, jwtSecretKey string, jwtExpSecond int,
	transferFeeRate, transferFeeCap, paymentFeeRate, paymentFeeCap string,
	depositFeeRate, depositFeeCap, providerFlatFee string,
	platformWalletID, collectionWalletID string,
	repaymentPollSecond, retryBaseSecond, retryMaxAttempts int,
) error {
	// Initialize logger
	if err := logger.Initialize(logLevel); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Log.Sync()
	logger.Log.Infof("Logger initialized with level %s", logLevel)

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		pgUser, pgPassword, pgHost, pgPort, pgDB)
	logger.Log.Infof("Connecting to PostgreSQL at %s:%d/%s", pgHost, pgPort, pgDB)

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		logger.Log.Fatal("PostgreSQL connection error:", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(pgMaxOpenConns)
	db.SetMaxIdleConns(pgMaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		logger.Log.Fatal("PostgreSQL ping failed:", err)
	}

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", redisHost, redisPort),
		Password: redisPassword,
		DB:       redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Log.Fatal("Redis connection error:", err)
	}
	defer rdb.Close()

	// Kafka writer for transaction events
	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(fmt.Sprintf("%s:%d", kafkaHost, kafkaPort)),
		Topic:    kafkaTopic,
		Balancer: &kafka.LeastBytes{},
	}
	defer kafkaWriter.Close()

	// Fee policies and platform wallets
	transferFee, err := percentPolicy(transferFeeRate, transferFeeCap)
	if err != nil {
		return err
	}
	paymentFee, err := percentPolicy(paymentFeeRate, paymentFeeCap)
	if err != nil {
		return err
	}
	depositFee, err := percentPolicy(depositFeeRate, depositFeeCap)
	if err != nil {
		return err
	}
	providerFee, err := money.Parse(providerFlatFee)
	if err != nil {
		return fmt.Errorf("invalid provider flat fee %q: %w", providerFlatFee, err)
	}
	platformWallet, err := optionalWalletID(platformWalletID)
	if err != nil {
		return err
	}
	collectionWallet, err := optionalWalletID(collectionWalletID)
	if err != nil {
		return err
	}

	// Initialize JWT service
	tokener := jwt.New(
		jwt.WithSecretKey(jwtSecretKey),
		jwt.WithExpiration(time.Duration(jwtExpSecond)*time.Second),
	)

	// Initialize repositories
	uow := repositories.NewUnitOfWork(db)
	walletWriteRepo := repositories.NewWalletWriteRepository(db, repositories.GetTx)
	walletReadRepo := repositories.NewWalletReadRepository(db)
	txnWriteRepo := repositories.NewTransactionWriteRepository(db, repositories.GetTx)
	txnReadRepo := repositories.NewTransactionReadRepository(db)
	feeWriteRepo := repositories.NewTransactionFeeWriteRepository(db, repositories.GetTx)
	repaymentRepo := repositories.NewAutoRepaymentRepository(db, repositories.GetTx)
	disputeRepo := repositories.NewDisputeRepository(db, repositories.GetTx)

	// Facades
	referenceCache := facades.NewReferenceCacheFacade(rdb, time.Duration(cacheTTLSecond)*time.Second)
	provider := facades.NewInternalProviderFacade(providerFee)

	// Initialize services
	mutator := services.NewBalanceMutator(walletWriteRepo)
	transferService := services.NewTransferService(
		uow, walletWriteRepo, mutator, txnWriteRepo, txnReadRepo, feeWriteRepo,
		referenceCache, kafkaWriter,
		services.TransferConfig{
			TransferFee:      transferFee,
			PaymentFee:       paymentFee,
			PlatformWalletID: platformWallet,
		},
	)
	depositService := services.NewDepositService(
		uow, walletWriteRepo, mutator, txnWriteRepo, txnReadRepo, feeWriteRepo,
		referenceCache, provider, kafkaWriter,
		services.DepositConfig{DepositFee: depositFee},
	)
	repaymentService := services.NewRepaymentService(
		uow, walletWriteRepo, mutator, txnWriteRepo, txnReadRepo, repaymentRepo,
		referenceCache, kafkaWriter,
		services.RepaymentConfig{
			Retry: retry.Policy{
				BaseInterval: time.Duration(retryBaseSecond) * time.Second,
				MaxAttempts:  retryMaxAttempts,
			},
			CollectionWalletID: collectionWallet,
		},
	)
	disputeService := services.NewDisputeService(disputeRepo, txnReadRepo)

	// Initialize handlers
	balanceHandler := handlers.NewGetBalanceHandler(walletReadRepo, tokener)
	transferHandler := handlers.NewTransferHandler(transferService, tokener)
	paymentHandler := handlers.NewPaymentHandler(transferService, tokener)
	holdHandler := handlers.NewHoldHandler(transferService, tokener)
	releaseHandler := handlers.NewReleaseHandler(transferService, tokener)
	depositHandler := handlers.NewDepositHandler(depositService, tokener)
	withdrawHandler := handlers.NewWithdrawHandler(depositService, tokener)
	repayHandler := handlers.NewRepayHandler(repaymentService, tokener)
	openDisputeHandler := handlers.NewOpenDisputeHandler(disputeService, tokener)
	investigateDisputeHandler := handlers.NewInvestigateDisputeHandler(disputeService, tokener)
	resolveDisputeHandler := handlers.NewResolveDisputeHandler(disputeService, tokener)

	// Setup router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware)

	// Protected routes with JWT middleware
	authMiddleware := middlewares.AuthMiddleware(tokener)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/balance", balanceHandler)
		r.Post("/wallet/transfer", transferHandler)
		r.Post("/wallet/pay", paymentHandler)
		r.Post("/wallet/hold", holdHandler)
		r.Post("/wallet/release", releaseHandler)
		r.Post("/wallet/deposit", depositHandler)
		r.Post("/wallet/withdraw", withdrawHandler)
		r.Post("/loans/{id}/repay", repayHandler)
		r.Post("/disputes", openDisputeHandler)
		r.Post("/disputes/{id}/investigate", investigateDisputeHandler)
		r.Post("/disputes/{id}/resolve", resolveDisputeHandler)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://%s:%s/swagger/doc.json", appHost, appPort)),
	))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", appHost, appPort),
		Handler: r,
	}

	// Graceful shutdown
	errChan := make(chan error, 1)
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	// Auto-repayment worker
	go func() {
		ticker := time.NewTicker(time.Duration(repaymentPollSecond) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctxShutdown.Done():
				return
			case now := <-ticker.C:
				if err := repaymentService.ProcessDue(ctxShutdown, now); err != nil {
					logger.Log.Errorw("auto-repayment pass failed", "error", err)
				}
			}
		}
	}()

	// Spending-limit reset worker: daily counters reset at each UTC day
	// boundary, monthly counters at each month boundary.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		last := time.Now().UTC()
		for {
			select {
			case <-ctxShutdown.Done():
				return
			case tick := <-ticker.C:
				now := tick.UTC()
				if now.Year() != last.Year() || now.YearDay() != last.YearDay() {
					if n, err := walletWriteRepo.ResetDailySpent(ctxShutdown); err != nil {
						logger.Log.Errorw("daily limit reset failed", "error", err)
					} else {
						logger.Log.Infow("daily spending counters reset", "wallets", n)
					}
				}
				if now.Year() != last.Year() || now.Month() != last.Month() {
					if n, err := walletWriteRepo.ResetMonthlySpent(ctxShutdown); err != nil {
						logger.Log.Errorw("monthly limit reset failed", "error", err)
					} else {
						logger.Log.Infow("monthly spending counters reset", "wallets", n)
					}
				}
				last = now
			}
		}
	}()

	go func() {
		logger.Log.Infof("HTTP server listening on %s:%s", appHost, appPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case <-ctxShutdown.Done():
		logger.Log.Info("Shutdown signal received, stopping HTTP server...")
	case serveErr := <-errChan:
		return serveErr
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP server shutdown error", "error", err)
	}

	logger.Log.Info("HTTP server stopped gracefully")
	return nil
}
