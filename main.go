package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/playgrid/fieldbook/analytics"
	"github.com/playgrid/fieldbook/api"
	"github.com/playgrid/fieldbook/cache"
	"github.com/playgrid/fieldbook/config"
	"github.com/playgrid/fieldbook/db"
	"github.com/playgrid/fieldbook/gateway"
	"github.com/playgrid/fieldbook/locks"
	"github.com/playgrid/fieldbook/middleware"
	"github.com/playgrid/fieldbook/observability"
	"github.com/playgrid/fieldbook/resilience"
	"github.com/playgrid/fieldbook/services"
	"github.com/playgrid/fieldbook/stores"
	"github.com/playgrid/fieldbook/webhooks"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func printBanner() {
	fmt.Printf("%s%s", colorCyan, colorBold)
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                                                              ║")
	fmt.Println("║  🏟  Fieldbook Facility Booking System                        ║")
	fmt.Println("║                                                              ║")
	fmt.Println("║  Atomic slot reservations with payment-driven lifecycle      ║")
	fmt.Println("║                                                              ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("%s", colorReset)
}

func printStep(step, message string) {
	fmt.Printf("%s[%s]%s %s%s%s\n", colorBlue, step, colorReset, colorBold, message, colorReset)
}

func printSuccess(message string) {
	fmt.Printf("%s✓%s %s\n", colorGreen, colorReset, message)
}

func printWarning(message string) {
	fmt.Printf("%s⚠%s %s\n", colorYellow, colorReset, message)
}

func printError(message string) {
	fmt.Printf("%s✗%s %s\n", colorRed, colorReset, message)
}

func printInfo(message string) {
	fmt.Printf("%sℹ%s %s\n", colorCyan, colorReset, message)
}

func main() {
	printBanner()
	fmt.Println()

	printStep("1/10", "Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}
	printSuccess("Configuration loaded successfully")

	printStep("2/10", "Validating configuration...")
	if err := cfg.Validate(); err != nil {
		printError(fmt.Sprintf("Configuration validation failed: %v", err))
		os.Exit(1)
	}
	printSuccess("Configuration validation passed")

	printStep("3/10", "Connecting to database...")
	database, err := db.Connect(cfg)
	if err != nil {
		printError(fmt.Sprintf("Failed to connect to database: %v", err))
		os.Exit(1)
	}
	defer db.Close(database)
	printSuccess(fmt.Sprintf("Connected to PostgreSQL at %s:%d", cfg.Database.Host, cfg.Database.Port))

	printStep("4/10", "Running schema migrations...")
	if err := db.CreateMigrator(database).Up(); err != nil {
		printError(fmt.Sprintf("Migrations failed: %v", err))
		os.Exit(1)
	}
	printSuccess("Schema is up to date")

	printStep("5/10", "Connecting to Redis...")
	redisCache, err := cache.CreateRedisCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		printWarning(fmt.Sprintf("Failed to connect to Redis: %v (continuing with in-process locks)", err))
		redisCache = nil
	} else {
		defer redisCache.Close()
		printSuccess(fmt.Sprintf("Connected to Redis at %s:%d", cfg.Redis.Host, cfg.Redis.Port))
	}

	var availCache *cache.RedisCache
	if cfg.Reservation.AvailabilityCacheOn && redisCache != nil {
		availCache = redisCache
		printInfo("Availability cache enabled")
	}

	printStep("6/10", "Selecting reservation lock store...")
	locker := locks.Select(context.Background(), redisCache)
	if redisCache != nil {
		printSuccess("Reservation locks backed by Redis")
	} else {
		printWarning("Reservation locks are in-process only")
	}

	printStep("7/10", "Initializing payment gateways...")
	executor := resilience.CreateOperationExecutor(resilience.ExecutorConfig{
		RetryConfig: resilience.RetryConfig{
			MaxRetries:   cfg.Resilience.MaxRetries,
			BaseDelay:    cfg.Resilience.BaseDelay,
			MaxDelay:     cfg.Resilience.MaxDelay,
			Multiplier:   cfg.Resilience.Multiplier,
			JitterFactor: cfg.Resilience.JitterFactor,
		},
		BreakerConfig: resilience.CircuitBreakerConfig{
			MaxFailures: cfg.Resilience.BreakerMaxFailures,
			Cooldown:    cfg.Resilience.BreakerCooldown,
			HalfOpenMax: cfg.Resilience.BreakerHalfOpenMax,
		},
	})

	gateways := map[string]gateway.PaymentGateway{
		"stripe": gateway.CreateStripeGateway(cfg.Stripe.Secret, cfg.Stripe.WebhookSecret),
		"xendit": gateway.CreateXenditGateway(cfg.Xendit.Secret, cfg.Xendit.WebhookSecret),
	}
	printSuccess("Payment gateways initialized")
	printInfo("  • Stripe: checkout sessions + refunds")
	printInfo("  • Xendit: invoices + refunds")

	printStep("8/10", "Initializing stores and services...")
	bookingStore := stores.CreateBookingStore(database)
	slotStore := stores.CreateSlotStore(database)
	paymentStore := stores.CreatePaymentStore(database)
	eventStore := stores.CreateWebhookEventStore(database)

	var refundPolicy services.RefundPolicy
	if len(cfg.Refunds) > 0 {
		tiers := make([]services.RefundTier, 0, len(cfg.Refunds))
		for _, t := range cfg.Refunds {
			tiers = append(tiers, services.RefundTier{
				MinHoursBefore: t.MinHoursBefore,
				Percent:        t.Percent,
			})
		}
		refundPolicy = services.CreateHoursBeforeRefundPolicy(tiers)
	}

	reservationService := services.CreateReservationService(
		bookingStore, slotStore, paymentStore, locker, executor, availCache,
		services.ReservationServiceConfig{
			LockTTL:     cfg.Reservation.LockTTL,
			DedupWindow: cfg.Reservation.DedupWindow,
		},
	)
	lifecycleService := services.CreateLifecycleService(
		bookingStore, slotStore, paymentStore, gateways, executor, refundPolicy, availCache,
	)
	webhookService := services.CreateWebhookService(eventStore, lifecycleService, gateways)

	notifier := webhooks.CreateNotifier()
	reservationService.SetNotifier(notifier)
	lifecycleService.SetNotifier(notifier)
	printSuccess("Services initialized")

	printStep("9/10", "Initializing observability...")
	metrics := observability.CreateMetricsCollector()
	lifecycleService.SetMetrics(metrics)
	checker := observability.CreateHealthChecker()
	checker.AddCheck("database", func(ctx context.Context) error {
		return db.Ping(ctx, database)
	})
	if redisCache != nil {
		checker.AddCheck("redis", redisCache.Ping)
	}
	reporter := analytics.CreateReporter(database)
	printSuccess("Metrics, health checks and reporting ready")

	printStep("10/10", "Setting up HTTP server...")
	router := mux.NewRouter()
	router.Use(middleware.CorrelationIDMiddleware)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.RecoveryMiddleware)
	router.Use(middleware.CORSMiddleware)
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	api.CreateReservationHandler(reservationService, metrics).RegisterRoutes(apiRouter)
	api.CreateBookingHandler(bookingStore, lifecycleService, metrics).RegisterRoutes(apiRouter)
	api.CreateWebhookHandler(webhookService, metrics).RegisterRoutes(apiRouter)
	api.CreateHealthHandler(checker, metrics).RegisterRoutes(apiRouter)
	api.CreateReportHandler(reporter).RegisterRoutes(apiRouter)
	api.CreateNotificationHandler(notifier).RegisterRoutes(apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	printSuccess("HTTP server configured")

	bgCtx, stopBackground := context.WithCancel(context.Background())
	go runSweeps(bgCtx, cfg, lifecycleService, webhookService)

	fmt.Println()
	fmt.Printf("%s%s🎉 Fieldbook is ready!%s\n", colorGreen, colorBold, colorReset)
	fmt.Println()
	fmt.Printf("%s%sAPI Endpoints:%s\n", colorPurple, colorBold, colorReset)
	fmt.Printf("  %s•%s Health Check: %shttp://localhost:%s/api/v1/health%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Printf("  %s•%s Metrics:      %shttp://localhost:%s/api/v1/metrics%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Printf("  %s•%s Reservations: %shttp://localhost:%s/api/v1/reservations%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Printf("  %s•%s Bookings:     %shttp://localhost:%s/api/v1/bookings%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Printf("  %s•%s Webhooks:     %shttp://localhost:%s/api/v1/webhooks/{gateway}%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Printf("  %s•%s Reports:      %shttp://localhost:%s/api/v1/reports/revenue%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Println()
	fmt.Printf("%s%sEnvironment:%s %s%s%s\n", colorPurple, colorBold, colorReset, colorYellow, cfg.Environment, colorReset)
	fmt.Printf("%s%sServer Port:%s %s%s%s\n", colorPurple, colorBold, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Printf("%s%sDatabase:%s %s%s:%d%s\n", colorPurple, colorBold, colorReset, colorYellow, cfg.Database.Host, cfg.Database.Port, colorReset)
	if redisCache != nil {
		fmt.Printf("%s%sRedis:%s %s%s%s\n", colorPurple, colorBold, colorReset, colorYellow, cfg.GetRedisAddr(), colorReset)
	}
	fmt.Println()
	fmt.Printf("%s%sPress Ctrl+C to stop the server%s\n", colorYellow, colorBold, colorReset)
	fmt.Println()

	go func() {
		printInfo(fmt.Sprintf("Starting HTTP server on port %s...", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			printError(fmt.Sprintf("Server failed to start: %v", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println()
	printWarning("Shutting down Fieldbook server...")

	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		printError(fmt.Sprintf("Server forced to shutdown: %v", err))
		os.Exit(1)
	}

	printSuccess("Fieldbook server stopped gracefully")
}

// runSweeps drives the periodic maintenance loops: expiring bookings whose
// payment never arrived, redriving failed webhook events, and pruning the
// processed-event log.
func runSweeps(ctx context.Context, cfg *config.Config, lifecycle *services.LifecycleService, webhook *services.WebhookService) {
	sweep := time.NewTicker(cfg.Reservation.SweepInterval)
	defer sweep.Stop()

	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if n, err := lifecycle.ExpireStalePending(ctx, cfg.Reservation.PendingTimeout, 100); err != nil {
				printWarning(fmt.Sprintf("Pending-booking sweep failed: %v", err))
			} else if n > 0 {
				printInfo(fmt.Sprintf("Expired %d stale pending bookings", n))
			}
			if n, err := webhook.ProcessPendingEvents(ctx, 50); err != nil {
				printWarning(fmt.Sprintf("Webhook redrive failed: %v", err))
			} else if n > 0 {
				printInfo(fmt.Sprintf("Redrove %d webhook events", n))
			}
		case <-cleanup.C:
			if _, err := webhook.CleanupProcessed(ctx, cfg.Reservation.WebhookRetention); err != nil {
				printWarning(fmt.Sprintf("Webhook cleanup failed: %v", err))
			}
		}
	}
}
