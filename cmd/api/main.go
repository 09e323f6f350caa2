package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craftlink/craftlink-backend/internal/api"
	"github.com/craftlink/craftlink-backend/internal/auth"
	"github.com/craftlink/craftlink-backend/internal/config"
	"github.com/craftlink/craftlink-backend/internal/db"
	"github.com/craftlink/craftlink-backend/internal/gateway"
	"github.com/craftlink/craftlink-backend/internal/jobs"
	"github.com/craftlink/craftlink-backend/internal/logger"
	"github.com/craftlink/craftlink-backend/internal/metrics"
	"github.com/craftlink/craftlink-backend/internal/middleware"
	"github.com/craftlink/craftlink-backend/internal/notify"
	"github.com/craftlink/craftlink-backend/internal/repository/postgres"
	"github.com/craftlink/craftlink-backend/internal/reputation"
	"github.com/craftlink/craftlink-backend/internal/services"
	"github.com/craftlink/craftlink-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	store := postgres.NewStore(pool)

	gateways, err := gateway.NewRegistry(
		gateway.NewPaystack(cfg.PaystackSecret, cfg.GatewayTimeout),
		gateway.NewFlutterwave(cfg.FlutterwaveSecret, cfg.FlutterwaveVerifHash, cfg.GatewayTimeout),
	)
	if err != nil {
		log.Error("gateway registry", "err", err)
		os.Exit(1)
	}

	wp := worker.NewPool(4)
	defer wp.Stop()

	notifier := notify.LogNotifier{}
	scorer := reputation.LogScorer{}

	tm := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, 24*time.Hour)
	userSvc := services.NewUserService(store, tm)
	escrowSvc := services.NewEscrowService(store, gateways, notifier, wp, cfg.WebhookSignatureBypass)
	settleSvc := services.NewSettlementService(store, escrowSvc, scorer, wp, cfg.SettlementGracePeriod)
	disputeSvc := services.NewDisputeService(store, escrowSvc, notifier, scorer, wp)
	reconSvc := services.NewReconciliationService(store, notifier, cfg.ReconciliationLimit)

	metrics.Init()

	sched := jobs.NewScheduler(settleSvc, reconSvc, cfg.SettlementSweepEvery, cfg.ReconciliationEvery)
	sched.Start(ctx)

	r := api.NewRouter(api.RouterDeps{
		Cfg:        cfg,
		Auth:       middleware.NewAuthMiddleware(tm),
		UserSvc:    userSvc,
		EscrowSvc:  escrowSvc,
		SettleSvc:  settleSvc,
		DisputeSvc: disputeSvc,
		ReconSvc:   reconSvc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sched.Wait()
}
