package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"condo-access-control/internal/adapters/auth/idp"
	"condo-access-control/internal/adapters/billing/ledger"
	"condo-access-control/internal/adapters/directory/users"
	"condo-access-control/internal/adapters/export/csvreport"
	"condo-access-control/internal/adapters/push/fcm"
	"condo-access-control/internal/adapters/storage/postgres"
	"condo-access-control/internal/config"
	"condo-access-control/internal/domain/grants"
	"condo-access-control/internal/platform/logger"
	"condo-access-control/internal/ports/auth"
	"condo-access-control/internal/ports/billing"
	"condo-access-control/internal/ports/directory"
	"condo-access-control/internal/ports/push"
	"condo-access-control/internal/router"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo grants.Repository
	if cfg.DBDSN != "" {
		pool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		defer pool.Close()

		migrator, err := postgres.NewMigrator(pool, cfg.MigrationsDir)
		if err != nil {
			log.Fatal("init migrator", zap.Error(err))
		}
		if err := migrator.Run(ctx); err != nil {
			log.Fatal("run migrations", zap.Error(err))
		}
		_ = migrator.Close()

		repo = postgres.NewGrantsRepo(pool, log)
		log.Info("storage ready", zap.String("backend", "postgres"))
	} else {
		log.Info("storage ready", zap.String("backend", "memory"))
	}

	var verifier auth.AuthVerifier
	if cfg.AuthURL != "" {
		client, err := idp.NewClient(idp.Config{
			BaseURL: cfg.AuthURL,
			APIKey:  cfg.AuthAPIKey,
		})
		if err != nil {
			log.Fatal("init idp client", zap.Error(err))
		}
		verifier = idp.NewVerifier(client)
	}

	var dir directory.Resolver
	if cfg.DirectoryURL != "" {
		client, err := users.NewClient(users.Config{
			BaseURL: cfg.DirectoryURL,
			APIKey:  cfg.DirectoryAPIKey,
		})
		if err != nil {
			log.Fatal("init directory client", zap.Error(err))
		}
		dir = client
	}

	var sender push.Sender
	if cfg.FCMServerKey != "" {
		sender = fcm.NewSender(fcm.Config{
			URL:       cfg.FCMURL,
			ServerKey: cfg.FCMServerKey,
		})
	}

	var gate billing.Gate
	if cfg.BillingURL != "" {
		client, err := ledger.NewClient(ledger.Config{
			BaseURL:       cfg.BillingURL,
			MaxMonthsOwed: cfg.BillingMaxMonthsOwed,
		})
		if err != nil {
			log.Fatal("init billing client", zap.Error(err))
		}
		gate = client
	}

	res := router.NewRouter(router.Options{
		AuthVerifier: verifier, // nil => modo dev: claims por headers de debug
		Repo:         repo,
		Directory:    dir,
		Push:         sender,
		Billing:      gate,
		Exporter:     csvreport.NewExporter(cfg.ReportDir),
		Logger:       log,
		QRRenderBase: cfg.QRRenderURL,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     res.Handler,
		ReadTimeout: 5 * time.Second,
		// Sin WriteTimeout: /gate/watch y /me/radar son streams SSE de
		// larga vida y un timeout global los cortaría.
		WriteTimeout: 0,
	}

	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}

	// Deja terminar los pushes en vuelo antes de salir.
	if res.Dispatcher != nil {
		res.Dispatcher.Wait()
	}
}
