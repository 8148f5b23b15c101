package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"shopdesk.io/app/internal/docstore"
	apphttp "shopdesk.io/app/internal/http"
	"shopdesk.io/app/internal/mailer"
	"shopdesk.io/app/internal/modules/email"
	"shopdesk.io/app/internal/modules/payments"
	"shopdesk.io/app/internal/platform/database"
	"shopdesk.io/app/internal/platform/logging"
	"shopdesk.io/app/internal/platform/metrics"
	"shopdesk.io/app/internal/platform/schema"
	"shopdesk.io/app/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the email outbox worker",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog := logging.New(cfg.Log)
	defer closeLog.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB, log)
	if err != nil {
		return err
	}
	if cfg.DB.AutoMigrate {
		if err := schema.Migrate(ctx, db); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		log.Info("schema migrated")
	}

	provider, err := payments.NewProvider(cfg.Payments)
	if err != nil {
		return err
	}
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	docs, closeDocs, err := docstore.Open(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDocs(context.Background()); err != nil {
			log.Warn("document store close failed", "err", err)
		}
	}()

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	m := metrics.New()
	router := apphttp.NewRouter(apphttp.Deps{
		Config:   cfg,
		DB:       db,
		Log:      log,
		Metrics:  m,
		Provider: provider,
		Storage:  store,
		Docs:     docs,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	worker := email.NewWorker(db, mailer.New(cfg.SMTP, cfg.Email), cfg.Email, m, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Server.Addr,
			"provider", provider.Name(), "storage", fmt.Sprint(store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
