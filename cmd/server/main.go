package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"checkout-engine/internal/config"
	"checkout-engine/internal/database"
	"checkout-engine/internal/gateway"
	"checkout-engine/internal/repo"
	"checkout-engine/internal/server"
	"checkout-engine/internal/service"
	"checkout-engine/internal/subject"
	"checkout-engine/internal/worker"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg := config.Load()

	db := database.NewPostgres()
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	orderRepo := repo.NewOrderRepo(db)
	subjects := subject.NewDirectory(db)
	gtw := gateway.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewaySecret, cfg.GatewayTimeout)
	checkout := service.NewCheckoutService(orderRepo, gtw, subjects, cfg.GatewaySecret, cfg.GatewayTimeout, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := worker.NewReconciliationWorker(orderRepo, gtw, checkout, cfg.SweepInterval, cfg.SweepCutoff, log)
	go sweeper.Run(ctx)

	handler := server.NewHandler(checkout, database.NewService(db), log)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.API(handler, cfg.AllowedOrigins),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("checkout engine listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}
