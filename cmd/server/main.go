package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pomodoro/focus/internal/clock"
	"pomodoro/focus/internal/config"
	"pomodoro/focus/internal/db"
	"pomodoro/focus/internal/handler"
	"pomodoro/focus/internal/repository"
	"pomodoro/focus/internal/router"
	"pomodoro/focus/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(context.Background(), database, db.Migrations()); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	clk := clock.System()
	settingsRepo := repository.NewSettingsRepository(database)
	pomodoroRepo := repository.NewPomodoroRepository(database)

	tokenService := service.NewTokenService(cfg.JWTSecret, cfg.TokenTTL(), clk)
	settingsService := service.NewSettingsService(settingsRepo, clk)
	ledgerService := service.NewLedgerService(pomodoroRepo, clk, cfg.Location())

	engine := router.New(
		tokenService,
		handler.NewSettingsHandler(settingsService),
		handler.NewPomodoroHandler(ledgerService),
		handler.NewTokenHandler(tokenService),
		cfg.CORSOrigins,
		router.RateLimit{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
	)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("ledger listening on :%s", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("run server: %v", err)
	}
	log.Printf("ledger stopped")
}
