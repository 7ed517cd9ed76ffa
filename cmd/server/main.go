// Package main is the entry point for the shisan portfolio valuation
// service. It resolves market prices from external sources, aggregates
// holdings into a consistent valuation snapshot, and serves the result
// over HTTP for the dashboard and the periodic refresh trigger.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"shisan/internal/clientdata"
	"shisan/internal/clients/exchangerate"
	"shisan/internal/clients/frankfurter"
	"shisan/internal/clients/minkabu"
	"shisan/internal/clients/yahoo"
	"shisan/internal/config"
	"shisan/internal/database"
	"shisan/internal/degradation"
	"shisan/internal/domain"
	"shisan/internal/fetcher"
	"shisan/internal/rates"
	"shisan/internal/reliability"
	"shisan/internal/scheduler"
	"shisan/internal/server"
	"shisan/internal/snapshot"
	"shisan/internal/store"
	"shisan/internal/symbols"
	"shisan/internal/valuation"
	"shisan/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting shisan")

	// Portfolio database: holdings, quote snapshots, ledger.
	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	// Client data database: ephemeral cache for external API responses.
	clientDataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "client_data.db"),
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open client data database")
	}
	defer clientDataDB.Close()

	st := store.New(portfolioDB.Conn(), log)
	if err := st.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure portfolio schema")
	}

	cacheRepo := clientdata.NewRepository(clientDataDB.Conn())
	if err := cacheRepo.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure client data schema")
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	// Fund code mappings are static configuration: seed from file once,
	// then read from the store.
	if cfg.FundMappingPath != "" {
		mappings, err := loadFundMappings(cfg.FundMappingPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.FundMappingPath).Msg("Failed to load fund mapping file")
		}
		if err := st.SeedFundCodeMappings(startupCtx, mappings); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed fund code mappings")
		}
	}

	fundCodes, err := st.ReadFundCodeMappings(startupCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read fund code mappings")
	}

	// Pipeline wiring, leaves first.
	resolver := symbols.NewResolver(fundCodes, log)
	quoteFetcher := fetcher.New(resolver, yahoo.NewClient(log), minkabu.NewClient(cacheRepo, log), log)
	controller := degradation.NewController(quoteFetcher, st, log)
	rateResolver := rates.NewResolver(
		[]domain.RateProvider{
			exchangerate.NewClient(cacheRepo, log),
			frankfurter.NewClient(log),
		},
		cfg.DefaultUSDJPYRate,
		log,
	)
	engine := valuation.NewEngine(domain.Currency(cfg.BaseCurrency), log)
	service := snapshot.NewService(st, st, controller, rateResolver, engine, st, cfg.DefaultUSDJPYRate, log)

	sched := scheduler.New(log)
	refreshJob := scheduler.NewRefreshJob(service)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}
	if err := sched.AddJob("@daily", clientdata.NewCleanupJob(cacheRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}

	if cfg.Backup.Enabled {
		backupSvc, err := reliability.NewBackupService(startupCtx, cfg.Backup, cfg.DataDir, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup service")
		}
		if err := sched.AddJob(cfg.Backup.Schedule, scheduler.NewBackupJob(backupSvc)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}

	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:     log,
		Service: service,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Build an initial snapshot so the first dashboard request is warm.
	go func() {
		if err := sched.RunNow(refreshJob); err != nil {
			log.Warn().Err(err).Msg("Initial snapshot refresh failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}

// loadFundMappings reads a JSON object of holding symbol to fund code
func loadFundMappings(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mappings map[string]string
	if err := json.Unmarshal(data, &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}
