package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"medjournal/internal/classifier"
	"medjournal/internal/config"
	"medjournal/internal/journal"
	"medjournal/internal/repository"
	"medjournal/internal/server"
	"medjournal/internal/signer"
	"medjournal/internal/wallet"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, cfg.Database.MigrationsPath, logger)

	// Initialize repositories
	entryRepo := repository.NewEntryRepository(db, logger)

	// Initialize the Gemini classifier
	cls, err := classifier.NewClient(classifier.Config{
		APIKey:    cfg.Gemini.APIKey,
		ModelName: cfg.Gemini.ModelName,
		Timeout:   time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize classifier", zap.Error(err))
	}
	defer cls.Close()

	// Initialize the signing strategy
	sig, err := signer.New(signer.Config{
		Mode:            cfg.Signer.Mode,
		AgentURL:        cfg.Signer.AgentURL,
		ContractAddress: cfg.Signer.ContractAddress,
		ChainID:         cfg.Signer.ChainID,
		ConfirmPoll:     time.Duration(cfg.Signer.ConfirmPollSeconds) * time.Second,
		RequestTimeout:  time.Duration(cfg.Signer.RequestTimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize signer", zap.Error(err))
	}

	// Wallet sessions, one workflow per connected wallet
	persistTimeout := time.Duration(cfg.Workflow.PersistTimeoutSeconds) * time.Second
	wallets := wallet.NewManager(func(account string) *journal.Workflow {
		return journal.NewWorkflow(account, cls, sig, entryRepo, persistTimeout, logger)
	}, cfg.Session.JWTSecret, time.Duration(cfg.Session.TokenTTLHours)*time.Hour, logger)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize and run the server
	srv := server.NewServer(wallets, logger)
	go func() {
		if err := srv.Run(":" + cfg.Server.Port); err != nil {
			logger.Error("Server failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Application stopped.")
}
