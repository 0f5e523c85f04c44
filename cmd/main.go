package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"quest-launchpad/internal/attestation"
	"quest-launchpad/internal/blockchain"
	"quest-launchpad/internal/config"
	"quest-launchpad/internal/handler"
	"quest-launchpad/internal/metrics"
	"quest-launchpad/internal/middleware"
	"quest-launchpad/internal/models"
	"quest-launchpad/internal/pinning"
	"quest-launchpad/internal/repository"
	"quest-launchpad/internal/scheduler"
	"quest-launchpad/internal/service"
	"quest-launchpad/pkg/logger"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer closeDatabase(db)

	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatal("Failed to migrate database:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	questRepo := repository.NewQuestRepository(db)
	claimRepo := repository.NewClaimRepository(db)
	playerRepo := repository.NewPlayerRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	blockRepo := repository.NewBlockRepository(db)

	chainID := new(big.Int).SetUint64(cfg.Chain.ChainID)
	keyring, err := blockchain.NewKeyring(chainID, cfg.Chain.WalletKeys)
	if err != nil {
		logger.Fatal("Failed to load wallet keys:", err)
	}

	// 客户端创建失败时 claimChain / questChain 保持为 nil
	var (
		client     *blockchain.Client
		claimChain service.ClaimChain
		questChain service.QuestChain
	)
	if cfg.Chain.RPCURL != "" {
		client, err = blockchain.NewClient(&cfg.Chain)
		if err != nil {
			logger.Error("Failed to create blockchain client:", err)
		} else {
			defer client.Close()
			claimChain = client
			questChain = client
		}
	}

	verifier := attestation.NewVerifier(questSigner(cfg.Claim))
	sessions := service.NewSessionStore(cfg.Claim.SessionCacheSize, cfg.Claim.SessionTTLDuration())

	claimSvc := service.NewClaimService(service.ClaimDeps{
		Quests:   questRepo,
		Claims:   claimRepo,
		Players:  playerRepo,
		Chain:    claimChain,
		Signers:  keyring,
		Sessions: sessions,
		Verifier: verifier,
	}, &cfg.Claim, cfg.Chain.ChainID)
	questSvc := service.NewQuestService(questRepo, tokenRepo, questChain, keyring, &cfg.Claim, &cfg.Chain)
	profileSvc := service.NewProfileService(claimRepo, playerRepo)

	if cfg.Chain.IndexerEnabled && client != nil {
		listener := blockchain.NewEventListener(&cfg.Chain, client, blockRepo, claimSvc)
		go func() {
			if err := listener.Run(ctx); err != nil {
				logger.Error("Failed to start claim indexer:", err)
			}
		}()
	}

	if cfg.Scheduler.Enabled {
		counterScheduler := scheduler.NewCounterScheduler(questRepo, profileSvc, cfg.Scheduler.CounterCron)
		if err := counterScheduler.Start(); err != nil {
			logger.Fatal("Failed to start scheduler:", err)
		}
		defer counterScheduler.Stop()
	}

	pinner, err := pinning.New(ctx, cfg.Pinning)
	if err != nil {
		logger.Fatal("Failed to init pinning:", err)
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metrics.Register(prometheus.DefaultRegisterer)
		metricsHandler = promhttp.Handler()
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	go limiter.Cleanup(ctx, time.Minute, 3*time.Minute)

	router := handler.NewRouter(handler.Handlers{
		Quests:  handler.NewQuestHandler(questSvc),
		Claims:  handler.NewClaimHandler(claimSvc),
		Players: handler.NewPlayerHandler(profileSvc),
		Uploads: handler.NewUploadHandler(pinner),
	}, middleware.NewWalletAuth(time.Duration(cfg.Claim.AuthMaxSkew)*time.Second), limiter, cfg.Metrics.Path, metricsHandler)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{
			"Content-Type",
			middleware.HeaderWallet,
			middleware.HeaderIssuedAt,
			middleware.HeaderSignature,
		}),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(cors(router)),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.WithFields(map[string]interface{}{
			"port":     cfg.Server.Port,
			"chain":    cfg.Chain.Name,
			"wallets":  len(keyring.Addresses()),
			"indexer":  cfg.Chain.IndexerEnabled && client != nil,
			"uploads":  pinner != nil,
			"verifier": verifier.Signer.Hex(),
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	default:
		dialector = mysql.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}

// questSigner 可信签名者地址；只配置了私钥时由私钥推导
func questSigner(cfg config.ClaimConfig) common.Address {
	if common.IsHexAddress(cfg.QuestSignerAddress) {
		return common.HexToAddress(cfg.QuestSignerAddress)
	}
	if cfg.QuestSignerKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.QuestSignerKey, "0x"))
		if err == nil {
			return crypto.PubkeyToAddress(key.PublicKey)
		}
		logger.Warn("Invalid quest signer key:", err)
	}
	logger.Warn("No quest signer configured, social attestations will be rejected")
	return common.Address{}
}
