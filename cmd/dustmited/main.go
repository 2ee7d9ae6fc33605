package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"DustMite-Agent/internal/api"
	"DustMite-Agent/internal/config"
	"DustMite-Agent/internal/events"
	"DustMite-Agent/internal/knowledge"
	"DustMite-Agent/internal/llm"
	"DustMite-Agent/internal/llm/gemini"
	"DustMite-Agent/internal/llm/openai"
	"DustMite-Agent/internal/market"
	"DustMite-Agent/internal/observability/alerting"
	"DustMite-Agent/internal/observability/metrics"
	"DustMite-Agent/internal/storage/mysql"
	"DustMite-Agent/internal/treasury"
	"DustMite-Agent/internal/wallet/circle"
	"DustMite-Agent/internal/web3/provider"
	"DustMite-Agent/pkg/logger"
)

// main 是 DustMite 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("dustmited 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("DUSTMITE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "dustmite.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dataDir := cfg.Runtime.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// 初始化大模型客户端。
	brain, err := createLLMClient(cfg)
	if err != nil {
		return err
	}

	auditRepo, walletRepo, closeStores, err := createStores(ctx, cfg, dataDir)
	if err != nil {
		return err
	}
	defer closeStores()

	chainRegistry, err := provider.NewRegistry(ctx, cfg.Web3)
	if err != nil {
		return err
	}
	defer chainRegistry.Close()

	web3Client, err := chainRegistry.DefaultClient()
	if err != nil {
		return err
	}

	circleClient, err := circle.NewClient(circle.Config{
		APIKey:                 config.ResolveSecret(cfg.Circle.APIKey, cfg.Circle.APIKeyEnv),
		EntitySecretCiphertext: config.ResolveSecret(cfg.Circle.EntitySecretCiphertext, cfg.Circle.EntitySecretCiphertextEnv),
		BaseURL:                cfg.Circle.BaseURL,
		WalletSetID:            cfg.Circle.WalletSetID,
		Blockchain:             cfg.Circle.Blockchain,
		Timeout:                cfg.Circle.Timeout(),
	})
	if err != nil {
		return err
	}
	walletService := circle.NewService(circleClient, walletRepo)

	marketProvider, err := createMarketProvider(cfg)
	if err != nil {
		return err
	}

	var policies knowledge.Provider
	if cfg.Treasury.PolicySource != "" {
		loaded, err := knowledge.LoadStaticProvider(cfg.Treasury.PolicySource, cfg.Treasury.PolicyMaxResults)
		if err != nil {
			return err
		}
		policies = loaded
	}

	publisher, err := createPublisher(cfg)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer func() { _ = publisher.Close() }()
	}

	notifiers := []alerting.Notifier{&alerting.LogNotifier{}}
	if cfg.Alerting.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: cfg.Alerting.WebhookURL})
	}
	alerts := alerting.NewFanout(notifiers...)

	agent, err := treasury.NewAgent(treasury.Config{
		DustThreshold:      cfg.Treasury.DustThreshold,
		GasCostEstimateUSD: cfg.Treasury.GasCostEstimateUSD,
		TokenAddress:       cfg.Treasury.TokenAddress,
		TokenDecimals:      cfg.Treasury.TokenDecimals,
		YieldTokenAddress:  cfg.Treasury.YieldTokenAddress,
		PolicyTopics:       cfg.Treasury.PolicyTopics,
	}, treasury.Dependencies{
		Provisioner: walletService,
		Transfers:   walletService,
		Chain:       web3Client,
		Market:      marketProvider,
		Brain:       brain,
		Audit:       auditRepo,
		Wallets:     walletRepo,
		Publisher:   publisher,
		Alerts:      alerts,
		Policies:    policies,
	})
	if err != nil {
		return err
	}

	scheduler, err := treasury.NewScheduler(agent, cfg.Treasury.CycleInterval())
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	if cfg.Server.MetricsAddress != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Server.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("指标服务异常退出", "error", err)
			}
		}()
	}

	adminKey := config.ResolveSecret(cfg.Server.AdminAPIKey, cfg.Server.AdminAPIKeyEnv)
	server := api.NewServer(cfg.Server.Address, agent, scheduler, adminKey)

	logger.L().Info("dustmited 已启动",
		"address", cfg.Server.Address,
		"cycle_interval", cfg.Treasury.CycleInterval().String(),
	)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "gemini":
		apiKey := config.ResolveSecret(cfg.LLM.Gemini.APIKey, cfg.LLM.Gemini.APIKeyEnv)
		if apiKey == "" {
			return nil, errors.New("Gemini provider 需要配置 api_key 或 api_key_env")
		}
		return gemini.NewClient(gemini.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.Gemini.BaseURL,
			Model:   cfg.LLM.Gemini.Model,
			Timeout: cfg.LLM.Gemini.Timeout(),
		})
	case "openai":
		apiKey := config.ResolveSecret(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.APIKeyEnv)
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
			Timeout: cfg.LLM.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}

func createStores(ctx context.Context, cfg *config.Config, dataDir string) (mysql.AuditRepository, mysql.WalletRepository, func(), error) {
	switch cfg.Storage.AuditStore.Driver {
	case "", "memory":
		auditRepo, err := mysql.NewMemoryAuditRepository(dataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		walletRepo, err := mysql.NewMemoryWalletRepository(dataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		return auditRepo, walletRepo, func() {}, nil
	case "mysql":
		dbCfg := mysql.Config{
			DSN:             cfg.Storage.AuditStore.DSN,
			MaxOpenConns:    cfg.Storage.AuditStore.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.AuditStore.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Storage.AuditStore.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Storage.AuditStore.ConnMaxIdleTimeSeconds) * time.Second,
		}
		auditRepo, err := mysql.NewSQLAuditRepository(ctx, dbCfg)
		if err != nil {
			return nil, nil, nil, err
		}
		walletRepo, err := mysql.NewSQLWalletRepository(ctx, dbCfg)
		if err != nil {
			_ = auditRepo.Close()
			return nil, nil, nil, err
		}
		closer := func() {
			_ = walletRepo.Close()
			_ = auditRepo.Close()
		}
		return auditRepo, walletRepo, closer, nil
	default:
		return nil, nil, nil, mysql.ErrUnsupportedDriver
	}
}

func createMarketProvider(cfg *config.Config) (market.Provider, error) {
	switch cfg.Market.Mode {
	case "", "mock":
		return market.NewMockProvider(cfg.Market.MockMinAPY, cfg.Market.MockMaxAPY, time.Now().UnixNano())
	case "static":
		return market.NewStaticProvider(cfg.Market.StaticAPY), nil
	default:
		return nil, fmt.Errorf("未知的行情模式: %s", cfg.Market.Mode)
	}
}

func createPublisher(cfg *config.Config) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		return events.NewMemoryPublisher(), nil
	case "redis":
		return events.NewRedisPublisher(events.RedisConfig{
			Address:  cfg.Events.Redis.Address,
			Password: cfg.Events.Redis.Password,
			DB:       cfg.Events.Redis.DB,
			List:     cfg.Events.Redis.List,
		})
	case "rabbitmq":
		return events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:        cfg.Events.RabbitMQ.URL,
			Queue:      cfg.Events.RabbitMQ.Queue,
			Durable:    cfg.Events.RabbitMQ.Durable,
			AutoDelete: cfg.Events.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Events.Driver)
	}
}
