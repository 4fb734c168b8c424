package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/NovaByte/NovaVoice/cmd/bootstrap"
	"github.com/NovaByte/NovaVoice/pkg/agent"
	"github.com/NovaByte/NovaVoice/pkg/config"
	"github.com/NovaByte/NovaVoice/pkg/dispatch"
	"github.com/NovaByte/NovaVoice/pkg/llm"
	"github.com/NovaByte/NovaVoice/pkg/logger"
	"github.com/NovaByte/NovaVoice/pkg/store"
	"github.com/NovaByte/NovaVoice/pkg/webhook"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

func main() {
	// 1. Parse Command Line Parameters
	mode := flag.String("mode", "", "running environment (development, test, production)")
	init := flag.Bool("init", false, "initialize database with migrations and demo orders")
	room := flag.String("room", "", "realtime room to join as the sales agent (optional)")
	flag.Parse()

	// 2. Set Environment Variables
	if *mode != "" {
		os.Setenv("APP_ENV", *mode)
	}

	// 3. Load Global Configuration
	if err := config.Load(); err != nil {
		panic("config load failed: " + err.Error())
	}
	cfg := config.GlobalConfig

	// 4. Load Log Configuration
	if err := logger.Init(&cfg.Log, cfg.Server.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()

	// 5. Print Banner
	bootstrap.PrintBanner(cfg.Server.Name)

	// 6. Load Data Source
	db, err := bootstrap.SetupDatabase(&bootstrap.Options{
		AutoMigrate: *init,
		Seed:        *init,
	})
	if err != nil {
		logger.Error("database setup failed", zap.Error(err))
		return
	}

	logger.Info("checked config -- addr: ", zap.String("addr", cfg.Server.Addr))
	logger.Info("checked config -- db-driver: ", zap.String("db-driver", cfg.Database.Driver))
	logger.Info("checked config -- mode: ", zap.String("mode", cfg.Server.Mode))

	// 7. Build Stores and Gateways
	orders := store.NewOrderProvider(db)
	calls := store.NewCallStore(db)
	links := dispatch.NewLinkGateway(cfg.Server.WebhookBase, cfg.Agent.DispatchTimeout)
	registrar := dispatch.NewDashboardRegistrar(cfg.Services.Dashboard.RegisterURL, cfg.Services.Dashboard.Timeout)

	adapterLog := logrus.New()

	// 8. Webhook Server
	telegram := webhook.NewTelegramMessenger(webhook.TelegramConfig{
		APIID:         cfg.Services.Telegram.APIID,
		APIHash:       cfg.Services.Telegram.APIHash,
		SessionString: cfg.Services.Telegram.SessionString,
		BridgeURL:     cfg.Services.Telegram.BridgeURL,
	}, adapterLog)
	viber := webhook.NewViberMessenger(adapterLog)
	webhookServer := webhook.NewServer(telegram, viber, calls, ginMode(cfg.Server.Mode), adapterLog)

	go func() {
		if err := webhookServer.Run(cfg.Server.Addr); err != nil {
			logger.Error("webhook server stopped", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 9. Call Worker
	worker := agent.NewWorker(orders, calls, links, registrar,
		agent.RoomConfig{
			URL:           cfg.Services.Room.URL,
			APIKey:        cfg.Services.Room.APIKey,
			APISecret:     cfg.Services.Room.APISecret,
			AgentIdentity: cfg.Services.Room.AgentIdentity,
		},
		llm.Config{
			APIKey:      cfg.Services.LLM.APIKey,
			Endpoint:    cfg.Services.LLM.BaseURL,
			Model:       cfg.Services.LLM.Model,
			Temperature: cfg.Services.LLM.Temperature,
			MaxTokens:   cfg.Services.LLM.MaxTokens,
		},
		agent.Options{
			OperatorPrefix: cfg.Services.Room.OperatorPrefix,
			Rebroadcast:    cfg.Agent.HandoffRebroadcast,
			EffectTimeout:  cfg.Agent.DispatchTimeout,
		},
		adapterLog)

	if *room != "" {
		if err := worker.Validate(); err != nil {
			logger.Error("cannot join room", zap.Error(err))
			return
		}
		go func() {
			if err := worker.HandleRoom(ctx, *room); err != nil {
				logger.Error("call failed", zap.String("room", *room), zap.Error(err))
			}
		}()
	}

	// 10. Wait for Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
	cancel()
}

func ginMode(mode string) string {
	switch mode {
	case "production":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
