package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voiceai-platform/internal/agentcontext"
	"voiceai-platform/internal/anomaly"
	"voiceai-platform/internal/auth"
	"voiceai-platform/internal/calls"
	"voiceai-platform/internal/config"
	"voiceai-platform/internal/conversations"
	"voiceai-platform/internal/httpapi"
	"voiceai-platform/internal/profiles"
	"voiceai-platform/internal/reporting"
	"voiceai-platform/internal/telephony"
	"voiceai-platform/pkg/logger"
	"voiceai-platform/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Storage
	callRepo := calls.NewPostgresRepo(db)
	turnRepo := conversations.NewPostgresRepo(db)
	profileRepo := profiles.NewPostgresRepo(db)
	anomalyRepo := anomaly.NewPostgresRepo(db)

	// Services
	anomalies := anomaly.NewService(anomalyRepo)
	ingestor := calls.NewIngestor(callRepo, turnRepo, anomalies)
	assembler := agentcontext.NewAssembler(turnRepo, profileRepo)
	profileSvc := profiles.NewService(profileRepo)
	reportingSvc := reporting.NewService(callRepo, turnRepo)
	vapi := telephony.NewVapiClient(cfg.Vapi)
	caps := telephony.NewCallCaps(rdb, cfg.Calls.MaxConcurrentPerUser, cfg.Calls.ConcurrencyCapTTL)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h := httpapi.Handlers{
		Auth:           authManager,
		Ingestor:       ingestor,
		Assembler:      assembler,
		Profiles:       profileSvc,
		Reporting:      reportingSvc,
		Turns:          turnRepo,
		Initiator:      vapi,
		Caps:           caps,
		DefaultAgentID: cfg.Vapi.AgentID,
	}
	webhook := telephony.StatusCallbackHandler{Ingestor: ingestor, Caps: caps}

	registerRoutes(r, h, webhook,
		telephony.RequireTwilioSignature(cfg.Twilio.AuthToken),
		auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
