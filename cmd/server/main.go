// Package main runs the realtime presence server with WebSocket transport,
// admin event ingress and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Schlossparktheater-Altrossthal/realtime/config"
	"github.com/Schlossparktheater-Altrossthal/realtime/internal/analytics"
	"github.com/Schlossparktheater-Altrossthal/realtime/internal/middleware"
	"github.com/Schlossparktheater-Altrossthal/realtime/internal/realtime"
	"github.com/Schlossparktheater-Altrossthal/realtime/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Realtime.HandshakeSecret == "" {
		logger.Warn("no handshake secret configured; all connections will be rejected")
	}

	collector := analytics.NewCollector(logger)
	cache := analytics.NewCache(collector, cfg.Analytics.RefreshInterval, cfg.Analytics.MaxAge, logger)

	hub := realtime.NewHub(logger)
	presence := realtime.NewPresence()
	gateway := &realtime.Gateway{
		Hub:            hub,
		Presence:       presence,
		Analytics:      cache,
		Secret:         cfg.Realtime.HandshakeSecret,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Logger:         logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET(cfg.Realtime.SocketPath, gateway.Handler())
	router.POST(cfg.Realtime.EventPath, realtime.AdminEventsHandler(hub, cfg.Realtime.ServerToken, logger))

	if cfg.Server.HealthEnabled {
		health := func(c *gin.Context) {
			response.OK(c, gin.H{"status": "ok", "online": hub.ConnectionCount()})
		}
		router.GET(cfg.Server.HealthPath, health)
		router.NoRoute(health)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Periodic server-load broadcast. Advisory: canceled during shutdown,
	// never waited on.
	broadcastCtx, broadcastCancel := context.WithCancel(context.Background())
	defer broadcastCancel()
	go cache.Run(broadcastCtx, func(snapshot *analytics.Snapshot) {
		hub.BroadcastAll(realtime.NewAnalyticsEvent(snapshot))
	})

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("ws_path", cfg.Realtime.SocketPath),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	broadcastCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	hub.CloseAll()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
