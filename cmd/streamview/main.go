package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vantagedesk/streamview/internal/api"
	"github.com/vantagedesk/streamview/internal/config"
	"github.com/vantagedesk/streamview/internal/controller"
	"github.com/vantagedesk/streamview/internal/history"
	"github.com/vantagedesk/streamview/internal/media"
	"github.com/vantagedesk/streamview/internal/rtc"
	"github.com/vantagedesk/streamview/internal/signaling"
	"github.com/vantagedesk/streamview/internal/sink"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("streamview starting",
		zap.String("signal", cfg.SignalURL),
		zap.String("api", cfg.APIAddr),
		zap.Bool("forceTurn", cfg.ForceTURN),
	)

	webcam, err := media.NewWebcam(cfg, logger)
	if err != nil {
		logger.Fatal("failed to set up capture pipeline", zap.Error(err))
	}

	engine := rtc.NewPionEngine(logger, webcam.CodecSelector())
	transport := signaling.NewWSTransport(cfg.SignalURL, logger)
	target := sink.NewFileTarget(cfg.PreviewPath, logger)

	ctrl := controller.New(cfg, logger, engine, transport, webcam, target)

	events := history.NewRing(cfg.EventHistorySize)
	ctrl.SetListener(history.NewRecorder(events))

	srv := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      api.NewServer(logger, ctrl, events).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	go func() {
		logger.Info("local API listening", zap.String("addr", cfg.APIAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("local API failed", zap.Error(err))
		}
	}()

	if err := ctrl.Connect(context.Background()); err != nil {
		logger.Fatal("initial connect failed", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := ctrl.Close(); err != nil {
		logger.Warn("teardown incomplete", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
