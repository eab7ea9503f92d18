package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	weatheralerts "weather-agent/agents/weather-alerts"
	"weather-agent/shared/config"
	"weather-agent/shared/logging"
	"weather-agent/shared/monitoring"
	"weather-agent/shared/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, closeLogs, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLogs()

	// Create context that responds to signals
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics := monitoring.NewMetrics("weather_alerts")
	agent := weatheralerts.NewWeatherAlertAgent(cfg, logger, metrics)
	defer func() {
		if err := agent.Close(); err != nil {
			logger.Warn("failed to close agent", "error", err)
		}
	}()
	s := scheduler.New(cfg, agent, logger, scheduler.WithMetrics(metrics))

	if len(os.Args) > 1 && os.Args[1] == "--once" {
		fmt.Println("Running once...")
		if err := s.Initialize(ctx); err != nil {
			logger.Error("initialization failed", "error", err)
			os.Exit(1)
		}
		if err := s.RunOnce(ctx); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("Starting scheduler...")

	if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler failed", "error", err)
		os.Exit(1)
	}
}
