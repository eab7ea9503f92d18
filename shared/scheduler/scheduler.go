package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"weather-agent/shared/config"
	"weather-agent/shared/monitoring"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
)

// Metrics defines the common interface for agent metrics
type Metrics interface {
	// GetSummary returns a human-readable summary of the run
	GetSummary() string
}

// AgentEvents provides callbacks for monitoring agent execution
type AgentEvents struct {
	OnSuccess         func(metrics Metrics, duration time.Duration)
	OnPartialFailure  func(err error, duration time.Duration)
	OnCriticalFailure func(err error, duration time.Duration)
}

// Agent defines the interface that all agents must implement
type Agent interface {
	Name() string
	RunOnce(ctx context.Context, events *AgentEvents) error
	Initialize(ctx context.Context) error
}

// RouteProvider is implemented by agents that expose an HTTP API
type RouteProvider interface {
	Routes(r chi.Router)
}

type Option func(*Scheduler)

// WithMonitor shares a monitor with other components
func WithMonitor(m *monitoring.Monitor) Option {
	return func(s *Scheduler) { s.monitor = m }
}

// WithMetrics exposes metrics on the health server's /metrics
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler manages the execution of agents on a schedule
type Scheduler struct {
	config  *config.Config
	monitor *monitoring.Monitor
	metrics *monitoring.Metrics
	agent   Agent
	cron    *cron.Cron
	logger  *slog.Logger
}

func New(cfg *config.Config, agent Agent, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler", "agent", agent.Name())

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))

	s := &Scheduler{
		config: cfg,
		agent:  agent,
		logger: logger,
		// Prevent overlapping runs
		cron: cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.monitor == nil {
		s.monitor = monitoring.NewMonitor(logger)
	}
	return s
}

// Monitor returns the monitor fed by scheduled runs
func (s *Scheduler) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Initialize prepares the agent without scheduling anything
func (s *Scheduler) Initialize(ctx context.Context) error {
	if err := s.agent.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}
	return nil
}

// Start initializes the agent, serves health and API routes, and runs the
// agent on the configured schedule until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Initialize(ctx); err != nil {
		return err
	}

	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	server := monitoring.NewServer(s.monitor, s.metrics, s.config.Monitoring.HealthPort, s.logger)
	if rp, ok := s.agent.(RouteProvider); ok {
		server.Route(rp.Routes)
	}
	if err := server.Start(ctx); err != nil {
		return err
	}

	s.logger.Info("scheduler started", "schedule", s.config.Schedule)
	s.cron.Start()

	<-ctx.Done()
	s.logger.Info("scheduler stopping")
	<-s.cron.Stop().Done()
	return ctx.Err()
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	startTime := time.Now()
	agentName := s.agent.Name()

	s.logger.Info("starting run")

	events := &AgentEvents{
		OnSuccess: func(metrics Metrics, duration time.Duration) {
			s.monitor.RecordSuccess(metrics.GetSummary(), duration)
		},
		OnPartialFailure: func(err error, duration time.Duration) {
			s.monitor.RecordPartialFailure(fmt.Errorf("%s partial failure: %w", agentName, err), duration)
		},
		OnCriticalFailure: func(err error, duration time.Duration) {
			s.monitor.RecordCriticalFailure(fmt.Errorf("%s critical failure: %w", agentName, err), duration)
		},
	}

	if err := s.agent.RunOnce(ctx, events); err != nil {
		duration := time.Since(startTime)
		s.monitor.RecordCriticalFailure(fmt.Errorf("%s failed: %w", agentName, err), duration)
		return fmt.Errorf("%s run failed: %w", agentName, err)
	}

	return nil
}
