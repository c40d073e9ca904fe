package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"

	"github.com/xping-dev/sdk-go/internal"
	"github.com/xping-dev/sdk-go/pkg/config"
	"github.com/xping-dev/sdk-go/pkg/telemetry"
)

// Prometheus metrics
var (
	replayRounds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_relay_replay_rounds_total",
			Help: "The total number of offline replay rounds executed",
		},
	)
	replayFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xping_relay_replay_failures_total",
			Help: "The total number of replay rounds that ended with an error",
		},
	)
)

func main() {
	InitLogging()

	cfg, err := config.NewFromEnv()
	if err != nil {
		zap.S().Fatalf("Invalid configuration: %s", err)
	}
	if !cfg.EnableOfflineQueue {
		zap.S().Fatal("The relay replays the offline queue; set XPING_ENABLE_OFFLINE_QUEUE=true")
	}

	replayIntervalSec, err := env.GetAsInt("XPING_RELAY_INTERVAL_SECONDS", false, 60)
	if err != nil {
		zap.S().Fatalf("Invalid relay interval: %s", err)
	}

	engine, err := telemetry.New(cfg)
	if err != nil {
		zap.S().Fatalf("Failed to construct telemetry engine: %s", err)
	}

	InitPrometheus()
	InitHealthCheck(engine)

	shutdown := internal.NewGracefulShutdown(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return engine.Shutdown(ctx)
	}, 35*time.Second)

	zap.S().Infof("Relay started, replaying every %ds", replayIntervalSec)

	ticker := time.NewTicker(time.Duration(replayIntervalSec) * time.Second)
	defer ticker.Stop()
	for !shutdown.ShuttingDown() {
		<-ticker.C
		if shutdown.ShuttingDown() {
			break
		}
		replayRounds.Inc()
		replayed, err := engine.ReplayPending(context.Background())
		if err != nil {
			replayFailures.Inc()
			zap.S().Warnf("Replay round failed: %s", err)
			continue
		}
		if replayed > 0 {
			zap.S().Infof("Replayed %d offline batches, %d pending", replayed, engine.QueueLength())
		}
	}

	shutdown.Wait()
}

func InitLogging() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	_ = logger.New(logLevel)
}

func InitPrometheus() {
	metricsPath := "/metrics"
	metricsPort := ":2112"
	zap.S().Debugf("Setting up metrics %s %v", metricsPath, metricsPort)

	http.Handle(metricsPath, promhttp.Handler())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe(metricsPort, nil)
		if err != nil {
			zap.S().Errorf("Error starting metrics: %s", err)
		}
	}()
}

func InitHealthCheck(engine *telemetry.Engine) {
	zap.S().Debugf("Setting up healthcheck")

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(100))
	health.AddReadinessCheck("offline-queue", func() error {
		if !engine.OfflineQueueOpen() {
			return errors.New("offline queue is not open")
		}
		return nil
	})
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe("0.0.0.0:8086", health)
		if err != nil {
			zap.S().Errorf("Error starting healthcheck: %s", err)
		}
	}()
}
