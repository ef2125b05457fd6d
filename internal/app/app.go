// Package app wires the process together: logging, the physics engine,
// the world, the control loop, the hub, and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"uav-swarm/server"
	"uav-swarm/server/internal/control"
	apinet "uav-swarm/server/internal/net"
	"uav-swarm/server/internal/physics"
	"uav-swarm/server/internal/sim"
	"uav-swarm/server/internal/swarm"
	"uav-swarm/server/internal/telemetry"
	"uav-swarm/server/logging"
	"uav-swarm/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

// Config is the process configuration. Flags set it; environment
// variables override it.
type Config struct {
	Addr  string
	World server.WorldConfig
}

// withEnvOverrides applies SWARM_ADDR and SWARM_NUM_DRONES on top of the
// flag values.
func (c Config) withEnvOverrides() Config {
	if addr := os.Getenv("SWARM_ADDR"); addr != "" {
		c.Addr = addr
	}
	if raw := os.Getenv("SWARM_NUM_DRONES"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.World.NumDrones = n
		}
	}
	return c
}

// Run brings the server up and blocks until the context is cancelled or
// a fatal component error occurs.
func Run(ctx context.Context, cfg Config, log *logrus.Logger) error {
	cfg = cfg.withEnvOverrides()
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	worldCfg := cfg.World.Normalized()

	router, err := logging.NewRouter(logging.SystemClock{}, logging.DefaultConfig(), []logging.NamedSink{
		{Name: "console", Sink: sinks.NewConsoleSink(os.Stdout, logging.ConsoleConfig{})},
	})
	if err != nil {
		return fmt.Errorf("app: build logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := router.Close(closeCtx); err != nil {
			log.WithError(err).Warn("logging router close failed")
		}
	}()

	metrics := logging.NewMetrics()
	opLogger := telemetry.WrapPrintf(log)
	publisher := logging.WithFields(router, map[string]any{"service": "uav-swarm-server"})

	engine := physics.NewKinematic(worldCfg.NumDrones, worldCfg.PhysicsHz, control.DefaultMaxVelocity)
	world, err := swarm.NewWorld(worldCfg.SwarmConfig(), engine, publisher, telemetry.WrapMetrics(metrics))
	if err != nil {
		return fmt.Errorf("app: build world: %w", err)
	}

	loop := sim.NewLoop(worldCfg.LoopConfig(), world, publisher, telemetry.WrapMetrics(metrics), opLogger)
	hub := server.NewHub(worldCfg, loop, world, router, metrics, opLogger)
	loop.SetAfterStep(func(_ *swarm.Snapshot, elapsed time.Duration) {
		hub.RecordTickDuration(elapsed)
	})

	mux := http.NewServeMux()
	apinet.NewHandler(hub, opLogger).Register(mux)
	httpServer := &http.Server{Addr: cfg.Addr, Handler: mux}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- loop.Run(runCtx)
	}()
	go hub.RunBroadcast(runCtx)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.ListenAndServe()
	}()

	log.WithFields(logrus.Fields{
		"addr":      cfg.Addr,
		"numDrones": worldCfg.NumDrones,
		"physicsHz": worldCfg.PhysicsHz,
		"controlHz": worldCfg.ControlHz,
	}).Info("swarm server listening")

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-loopErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("control loop failed")
			runErr = err
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
			runErr = err
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown failed")
	}
	if err := world.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("world close failed")
	}
	return runErr
}
