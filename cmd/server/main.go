package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"uav-swarm/server"
	"uav-swarm/server/internal/app"
)

func main() {
	var (
		addr      = flag.String("addr", ":8000", "listen address")
		numDrones = flag.Int("num-drones", 0, "initial fleet size (default 5)")
		physicsHz = flag.Int("physics-hz", 0, "physics step rate (default 240)")
		controlHz = flag.Int("control-hz", 0, "control update rate (default 60)")
	)
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	cfg := app.Config{
		Addr: *addr,
		World: server.WorldConfig{
			NumDrones: *numDrones,
			PhysicsHz: *physicsHz,
			ControlHz: *controlHz,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
