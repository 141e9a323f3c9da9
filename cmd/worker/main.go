package main

import (
	"github.com/sirupsen/logrus"

	"invest-service/internal/app"
	"invest-service/internal/config"
	"invest-service/internal/worker"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()
	config.ConfigureLogging(cfg)

	a, err := app.New(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer a.Close()

	w := a.Worker()

	scheduler := worker.NewScheduler(w)
	if err := scheduler.Register(cfg.GatewayPollSpec, cfg.MaturitySpec); err != nil {
		logrus.Fatalf("Failed to schedule jobs: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	logrus.Info("Starting Asynq Worker...")
	if err := worker.StartWorker(a.RedisOpt(), w); err != nil {
		logrus.Errorf("Worker stopped: %v", err)
	}
}
