package main

import (
	"github.com/sirupsen/logrus"

	"invest-service/internal/config"
	"invest-service/internal/database"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()
	config.ConfigureLogging(cfg)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	logrus.Info("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		logrus.Fatalf("Migration failed: %v", err)
	}
	logrus.Info("Migrations completed successfully!")
}
