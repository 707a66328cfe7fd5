package main

import (
	"context"
	"time"

	mongoMigration "atenda/internal/migrations/mongo"
	"atenda/pkg/config"
)

const JobName = "mongo-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.ConnectMongo()
	cfg.Log.Info("Starting Mongo migration job", "database", cfg.MongoDatabaseName)

	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}

	if err := cfg.Client.Disconnect(ctx); err != nil {
		cfg.Log.Error("Mongo disconnect failed", "error", err)
	}
	cfg.Log.Info("Migration completed successfully")
}
