package main

import (
	"context"
	"fmt"
	"time"

	mongoMigration "tutorhub/internal/migrations/mongo"
	sqlMigration "tutorhub/internal/migrations/sql"
	"tutorhub/pkg/config"
)

const JobName = "migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.Connect()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job", "store_backend", cfg.StoreBackend)
	if err := migrate(ctx, cfg); err != nil {
		cfg.Log.Error("Migration failed", "error", err)
		cfg.GracefulShutdown()
		cfg.Log.Fatal("Migration job aborted")
	}
	fmt.Println("Migration completed successfully.")
}

func migrate(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		return mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log)
	default:
		return sqlMigration.RunMigration(ctx, cfg.Client.SQL)
	}
}
