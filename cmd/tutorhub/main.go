package main

import (
	"context"

	"tutorhub/internal/api"
	"tutorhub/internal/storage"
	"tutorhub/pkg/app"
	"tutorhub/pkg/config"
	"tutorhub/pkg/metrics"
	"tutorhub/pkg/notify"
	"tutorhub/pkg/validation"
)

const ServiceName = "tutorhub"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Connect()

	cfg.Log.Info("Starting tutorhub service")
	m := metrics.Default()

	stores, err := storage.New(context.Background(), cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize stores", "error", err)
	}

	validate, err := validation.New()
	if err != nil {
		cfg.Log.Fatal("Failed to initialize validator", "error", err)
	}

	dispatcher, err := notify.NewDispatcher(cfg, m, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize notification dispatcher", "error", err, "backend", cfg.NotifyBackend)
	}
	notifier := notify.NewNotifier(dispatcher, cfg.Log, m)

	services := api.NewServices(cfg, stores, validate, notifier, m)

	serverApp := app.NewApplication(cfg, m)
	serverApp.OnShutdown(notifier)
	serverApp.SetApp(services.Handlers(cfg)...)
	serverApp.Run()
}
