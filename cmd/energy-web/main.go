package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/scrypster/energy-services/internal/chat"
	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/internal/llm"
	"github.com/scrypster/energy-services/internal/metrics"
	"github.com/scrypster/energy-services/internal/notify"
	"github.com/scrypster/energy-services/internal/server"
	"github.com/scrypster/energy-services/web/handlers"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	deps, err := buildDeps(cfg, metrics.New())
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, hub, err := server.Start(ctx, cfg, deps)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Energy services API running at http://%s", addr)

	if watcher := watchDatasets(cfg.Data, deps.Cache, hub); watcher != nil {
		defer watcher.Stop()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// buildDeps wires the dataset cache and, when enabled, the assistant.
func buildDeps(cfg *config.Config, m *metrics.Metrics) (server.Deps, error) {
	catalog, err := config.LoadCatalog(cfg.Data.CatalogPath)
	if err != nil {
		return server.Deps{}, err
	}

	source, err := datasets.NewSource(cfg.Data)
	if err != nil {
		return server.Deps{}, err
	}
	cache := datasets.NewCache(datasets.NewLoader(source, m), cfg.Data.CacheTTL, m)

	deps := server.Deps{
		Provider: cache,
		Cache:    cache,
		Catalog:  catalog,
		Metrics:  m,
	}

	if cfg.Features.EnableChat {
		completer, err := llm.NewChatCompleter(cfg.Assistant, m)
		if err != nil {
			return server.Deps{}, fmt.Errorf("assistant: %w", err)
		}
		deps.Chatter = chat.NewService(cache, completer, catalog, cfg.Assistant, m)
		log.Printf("Assistant enabled (provider: %s, model: %s)", providerName(cfg.Assistant.Provider), completer.GetModel())
	}
	return deps, nil
}

// watchDatasets starts a directory watcher that refreshes the cache when a
// dataset file is republished. It returns nil when watching does not apply
// or could not start.
func watchDatasets(cfg config.DataConfig, cache handlers.Invalidator, hub *handlers.ChatHub) *notify.DatasetWatcher {
	if !cfg.Watch || cfg.Source != "dir" || cache == nil {
		return nil
	}

	var notifier handlers.Notifier
	if hub != nil {
		notifier = hub
	}
	refresher := handlers.NewRefreshHandler(cache, notifier)

	watcher := notify.NewDatasetWatcher(cfg.DataPath, func(files []string) {
		log.Printf("Datasets changed on disk: %s", strings.Join(files, ", "))
		refresher.Refresh()
	}, notify.Options{Match: datasets.IsDatasetFile})
	if err := watcher.Start(); err != nil {
		log.Printf("WARNING: Dataset watcher disabled: %v", err)
		return nil
	}
	return watcher
}

func providerName(p string) string {
	if p == "" {
		return "proxy"
	}
	return p
}
