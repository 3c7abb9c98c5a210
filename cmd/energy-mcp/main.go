// Command energy-mcp serves the analytics core as MCP tools over stdio.
//
// All logging goes to stderr. Any bytes written to stdout that are not
// JSON-RPC 2.0 response frames corrupt the protocol.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/scrypster/energy-services/internal/api/mcp"
	"github.com/scrypster/energy-services/internal/chat"
	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/internal/llm"
)

func main() {
	// Keep incidental log output off stdout.
	log.SetOutput(os.Stderr)
	log.SetPrefix("energy-mcp: ")
	log.SetFlags(log.LstdFlags)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	srv, err := newServer(cfg)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	transport := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout)
	if err := transport.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("transport error: %v", err)
	}
}

// newServer wires the dataset cache and optional assistant into an MCP
// server. An assistant that cannot be configured only disables its tool.
func newServer(cfg *config.Config) (*mcp.Server, error) {
	catalog, err := config.LoadCatalog(cfg.Data.CatalogPath)
	if err != nil {
		return nil, err
	}
	source, err := datasets.NewSource(cfg.Data)
	if err != nil {
		return nil, err
	}
	cache := datasets.NewCache(datasets.NewLoader(source, nil), cfg.Data.CacheTTL, nil)

	opts := []mcp.ServerOption{mcp.WithCatalog(catalog)}
	if cfg.Features.EnableChat {
		completer, err := llm.NewChatCompleter(cfg.Assistant, nil)
		if err != nil {
			log.Printf("WARNING: assistant disabled: %v", err)
		} else {
			opts = append(opts, mcp.WithChatter(chat.NewService(cache, completer, catalog, cfg.Assistant, nil)))
		}
	}
	return mcp.NewServer(cache, opts...), nil
}
