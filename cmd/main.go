package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rangedb/internal/http"
	"rangedb/pkg/cluster"
	"rangedb/pkg/metrics"
	"rangedb/pkg/rpc"
	"rangedb/pkg/sharding"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := initConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogger(&cfg)

	slog.Info("rangedb gateway starting",
		"collection", cfg.Routing.Collection,
		"zk", cfg.ZooKeeper.Servers)

	metadata, err := cluster.NewZKMetadata(cfg.ZooKeeper.Servers, cfg.ZooKeeper.RootPath, cfg.ZooKeeper.SessionTimeout)
	if err != nil {
		slog.Error("Failed to connect to ZooKeeper", "error", err)
		os.Exit(1)
	}
	defer metadata.Close()

	provider := cluster.NewProvider(metadata, cfg.Routing.FetchRetries, cfg.Routing.RetryDelay)
	counters := metrics.NewCounters()

	router := &cluster.Router{
		Collection: cfg.Routing.Collection,
		Provider:   provider,
		Hasher:     sharding.CRC32Hasher{},
		Metrics:    counters,
		NewClient: func(target string) (cluster.Remote, error) {
			return rpc.NewHTTPRemote("http://"+target, cfg.Client.RequestTimeout), nil
		},
	}

	// build the initial map before accepting traffic
	if _, err := provider.Get(ctx, cfg.Routing.Collection); err != nil {
		slog.Error("Failed to build initial routing map", "error", err)
		os.Exit(1)
	}

	// follow metadata changes for the lifetime of the process
	watch := metadata.RunWatch(ctx, cfg.Routing.Collection, provider)
	defer watch.Stop()

	server := http.NewServer(router, counters, fmt.Sprintf("%d", cfg.Server.Port), cfg.Server.ReadHeaderTimeout)
	if err := server.Start(); err != nil {
		slog.Error("Failed to start HTTP server", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway is running", "url", server.URL)
	<-ctx.Done()

	if err := server.Stop(); err != nil {
		slog.Error("Error stopping server", "error", err)
	}
	slog.Info("gateway stopped")
}
