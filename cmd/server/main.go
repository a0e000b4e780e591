package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/tuannm99/novaorm/internal/config"
	"github.com/tuannm99/novaorm/server/novasqlwire"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to a YAML config file")
		addr     = flag.String("addr", "", "listen address (overrides store.addr)")
		database = flag.String("database", "", "database name (overrides store.database)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	sc := novasqlwire.ServerConfig{
		Addr:     cfg.Store.Addr,
		Database: cfg.Store.Database,
		Logger:   logger,
	}
	if *addr != "" {
		sc.Addr = *addr
	}
	if *database != "" {
		sc.Database = *database
	}

	if err := novasqlwire.Run(sc); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
