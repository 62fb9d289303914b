package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/milk9111/sandbox/config"
	"github.com/milk9111/sandbox/logger"
	"github.com/milk9111/sandbox/server"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults are used when empty)")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	mirror := flag.String("mirror", "", "directory that mirrors every shared scene to disk")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, *mirror).Run(ctx); err != nil {
		logger.Log.WithError(err).Fatal("share server stopped")
	}
}
