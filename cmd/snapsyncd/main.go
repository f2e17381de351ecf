package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BrooksPoltl/snapsync/internal/config"
	"github.com/BrooksPoltl/snapsync/internal/engine"
	"github.com/BrooksPoltl/snapsync/internal/realtime"
	"go.uber.org/fx"
)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".snapsync", "config.toml")
}

func main() {
	configFlag := flag.String("config", defaultConfigPath(), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.APIURL == "" || cfg.RealtimeURL == "" || cfg.UserID == "" {
		fmt.Fprintln(os.Stderr, "error: api_url, realtime_url and user_id must be set")
		os.Exit(1)
	}

	client := realtime.NewClient(cfg.APIURL, cfg.AnonKey, cfg.UserID, nil)
	subscriber := realtime.NewSubscriber(cfg.RealtimeURL, cfg.AnonKey, cfg.UserID, nil)

	app := fx.New(
		engine.Module(engine.Params{
			Config:     cfg,
			Client:     client,
			Subscriber: subscriber,
		}),
	)

	app.Run()
}
