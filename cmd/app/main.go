package main

import (
	"flag"
	"log"
	"os"

	"LevelScan/internal/di"
	"LevelScan/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s sweep_interval=%s workers=%d", cfg.Environment, cfg.Analysis.SweepInterval, cfg.Analysis.Workers)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("clickhouse: connected and schema ready - db: %s", cfg.ClickHouse.Database)
	log.Printf("postgres: connected - db: %s", cfg.Postgres.Database)

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
