package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
environment: test
postgres:
  host: localhost
clickhouse:
  host: localhost
`

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Analysis.Workers != 12 {
		t.Fatalf("workers = %d, want 12", c.Analysis.Workers)
	}
	if c.Analysis.MinScore != 30 {
		t.Fatalf("min score = %d, want 30", c.Analysis.MinScore)
	}
	if c.Analysis.AlertThresholdPct != 1.0 {
		t.Fatalf("alert threshold = %v, want 1.0", c.Analysis.AlertThresholdPct)
	}
	if c.Analysis.SweepInterval != 15*time.Minute {
		t.Fatalf("sweep interval = %v, want 15m", c.Analysis.SweepInterval)
	}
	if len(c.Analysis.Levels) != 4 {
		t.Fatalf("level rules for %d timeframes, want 4", len(c.Analysis.Levels))
	}
	if c.Analysis.Scoring.TrendAlignment != 20 || c.Analysis.Scoring.StrongAt != 40 {
		t.Fatalf("scoring defaults missing: %+v", c.Analysis.Scoring)
	}
	if c.Binance.RestURL == "" || c.Kafka.Consumer.GroupID != "levelscan" {
		t.Fatal("nested defaults missing")
	}
	if len(c.Analysis.Stablecoins) == 0 {
		t.Fatal("stablecoin denylist missing")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	body := minimalConfig + `
analysis:
  workers: 4
  min_score: 55
  levels:
    1h:
      pivot_period: 2
      min_strength: 2
      max_pivot_points: 10
      max_channel_width_percent: 3
`
	c, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Analysis.Workers != 4 || c.Analysis.MinScore != 55 {
		t.Fatalf("overrides not applied: %+v", c.Analysis)
	}
	if len(c.Analysis.Levels) != 1 {
		t.Fatalf("explicit rules must replace the default table, got %d entries", len(c.Analysis.Levels))
	}
	if c.Analysis.Levels["1h"].PivotPeriod != 2 {
		t.Fatalf("1h rules: %+v", c.Analysis.Levels["1h"])
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing environment", "postgres: {host: x}\nclickhouse: {host: x}\n"},
		{"missing postgres host", "environment: test\nclickhouse: {host: x}\n"},
		{"missing clickhouse host", "environment: test\npostgres: {host: x}\n"},
		{"too many workers", minimalConfig + "analysis:\n  workers: 100\n"},
		{"bad pivot period", minimalConfig + `
analysis:
  levels:
    1h:
      pivot_period: 0
      min_strength: 1
      max_pivot_points: 1
      max_channel_width_percent: 1
`},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.body)); err == nil {
			t.Fatalf("%s: want an error", tc.name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("want an error for a missing file")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("PG_HOST", "pg.internal")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := LoadWithEnv(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if c.Postgres.Host != "pg.internal" {
		t.Fatalf("pg host = %s", c.Postgres.Host)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
}

func TestDefaultStablecoinsAreFullPairs(t *testing.T) {
	for _, s := range DefaultStablecoins() {
		if len(s) <= len("USDT") {
			t.Fatalf("%q is not a full pair symbol", s)
		}
	}
}
