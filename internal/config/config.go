package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pathkey-service/internal/pathkey"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Content struct {
		TTL string `yaml:"ttl"`
	} `yaml:"content"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Pathkey Pathkey `yaml:"pathkey"`
}

// Pathkey tunes the award engine. Zero values fall back to the production defaults.
type Pathkey struct {
	DemoMode           bool    `yaml:"demo_mode"`
	MinPlayers         int     `yaml:"min_players"`
	SectionTwoRequired int     `yaml:"section_two_required"`
	ChunkSize          int     `yaml:"chunk_size"`
	AccuracyThreshold  float64 `yaml:"accuracy_threshold"`
	BaseTokens         *int    `yaml:"base_tokens"`
	PlacementBonuses   []int   `yaml:"placement_bonuses"`
	Parallelism        int     `yaml:"parallelism"`
	Workers            int     `yaml:"workers"`
	QueueSize          int     `yaml:"queue_size"`
	EventTimeout       string  `yaml:"event_timeout"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if _, err := cfg.Pathkey.Rules(); err != nil {
		return cfg, fmt.Errorf("pathkey config: %w", err)
	}
	return cfg, nil
}

// Rules derives the award rules. Demo mode relaxes the career mastery
// player minimum unless min_players is set explicitly.
func (p Pathkey) Rules() (pathkey.Rules, error) {
	rules := pathkey.DefaultRules()
	if p.DemoMode {
		rules.MinPlayersForCareerMastery = pathkey.DemoMinPlayers
	}
	if p.MinPlayers > 0 {
		rules.MinPlayersForCareerMastery = p.MinPlayers
	}
	if p.SectionTwoRequired > 0 {
		rules.SectionTwoRequired = p.SectionTwoRequired
	}
	if p.ChunkSize > 0 {
		rules.ChunkSize = p.ChunkSize
	}
	if p.AccuracyThreshold > 0 {
		rules.AccuracyThreshold = p.AccuracyThreshold
	}
	if p.BaseTokens != nil {
		rules.Rewards.Base = *p.BaseTokens
	}
	if len(p.PlacementBonuses) > 0 {
		rules.Rewards.PlacementBonuses = append([]int(nil), p.PlacementBonuses...)
	}
	if p.Parallelism > 0 {
		rules.Parallelism = p.Parallelism
	}
	if err := rules.Validate(); err != nil {
		return pathkey.Rules{}, err
	}
	return rules, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
