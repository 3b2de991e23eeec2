package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultGridWidth      = 128
	DefaultGridHeight     = 128
	DefaultCellSize       = 0.01
	DefaultDt             = 0.001
	DefaultDecayDecades   = 3.0
	DefaultAddr           = ":8080"
	DefaultFPS            = 60
	DefaultSessionTimeout = 30.0
)

type Config struct {
	Solver SolverConfig `yaml:"solver"`
	Server ServerConfig `yaml:"server"`
}

type SolverConfig struct {
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	CellSize     float32 `yaml:"cell_size"`
	Dt           float32 `yaml:"dt"`
	Boundary     string  `yaml:"boundary"`
	DecayDecades float32 `yaml:"decay_decades"`
	Backend      string  `yaml:"backend"`
	QueueDepth   int     `yaml:"queue_depth"`
}

type ServerConfig struct {
	Addr              string  `yaml:"addr"`
	FPS               int     `yaml:"fps"`
	SessionTimeoutMin float64 `yaml:"session_timeout_min"`
	Compression       string  `yaml:"compression"`
	MaxSessions       int     `yaml:"max_sessions"`
}

// SourceConfig places a field source at a normalized position when a
// scenario starts.
type SourceConfig struct {
	X          float32 `yaml:"x"`
	Y          float32 `yaml:"y"`
	Value      float32 `yaml:"value"`
	HalfExtent float32 `yaml:"half_extent"`
	Additive   bool    `yaml:"additive"`
}

// MaterialConfig fills a normalized rectangle with material properties
// when a scenario starts.
type MaterialConfig struct {
	U0      float32 `yaml:"u0"`
	V0      float32 `yaml:"v0"`
	U1      float32 `yaml:"u1"`
	V1      float32 `yaml:"v1"`
	Mu      float32 `yaml:"mu"`
	Epsilon float32 `yaml:"epsilon"`
	Sigma   float32 `yaml:"sigma"`
}

func DefaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			Width:        DefaultGridWidth,
			Height:       DefaultGridHeight,
			CellSize:     DefaultCellSize,
			Dt:           DefaultDt,
			Boundary:     "reflect",
			DecayDecades: DefaultDecayDecades,
			Backend:      "auto",
		},
		Server: ServerConfig{
			Addr:              DefaultAddr,
			FPS:               DefaultFPS,
			SessionTimeoutMin: DefaultSessionTimeout,
			Compression:       "zstd",
			MaxSessions:       16,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
