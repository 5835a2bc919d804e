// Package config loads the host console configuration from the environment,
// plus optional YAML room defaults (question counts and prize structure).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the environment-driven configuration.
type Config struct {
	// Transport selects the room channel implementation.
	Transport string `envconfig:"TRANSPORT" default:"nats"`
	NATSURL   string `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	WSURL     string `envconfig:"WS_URL" default:"ws://127.0.0.1:8080/ws/room"`

	RoomID   string `envconfig:"ROOM_ID" required:"true"`
	Identity string `envconfig:"HOST_IDENTITY"`

	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8090"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// RoomDefaultsPath points at an optional YAML file with per-round-type
	// question counts and the prize structure.
	RoomDefaultsPath string `envconfig:"ROOM_DEFAULTS"`

	// ReplayThreshold tunes the question replay heuristic.
	ReplayThreshold time.Duration `envconfig:"REPLAY_THRESHOLD" default:"2s"`
}

// Load reads the environment with the QUIZHOST prefix.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("quizhost", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}

// RoomDefaults are the optional file-based room parameters.
type RoomDefaults struct {
	QuestionsPerRound map[string]int `yaml:"questions_per_round"`
	Prizes            struct {
		FirstPlacePct  int `yaml:"first_place_pct"`
		SecondPlacePct int `yaml:"second_place_pct"`
		ThirdPlacePct  int `yaml:"third_place_pct"`
	} `yaml:"prizes"`
}

// LoadRoomDefaults parses the YAML defaults file.
func LoadRoomDefaults(path string) (*RoomDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read room defaults: %w", err)
	}

	var defaults RoomDefaults
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, fmt.Errorf("parse room defaults: %w", err)
	}
	return &defaults, nil
}
