package application

import (
	"time"

	"github.com/RoboStack/xtensor-ros/internal/network/codec"
	zlog "github.com/RoboStack/xtensor-ros/pkg/log"
)

// Config is the typed view of config.yaml.
type Config struct {
	Log       zlog.Config     `mapstructure:"log"`
	Codec     codec.Settings  `mapstructure:"codec"`
	Transport TransportConfig `mapstructure:"transport"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type TransportConfig struct {
	Listen        string        `mapstructure:"listen"`
	// WebSocketPath 非空时发布者改用 WebSocket 接入。
	WebSocketPath string        `mapstructure:"websocket_path"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	SendQueue     int           `mapstructure:"send_queue"`
	Workers       int           `mapstructure:"workers"`
}

type RegistryConfig struct {
	// Endpoints empty means in-process registry.
	Endpoints []string      `mapstructure:"endpoints"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type MetricsConfig struct {
	// Listen empty disables the /metrics endpoint.
	Listen        string        `mapstructure:"listen"`
}

var defaults = map[string]any{
	"log.level":               "info",
	"log.format":              "text",
	"log.stdout":              true,
	"codec.compression":       "none",
	"codec.min_compress_size": 1024,
	"codec.max_frame_size":    16 << 20,
	"transport.listen":        "127.0.0.1:0",
	"transport.dial_timeout":  3 * time.Second,
	"transport.send_queue":    256,
	"transport.workers":       4,
	"registry.prefix":         "/xtensor_ros/topics",
	"registry.ttl":            10 * time.Second,
}
