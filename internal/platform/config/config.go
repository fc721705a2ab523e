package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	strs "taproom/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string

	Beers    Beers
	Realtime Realtime
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// Beers configures the collection and its listeners.
type Beers struct {
	IDStart     int64
	ReportEvery int
}

// Realtime configures the websocket connection registry.
type Realtime struct {
	MaxConnections int
	SendBuffer     int
	PingInterval   time.Duration
}

// RedisConfig configures the optional Redis mirror. An empty URL disables it.
type RedisConfig struct {
	URL          string
	Channel      string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional notification stream. No brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Defaults.
const (
	DefaultPort            = "8338"
	DefaultReportEvery     = 10
	DefaultSendBuffer      = 16
	DefaultPingInterval    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRedisChannel    = "taproom:events"
	DefaultKafkaTopic      = "taproom.notifications"
)

// Load reads an optional .env file and then builds the config from the environment.
func Load() (Server, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	p := &parser{}

	port := getenv("PORT", DefaultPort)
	cfg := Server{
		Addr:            ":" + strings.TrimPrefix(port, ":"),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
		Beers: Beers{
			IDStart:     p.int64("BEER_ID_START", 0),
			ReportEvery: p.int("REPORT_EVERY", DefaultReportEvery),
		},
		Realtime: Realtime{
			MaxConnections: p.int("MAX_CONNECTIONS", 0),
			SendBuffer:     p.int("WS_SEND_BUFFER", DefaultSendBuffer),
			PingInterval:   p.duration("WS_PING_INTERVAL", DefaultPingInterval),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			Channel:      getenv("REDIS_CHANNEL", DefaultRedisChannel),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: strs.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getenv("KAFKA_TOPIC", DefaultKafkaTopic),
		},
	}
	if p.err != nil {
		return Server{}, p.err
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) validate() error {
	switch {
	case c.Beers.ReportEvery < 1:
		return fmt.Errorf("REPORT_EVERY must be at least 1, got %d", c.Beers.ReportEvery)
	case c.Beers.IDStart < 0:
		return fmt.Errorf("BEER_ID_START must not be negative, got %d", c.Beers.IDStart)
	case c.Realtime.MaxConnections < 0:
		return fmt.Errorf("MAX_CONNECTIONS must not be negative, got %d", c.Realtime.MaxConnections)
	case c.Realtime.SendBuffer < 1:
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1, got %d", c.Realtime.SendBuffer)
	case c.Realtime.PingInterval <= 0:
		return fmt.Errorf("WS_PING_INTERVAL must be positive, got %s", c.Realtime.PingInterval)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// parser records the first malformed variable and keeps defaults afterwards.
type parser struct {
	err error
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) int64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
