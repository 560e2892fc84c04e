// Package config loads service configuration from an optional YAML file and
// the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the optional YAML config file.
const FileEnv = "TRANSCRIPT_CONFIG_FILE"

// Source kinds.
const (
	SourcePush  = "push"
	SourceWS    = "ws"
	SourceKafka = "kafka"
	SourceMock  = "mock"
)

type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Reconciler    ReconcilerConfig    `yaml:"reconciler"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Source        SourceConfig        `yaml:"source"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Principal   string `yaml:"principal"`
	HTTPPort    string `yaml:"http_port"`
	GRPCPort    string `yaml:"grpc_port"`
	MetricsPort string `yaml:"metrics_port"`
}

// ReconcilerConfig holds the transcript heuristics. Only the ordering
// T_user < T_agent < StaleAfter is load-bearing.
type ReconcilerConfig struct {
	MinPartialLength    int           `yaml:"min_partial_length"`
	UserPromotionDelay  time.Duration `yaml:"user_promotion_delay"`
	AgentPromotionDelay time.Duration `yaml:"agent_promotion_delay"`
	DedupWindow         time.Duration `yaml:"dedup_window"`
	DedupSimilarity     float64       `yaml:"dedup_similarity"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`
	StaleAfter          time.Duration `yaml:"stale_after"`
	MaxPendingDisplay   int           `yaml:"max_pending_display"`
	AgentMarkers        []string      `yaml:"agent_markers"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	TopicPending string   `yaml:"topic_pending"`
	TopicFinal   string   `yaml:"topic_final"`
	Principal    string   `yaml:"principal"`
}

// SourceConfig selects the default media session source for new rooms.
type SourceConfig struct {
	Kind                string        `yaml:"kind"`
	WSURL               string        `yaml:"ws_url"`
	KafkaTopic          string        `yaml:"kafka_topic"`
	KafkaGroupID        string        `yaml:"kafka_group_id"`
	MockPartialInterval time.Duration `yaml:"mock_partial_interval"`
	MockTurnGap         time.Duration `yaml:"mock_turn_gap"`
	MockLoop            bool          `yaml:"mock_loop"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:   "svc-interview-transcript",
			HTTPPort:    "8080",
			GRPCPort:    "50051",
			MetricsPort: "9090",
		},
		Reconciler: ReconcilerConfig{
			MinPartialLength:    3,
			UserPromotionDelay:  1500 * time.Millisecond,
			AgentPromotionDelay: 3 * time.Second,
			DedupWindow:         3 * time.Second,
			DedupSimilarity:     0.95,
			SweepInterval:       3 * time.Second,
			StaleAfter:          8 * time.Second,
			MaxPendingDisplay:   2,
			AgentMarkers:        []string{"agent", "ai"},
		},
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			TopicPending: "interview.transcript.pending",
			TopicFinal:   "interview.transcript.final",
		},
		Source: SourceConfig{
			Kind:                SourcePush,
			KafkaTopic:          "interview.media.frames",
			MockPartialInterval: 300 * time.Millisecond,
			MockTurnGap:         4 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// TRANSCRIPT_CONFIG_FILE if set, then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv(FileEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	s := &cfg.Service
	s.Principal = envOrDefault("SERVICE_PRINCIPAL", s.Principal)
	s.HTTPPort = envOrDefault("HTTP_PORT", s.HTTPPort)
	s.GRPCPort = envOrDefault("GRPC_PORT", s.GRPCPort)
	s.MetricsPort = envOrDefault("METRICS_PORT", s.MetricsPort)

	r := &cfg.Reconciler
	r.MinPartialLength = envOrDefaultInt("RECONCILER_MIN_PARTIAL_LENGTH", r.MinPartialLength)
	r.UserPromotionDelay = envOrDefaultDuration("RECONCILER_USER_PROMOTION_DELAY", r.UserPromotionDelay)
	r.AgentPromotionDelay = envOrDefaultDuration("RECONCILER_AGENT_PROMOTION_DELAY", r.AgentPromotionDelay)
	r.DedupWindow = envOrDefaultDuration("RECONCILER_DEDUP_WINDOW", r.DedupWindow)
	r.DedupSimilarity = envOrDefaultFloat("RECONCILER_DEDUP_SIMILARITY", r.DedupSimilarity)
	r.SweepInterval = envOrDefaultDuration("RECONCILER_SWEEP_INTERVAL", r.SweepInterval)
	r.StaleAfter = envOrDefaultDuration("RECONCILER_STALE_AFTER", r.StaleAfter)
	r.MaxPendingDisplay = envOrDefaultInt("VIEW_MAX_PENDING", r.MaxPendingDisplay)
	r.AgentMarkers = envOrDefaultList("AGENT_MARKERS", r.AgentMarkers)

	k := &cfg.Kafka
	k.Enabled = envOrDefaultBool("KAFKA_ENABLED", k.Enabled)
	k.Brokers = envOrDefaultList("KAFKA_BROKERS", k.Brokers)
	k.TopicPending = envOrDefault("KAFKA_TOPIC_PENDING", k.TopicPending)
	k.TopicFinal = envOrDefault("KAFKA_TOPIC_FINAL", k.TopicFinal)
	k.Principal = envOrDefault("KAFKA_PRINCIPAL", k.Principal)
	if k.Principal == "" {
		k.Principal = s.Principal
	}

	src := &cfg.Source
	src.Kind = envOrDefault("SOURCE_KIND", src.Kind)
	src.WSURL = envOrDefault("SOURCE_WS_URL", src.WSURL)
	src.KafkaTopic = envOrDefault("SOURCE_KAFKA_TOPIC", src.KafkaTopic)
	src.KafkaGroupID = envOrDefault("SOURCE_KAFKA_GROUP_ID", src.KafkaGroupID)
	src.MockPartialInterval = envOrDefaultDuration("MOCK_PARTIAL_INTERVAL", src.MockPartialInterval)
	src.MockTurnGap = envOrDefaultDuration("MOCK_TURN_GAP", src.MockTurnGap)
	src.MockLoop = envOrDefaultBool("MOCK_LOOP", src.MockLoop)

	o := &cfg.Observability
	o.LogLevel = envOrDefault("LOG_LEVEL", o.LogLevel)
	o.LogFormat = envOrDefault("LOG_FORMAT", o.LogFormat)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	r := c.Reconciler
	if r.MinPartialLength < 0 {
		errs = append(errs, errors.New("reconciler: min partial length must not be negative"))
	}
	if r.UserPromotionDelay <= 0 {
		errs = append(errs, errors.New("reconciler: user promotion delay must be positive"))
	}
	if r.AgentPromotionDelay <= r.UserPromotionDelay {
		errs = append(errs, fmt.Errorf("reconciler: agent promotion delay %v must exceed user promotion delay %v",
			r.AgentPromotionDelay, r.UserPromotionDelay))
	}
	if r.StaleAfter <= r.AgentPromotionDelay {
		errs = append(errs, fmt.Errorf("reconciler: stale horizon %v must exceed agent promotion delay %v",
			r.StaleAfter, r.AgentPromotionDelay))
	}
	if r.SweepInterval <= 0 {
		errs = append(errs, errors.New("reconciler: sweep interval must be positive"))
	}
	if r.DedupWindow < 0 {
		errs = append(errs, errors.New("reconciler: dedup window must not be negative"))
	}
	if r.DedupSimilarity < 0 || r.DedupSimilarity > 1 {
		errs = append(errs, errors.New("reconciler: dedup similarity must be within [0,1]"))
	}
	if r.MaxPendingDisplay < 0 {
		errs = append(errs, errors.New("reconciler: max pending display must not be negative"))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka: brokers required when enabled"))
	}

	switch c.Source.Kind {
	case SourcePush, SourceMock:
	case SourceWS:
		if c.Source.WSURL == "" {
			errs = append(errs, errors.New("source: ws url required for ws source"))
		}
	case SourceKafka:
		if len(c.Kafka.Brokers) == 0 || c.Source.KafkaTopic == "" {
			errs = append(errs, errors.New("source: kafka brokers and topic required for kafka source"))
		}
	default:
		errs = append(errs, fmt.Errorf("source: unknown kind %q", c.Source.Kind))
	}

	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envOrDefaultList splits a comma-separated value, dropping empty items.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
