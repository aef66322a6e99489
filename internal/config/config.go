package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Pipeline configures the core event-dispatch pipeline.
type Pipeline struct {
	Workers        int           `envconfig:"PIPELINE_WORKERS" required:"true"`
	DedupWindow    time.Duration `envconfig:"PIPELINE_DEDUP_WINDOW" default:"10s"`
	GuardEnabled   bool          `envconfig:"PIPELINE_GUARD_ENABLED" default:"false"`
	GuardWait      time.Duration `envconfig:"PIPELINE_GUARD_WAIT" default:"0s"`
	QueueBound     int           `envconfig:"PIPELINE_QUEUE_BOUND" default:"0"`
	OverflowPolicy string        `envconfig:"PIPELINE_OVERFLOW_POLICY" default:"block"`
}

type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" required:"true"`
	APIPort     string `envconfig:"SERVICE_API_PORT" default:"8080"`
	Host        string `envconfig:"SERVICE_HOST" default:"localhost:8080"`
}

type SQS struct {
	Endpoint string `envconfig:"SQS_ENDPOINT"`
	QueueURL string `envconfig:"SQS_QUEUE_URL"`
	Region   string `envconfig:"SQS_REGION"`
}

type ClickHouse struct {
	Host               string        `envconfig:"CLICKHOUSE_HOST"`
	Port               string        `envconfig:"CLICKHOUSE_PORT"`
	Database           string        `envconfig:"CLICKHOUSE_DB"`
	User               string        `envconfig:"CLICKHOUSE_USER" default:""`
	Password           string        `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	UseTLS             bool          `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	MaxOpenConns       int           `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns       int           `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetimeSec int           `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME_SEC" default:"3600"`
	BatchSizeMax       int           `envconfig:"CLICKHOUSE_BATCH_SIZE_MAX" default:"500"`
	BatchTimeout       time.Duration `envconfig:"CLICKHOUSE_BATCH_TIMEOUT" default:"5s"`
}

// Synth configures the synthetic load generator producer.
type Synth struct {
	Enabled           bool          `envconfig:"SYNTH_ENABLED" default:"false"`
	RatePerSecond     int           `envconfig:"SYNTH_RATE_PER_SECOND" default:"100"`
	ClientCardinality int64         `envconfig:"SYNTH_CLIENT_CARDINALITY" default:"64"`
	Duration          time.Duration `envconfig:"SYNTH_DURATION" default:"0s"`
}

type Metrics struct {
	Port string `envconfig:"METRICS_PORT" default:"9090"`
}

// Config is the top-level configuration for the demo services that wire the
// core pipeline (internal/core itself takes a plain core.Options struct and
// has no dependency on this package).
type Config struct {
	Service    Service
	Pipeline   Pipeline
	SQS        SQS
	ClickHouse ClickHouse
	Synth      Synth
	Metrics    Metrics
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
