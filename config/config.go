// Package config describes a pipeline in YAML and builds a client from it.
//
//	transport:
//	  url: https://api.mainnet-beta.solana.com
//	  timeout: 10s
//	layers:
//	  - type: rate_limit
//	    count: 40
//	    per: 10s
//	    queue: 100
//	  - type: retry
//	    max_attempts: 3
//	    backoff: {type: exponential, base: 200ms, cap: 5s, jitter: true}
//	  - type: cache
//	    ttl: 30s
//	    coalesce: true
//	    methods: [getBalance]
//
// Layers are listed outermost first, the order they see a request.
package config

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Layer types.
const (
	LayerRateLimit        = "rate_limit"
	LayerConcurrencyLimit = "concurrency_limit"
	LayerLoadShed         = "load_shed"
	LayerTimeout          = "timeout"
	LayerRetry            = "retry"
	LayerCache            = "cache"
	LayerFilter           = "filter"
	LayerLogging          = "logging"
	LayerMetrics          = "metrics"
)

// Config is the top-level pipeline description.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // default: info
	Transport TransportConfig `yaml:"transport"`
	Layers    []LayerConfig   `yaml:"layers"`

	// Registerer receives the metrics layer collectors. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer `yaml:"-"`
}

// TransportConfig selects the terminal stage. Exactly one of URL,
// Endpoints, Registry or Mock is used.
type TransportConfig struct {
	URL       string            `yaml:"url"`
	Endpoints []string          `yaml:"endpoints"`
	Strategy  string            `yaml:"strategy"` // load balance strategy, default: round_robin
	Timeout   time.Duration     `yaml:"timeout"`  // default: 30s
	Headers   map[string]string `yaml:"headers"`
	Registry  *RegistryConfig   `yaml:"registry"`
	Mock      map[string]any    `yaml:"mock"` // method → fixed result
}

// RegistryConfig discovers the endpoints from etcd.
type RegistryConfig struct {
	Etcd    []string `yaml:"etcd"`
	Service string   `yaml:"service"`
}

// LayerConfig is one layer. Type selects which of the other fields apply.
type LayerConfig struct {
	Type string `yaml:"type"`

	// rate_limit
	Count    int           `yaml:"count"`
	Per      time.Duration `yaml:"per"`
	Strategy string        `yaml:"strategy"`
	Queue    int           `yaml:"queue"`

	// concurrency_limit
	Max int `yaml:"max"`

	// timeout
	Duration time.Duration `yaml:"duration"`

	// retry
	MaxAttempts int            `yaml:"max_attempts"`
	Backoff     *BackoffConfig `yaml:"backoff"`

	// cache
	TTL        time.Duration `yaml:"ttl"`
	Coalesce   bool          `yaml:"coalesce"`
	MaxEntries int           `yaml:"max_entries"`
	Methods    []string      `yaml:"methods"`

	// filter
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`

	// metrics
	Namespace string `yaml:"namespace"`
}

// BackoffConfig is a fixed delay or an exponential backoff.
type BackoffConfig struct {
	Type   string        `yaml:"type"` // fixed or exponential
	Delay  time.Duration `yaml:"delay"`
	Base   time.Duration `yaml:"base"`
	Cap    time.Duration `yaml:"cap"`
	Jitter bool          `yaml:"jitter"`
}

// Defaults returns a Config with every default filled in.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Transport: TransportConfig{
			Strategy: "round_robin",
			Timeout:  30 * time.Second,
		},
	}
}
