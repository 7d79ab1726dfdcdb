package config

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"rpc-stack/loadbalance"
	"rpc-stack/middleware"
)

// Validate checks the configuration and reports every problem found, each
// with its field path.
func (c *Config) Validate() error {
	var err error

	if _, lerr := zapcore.ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log_level: %w", lerr))
	}
	err = multierr.Append(err, c.Transport.validate())
	for i, l := range c.Layers {
		if lerr := l.validate(); lerr != nil {
			err = multierr.Append(err, fmt.Errorf("layers[%d] (%s): %w", i, l.Type, lerr))
		}
	}
	return err
}

func (t TransportConfig) validate() error {
	var err error

	terminals := 0
	if t.URL != "" {
		terminals++
	}
	if len(t.Endpoints) > 0 {
		terminals++
	}
	if t.Registry != nil {
		terminals++
		if len(t.Registry.Etcd) == 0 {
			err = multierr.Append(err, fmt.Errorf("transport.registry.etcd is required"))
		}
		if t.Registry.Service == "" {
			err = multierr.Append(err, fmt.Errorf("transport.registry.service is required"))
		}
	}
	if t.Mock != nil {
		terminals++
	}
	switch terminals {
	case 0:
		err = multierr.Append(err, fmt.Errorf("transport: one of url, endpoints, registry or mock is required"))
	case 1:
	default:
		err = multierr.Append(err, fmt.Errorf("transport: url, endpoints, registry and mock are mutually exclusive"))
	}

	switch loadbalance.Strategy(t.Strategy) {
	case loadbalance.RoundRobin, loadbalance.WeightedRandom, loadbalance.ConsistentHash, "":
	default:
		err = multierr.Append(err, fmt.Errorf("transport.strategy: unknown strategy %q", t.Strategy))
	}
	if t.Timeout < 0 {
		err = multierr.Append(err, fmt.Errorf("transport.timeout must not be negative, got %v", t.Timeout))
	}
	return err
}

func (l LayerConfig) validate() error {
	switch l.Type {
	case LayerRateLimit:
		if l.Strategy != "" {
			if _, err := middleware.ParseRateLimitStrategy(l.Strategy); err != nil {
				return err
			}
		}
	case LayerConcurrencyLimit:
		if l.Max <= 0 {
			return fmt.Errorf("max must be > 0, got %d", l.Max)
		}
	case LayerTimeout:
		if l.Duration <= 0 {
			return fmt.Errorf("duration must be > 0, got %v", l.Duration)
		}
	case LayerRetry:
		if l.MaxAttempts <= 0 {
			return fmt.Errorf("max_attempts must be > 0, got %d", l.MaxAttempts)
		}
		if l.Backoff != nil {
			switch l.Backoff.Type {
			case "fixed", "exponential", "":
			default:
				return fmt.Errorf("backoff.type must be \"fixed\" or \"exponential\", got %q", l.Backoff.Type)
			}
		}
	case LayerFilter:
		if len(l.Allow) > 0 && len(l.Deny) > 0 {
			return fmt.Errorf("allow and deny are mutually exclusive")
		}
		if len(l.Allow) == 0 && len(l.Deny) == 0 {
			return fmt.Errorf("one of allow or deny is required")
		}
	case LayerCache, LayerLoadShed, LayerLogging, LayerMetrics:
	default:
		return fmt.Errorf("unknown layer type %q", l.Type)
	}
	return nil
}
