// Package loadbalance spreads requests over a fixed set of endpoints.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity endpoints, strict X, Y, Z, X, ... order
//   - WeightedRandom:  heterogeneous endpoints (different rate limits or plans)
//   - ConsistentHash:  identical requests stick to one endpoint for cache affinity
package loadbalance

import (
	"context"
	"errors"
	"fmt"

	"rpc-stack/message"
	"rpc-stack/middleware"
)

// ErrNoEndpoints is returned when a balancer is built from an empty set.
var ErrNoEndpoints = errors.New("loadbalance: no endpoints")

// Endpoint is one target of the balancer. Stage is usually an HTTP transport
// for Name, possibly wrapped in per-endpoint layers.
type Endpoint struct {
	Name   string
	Weight int
	Stage  middleware.Stage
}

// Balancer selects the endpoint for each call.
// Pick is called on every call, so it must be goroutine-safe.
type Balancer interface {
	Pick(req *message.Request) (*Endpoint, error)
	// Endpoints returns the set in construction order.
	Endpoints() []*Endpoint
	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// Strategy names a balancing strategy in configuration.
type Strategy string

const (
	RoundRobin     Strategy = "round_robin"
	WeightedRandom Strategy = "weighted_random"
	ConsistentHash Strategy = "consistent_hash"
)

// New builds a balancer for the given strategy. An empty strategy means
// round robin.
func New(strategy Strategy, endpoints ...Endpoint) (Balancer, error) {
	switch strategy {
	case RoundRobin, "":
		return NewRoundRobin(endpoints...)
	case WeightedRandom:
		return NewWeightedRandom(endpoints...)
	case ConsistentHash:
		return NewConsistentHash(endpoints...)
	}
	return nil, fmt.Errorf("loadbalance: unknown strategy %q", strategy)
}

func copyEndpoints(endpoints []Endpoint) ([]*Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	out := make([]*Endpoint, len(endpoints))
	for i := range endpoints {
		if endpoints[i].Stage == nil {
			return nil, fmt.Errorf("loadbalance: endpoint %d (%s) has no stage", i, endpoints[i].Name)
		}
		ep := endpoints[i]
		out[i] = &ep
	}
	return out, nil
}

// NewStage returns the terminal Stage dispatching every call to the endpoint
// chosen by b.
func NewStage(b Balancer) middleware.Stage {
	return &balancedStage{balancer: b}
}

type balancedStage struct {
	balancer Balancer
}

func (s *balancedStage) Call(ctx context.Context, req *message.Request) (*message.Response, error) {
	ep, err := s.balancer.Pick(req)
	if err != nil {
		return nil, err
	}
	return ep.Stage.Call(ctx, req)
}

// Ready reports whether any endpoint can take a call.
func (s *balancedStage) Ready() bool {
	for _, ep := range s.balancer.Endpoints() {
		if ep.Stage.Ready() {
			return true
		}
	}
	return false
}
