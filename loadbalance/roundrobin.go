package loadbalance

import (
	"go.uber.org/atomic"

	"rpc-stack/message"
)

// RoundRobinBalancer walks the endpoints in order, one step per call
// whatever the outcome of the previous one.
// Uses an atomic cursor for lock-free, goroutine-safe operation.
type RoundRobinBalancer struct {
	endpoints []*Endpoint
	cursor    atomic.Uint64
}

// NewRoundRobin returns a balancer whose first pick is endpoints[0].
func NewRoundRobin(endpoints ...Endpoint) (*RoundRobinBalancer, error) {
	eps, err := copyEndpoints(endpoints)
	if err != nil {
		return nil, err
	}
	return &RoundRobinBalancer{endpoints: eps}, nil
}

func (b *RoundRobinBalancer) Pick(_ *message.Request) (*Endpoint, error) {
	index := (b.cursor.Inc() - 1) % uint64(len(b.endpoints))
	return b.endpoints[index], nil
}

func (b *RoundRobinBalancer) Endpoints() []*Endpoint {
	return b.endpoints
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
