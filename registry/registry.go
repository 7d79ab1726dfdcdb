// Package registry discovers the endpoint URLs a load balanced pipeline is
// built from.
package registry

import (
	"context"
	"sort"
	"sync"
)

// Instance is one JSON-RPC endpoint of a service.
type Instance struct {
	URL     string `json:"url"`
	Weight  int    `json:"weight"` // Weight for load balancing
	Version string `json:"version,omitempty"`
}

type Registry interface {
	// Register publishes instance under service. ttl is in seconds; backends
	// without expiry ignore it.
	Register(ctx context.Context, service string, instance Instance, ttl int64) error
	Deregister(ctx context.Context, service string, url string) error
	Discover(ctx context.Context, service string) ([]Instance, error)
}

// StaticRegistry is an in-memory Registry, for fixed deployments and tests.
type StaticRegistry struct {
	mu       sync.RWMutex
	services map[string]map[string]Instance
}

// NewStatic returns a registry holding the given instances per service.
func NewStatic(services map[string][]Instance) *StaticRegistry {
	r := &StaticRegistry{services: make(map[string]map[string]Instance, len(services))}
	for service, instances := range services {
		for _, inst := range instances {
			r.put(service, inst)
		}
	}
	return r
}

func (r *StaticRegistry) Register(_ context.Context, service string, instance Instance, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(service, instance)
	return nil
}

func (r *StaticRegistry) put(service string, instance Instance) {
	byURL, ok := r.services[service]
	if !ok {
		byURL = make(map[string]Instance)
		r.services[service] = byURL
	}
	byURL[instance.URL] = instance
}

func (r *StaticRegistry) Deregister(_ context.Context, service string, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services[service], url)
	return nil
}

// Discover returns the instances of service sorted by URL, matching the key
// order etcd returns.
func (r *StaticRegistry) Discover(_ context.Context, service string) ([]Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instances := make([]Instance, 0, len(r.services[service]))
	for _, inst := range r.services[service] {
		instances = append(instances, inst)
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].URL < instances[j].URL
	})
	return instances, nil
}
