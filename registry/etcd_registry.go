package registry

// etcd is used as a "distributed phonebook" for endpoints:
//
//	Key:   /rpc-stack/{service}/{url}
//	Value: JSON-encoded Instance
//
// Registration uses TTL-based leases: if the publisher goes away, the lease
// expires and the entry is removed with it.

import (
	"context"
	"encoding/json"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const (
	keyPrefix          = "/rpc-stack/"
	defaultDialTimeout = 5 * time.Second
)

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
	logger *zap.Logger
}

// EtcdOption configures NewEtcdRegistry.
type EtcdOption func(*EtcdRegistry)

// WithLogger reports skipped registry entries.
func WithLogger(logger *zap.Logger) EtcdOption {
	return func(r *EtcdRegistry) {
		r.logger = logger
	}
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, opts ...EtcdOption) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: defaultDialTimeout,
	})
	if err != nil {
		return nil, err
	}
	r := &EtcdRegistry{client: c, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func serviceKey(service string) string {
	return keyPrefix + service + "/"
}

// Register stores instance with a lease of ttl seconds and keeps the lease
// alive until the registry is closed.
//
// Note: the lease ID stays local, so one EtcdRegistry can publish many
// instances concurrently.
func (r *EtcdRegistry) Register(ctx context.Context, service string, instance Instance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, serviceKey(service)+instance.URL, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	// KeepAlive outlives the registration call, so it must not use ctx.
	ch, err := r.client.KeepAlive(context.WithoutCancel(ctx), lease.ID)
	if err != nil {
		return err
	}

	// Consume KeepAlive responses to prevent the channel from filling up
	go func() {
		for range ch {
		}
	}()
	return nil
}

func (r *EtcdRegistry) Deregister(ctx context.Context, service string, url string) error {
	_, err := r.client.Delete(ctx, serviceKey(service)+url)
	return err
}

// Discover returns every instance registered under service, in key order.
func (r *EtcdRegistry) Discover(ctx context.Context, service string) ([]Instance, error) {
	resp, err := r.client.Get(ctx, serviceKey(service), clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance Instance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.logger.Warn("skipping malformed registry entry", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Close stops lease renewal and closes the etcd connection.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
