package registry

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEtcdRegistry(t *testing.T) *EtcdRegistry {
	endpoints := os.Getenv("RPCSTACK_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("RPCSTACK_ETCD_ENDPOINTS not set")
	}
	reg, err := NewEtcdRegistry(strings.Split(endpoints, ","))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestRegisterAndDiscover(t *testing.T) {
	reg := newTestEtcdRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	service := "test-" + time.Now().Format("150405.000000")

	// Register two instances
	inst1 := Instance{URL: "http://127.0.0.1:8001", Weight: 10, Version: "1.0"}
	inst2 := Instance{URL: "http://127.0.0.1:8002", Weight: 5, Version: "1.0"}
	require.NoError(t, reg.Register(ctx, service, inst1, 10))
	require.NoError(t, reg.Register(ctx, service, inst2, 10))

	instances, err := reg.Discover(ctx, service)
	require.NoError(t, err)
	assert.Equal(t, []Instance{inst1, inst2}, instances)

	// Deregister one
	require.NoError(t, reg.Deregister(ctx, service, inst1.URL))

	instances, err = reg.Discover(ctx, service)
	require.NoError(t, err)
	assert.Equal(t, []Instance{inst2}, instances)

	// Cleanup
	_ = reg.Deregister(ctx, service, inst2.URL)
}
