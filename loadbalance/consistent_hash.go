package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"

	"rpc-stack/message"
)

const defaultReplicas = 100

// ConsistentHashBalancer maps request keys to endpoints on a hash ring, so
// identical requests always reach the same endpoint. That keeps upstream
// caches warm when several endpoints sit behind one pipeline.
//
// Each endpoint owns defaultReplicas virtual nodes hashed from "{name}#{i}";
// with only a handful of real nodes the ring would otherwise be lumpy.
type ConsistentHashBalancer struct {
	endpoints []*Endpoint
	ring      []uint32             // sorted
	nodes     map[uint32]*Endpoint // hash → endpoint
	key       func(*message.Request) string
}

// NewConsistentHash builds the ring once; the endpoint set never changes.
func NewConsistentHash(endpoints ...Endpoint) (*ConsistentHashBalancer, error) {
	eps, err := copyEndpoints(endpoints)
	if err != nil {
		return nil, err
	}
	b := &ConsistentHashBalancer{
		endpoints: eps,
		nodes:     make(map[uint32]*Endpoint, len(eps)*defaultReplicas),
		key:       (*message.Request).Key,
	}
	for i, ep := range eps {
		name := ep.Name
		if name == "" {
			name = fmt.Sprintf("endpoint-%d", i)
		}
		for r := 0; r < defaultReplicas; r++ {
			hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", name, r)))
			if _, taken := b.nodes[hash]; taken {
				continue
			}
			b.ring = append(b.ring, hash)
			b.nodes[hash] = ep
		}
	}
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
	return b, nil
}

// Pick hashes the request key and takes the first node clockwise from it,
// wrapping to the start of the ring.
func (b *ConsistentHashBalancer) Pick(req *message.Request) (*Endpoint, error) {
	return b.pickKey(b.key(req)), nil
}

func (b *ConsistentHashBalancer) pickKey(key string) *Endpoint {
	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]]
}

func (b *ConsistentHashBalancer) Endpoints() []*Endpoint {
	return b.endpoints
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
