package loadbalance

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"rpc-stack/message"
)

type WeightedRandomBalancer struct {
	endpoints   []*Endpoint
	totalWeight int

	mu   sync.Mutex
	rand *rand.Rand
}

// NewWeightedRandom picks endpoints with probability proportional to their
// weight. Endpoints without a weight count as 1.
func NewWeightedRandom(endpoints ...Endpoint) (*WeightedRandomBalancer, error) {
	eps, err := copyEndpoints(endpoints)
	if err != nil {
		return nil, err
	}
	b := &WeightedRandomBalancer{
		endpoints: eps,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	// 计算总权重
	for _, ep := range eps {
		if ep.Weight < 0 {
			return nil, fmt.Errorf("loadbalance: endpoint %s has negative weight %d", ep.Name, ep.Weight)
		}
		if ep.Weight == 0 {
			ep.Weight = 1
		}
		b.totalWeight += ep.Weight
	}
	return b, nil
}

func (b *WeightedRandomBalancer) Pick(_ *message.Request) (*Endpoint, error) {
	// 生成一个随机数，范围是0到总权重
	b.mu.Lock()
	r := b.rand.Intn(b.totalWeight)
	b.mu.Unlock()
	for _, ep := range b.endpoints {
		r -= ep.Weight
		if r < 0 {
			return ep, nil
		}
	}
	return nil, fmt.Errorf("unexpected error in weighted random selection")
}

func (b *WeightedRandomBalancer) Endpoints() []*Endpoint {
	return b.endpoints
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
