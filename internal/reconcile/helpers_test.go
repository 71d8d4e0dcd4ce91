package reconcile

import (
	"context"
	"sync"

	"github.com/dokzlo13/streamctl/internal/resource"
)

type quota struct {
	User string
	Rate int
}

var quotaType = resource.Type{APIVersion: "kafka.aiven.io/v1beta1", Kind: "KafkaQuota"}

func quotaObj(user string, rate int) resource.Object[quota] {
	return resource.New(quotaType, resource.Meta{Name: user}, quota{User: user, Rate: rate})
}

// recorder is a handler that records every change it receives.
type recorder struct {
	mu    sync.Mutex
	calls []Key
	err   error
}

func (r *recorder) Apply(_ context.Context, change ResourceChange[quota]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, change.Key)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func countByType(changes []ResourceChange[quota]) map[ChangeType]int {
	counts := make(map[ChangeType]int)
	for _, c := range changes {
		counts[c.Type]++
	}
	return counts
}
