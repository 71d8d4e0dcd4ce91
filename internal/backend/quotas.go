package backend

import (
	"context"
	"fmt"

	"github.com/dokzlo13/streamctl/internal/kafka"
)

// ListQuotas returns all quotas ordered by entity.
func (s *Sandbox) ListQuotas(ctx context.Context) ([]kafka.Quota, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := s.quotas.List()
	if err != nil {
		return nil, err
	}

	quotas := make([]kafka.Quota, 0, len(entries))
	for _, e := range entries {
		quotas = append(quotas, e.Value)
	}
	return quotas, nil
}

// UpsertQuota sets the limits of a quota entity, creating it if needed.
func (s *Sandbox) UpsertQuota(ctx context.Context, quota kafka.Quota) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if quota.ConsumerByteRate < 0 || quota.ProducerByteRate < 0 {
		return fmt.Errorf("%w: byte rates must not be negative", ErrInvalid)
	}
	if quota.RequestPercentage < 0 || quota.RequestPercentage > 100 {
		return fmt.Errorf("%w: request percentage must be within [0, 100]", ErrInvalid)
	}
	return s.quotas.Set(quota.Key(), quota)
}

// DeleteQuota removes the limits of a quota entity.
func (s *Sandbox) DeleteQuota(ctx context.Context, quota kafka.Quota) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	existed, err := s.quotas.Delete(quota.Key())
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	return nil
}
