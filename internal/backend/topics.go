package backend

import (
	"context"
	"fmt"

	"github.com/dokzlo13/streamctl/internal/kafka"
)

// ListTopics returns all topics ordered by name.
func (s *Sandbox) ListTopics(ctx context.Context) ([]kafka.Topic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := s.topics.List()
	if err != nil {
		return nil, err
	}

	topics := make([]kafka.Topic, 0, len(entries))
	for _, e := range entries {
		topics = append(topics, kafka.Topic{Name: e.ID, Spec: e.Value})
	}
	return topics, nil
}

// CreateTopic creates a new topic.
func (s *Sandbox) CreateTopic(ctx context.Context, topic kafka.Topic) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateTopic(topic); err != nil {
		return err
	}
	return conflictOr(s.topics.Create(topic.Name, topic.Spec))
}

// AlterTopic replaces the configuration of an existing topic. Partitions
// can only grow and the replication factor cannot change.
func (s *Sandbox) AlterTopic(ctx context.Context, topic kafka.Topic) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateTopic(topic); err != nil {
		return err
	}

	current, found, err := s.topics.Get(topic.Name)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}

	if topic.Spec.Partitions < current.Partitions {
		return fmt.Errorf("%w: cannot reduce partitions from %d to %d",
			ErrInvalid, current.Partitions, topic.Spec.Partitions)
	}
	if topic.Spec.Replicas != current.Replicas {
		return fmt.Errorf("%w: cannot change replication factor from %d to %d",
			ErrInvalid, current.Replicas, topic.Spec.Replicas)
	}

	return s.topics.Set(topic.Name, topic.Spec)
}

// DeleteTopic deletes a topic.
func (s *Sandbox) DeleteTopic(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	existed, err := s.topics.Delete(name)
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	return nil
}

func validateTopic(topic kafka.Topic) error {
	if topic.Name == "" {
		return fmt.Errorf("%w: topic name is required", ErrInvalid)
	}
	if topic.Spec.Partitions < 1 {
		return fmt.Errorf("%w: partitions must be at least 1", ErrInvalid)
	}
	if topic.Spec.Replicas < 1 {
		return fmt.Errorf("%w: replicas must be at least 1", ErrInvalid)
	}
	return nil
}
