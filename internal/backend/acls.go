package backend

import (
	"context"
	"fmt"

	"github.com/dokzlo13/streamctl/internal/kafka"
)

// ListACLs returns all ACL entries ordered by user and topic.
func (s *Sandbox) ListACLs(ctx context.Context) ([]kafka.ACLEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := s.acls.List()
	if err != nil {
		return nil, err
	}

	acls := make([]kafka.ACLEntry, 0, len(entries))
	for _, e := range entries {
		acls = append(acls, e.Value)
	}
	return acls, nil
}

// CreateACL grants an ACL entry. An entry for the same user and topic
// must not exist.
func (s *Sandbox) CreateACL(ctx context.Context, entry kafka.ACLEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.Username == "" || entry.Topic == "" {
		return fmt.Errorf("%w: username and topic are required", ErrInvalid)
	}
	if !entry.Permission.Valid() {
		return fmt.Errorf("%w: unknown permission %q", ErrInvalid, entry.Permission)
	}
	return conflictOr(s.acls.Create(entry.Key(), entry))
}

// DeleteACL revokes the ACL entry for the entry's user and topic.
func (s *Sandbox) DeleteACL(ctx context.Context, entry kafka.ACLEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	existed, err := s.acls.Delete(entry.Key())
	if err != nil {
		return err
	}
	if !existed {
		return ErrNotFound
	}
	return nil
}
