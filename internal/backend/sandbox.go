// Package backend implements a local sandbox cluster: topics, ACLs,
// quotas and schema-registry subjects persisted in SQLite. Providers talk
// to it through their client interfaces exactly as they would to a real
// cluster, which makes it usable for rehearsals and tests.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/streamctl/internal/db"
	"github.com/dokzlo13/streamctl/internal/kafka"
	"github.com/dokzlo13/streamctl/internal/storage"
)

var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource already exists")
	ErrInvalid  = errors.New("invalid request")
)

// Storage kinds used in the resource_state table.
const (
	kindTopic   = "sandbox.topic"
	kindACL     = "sandbox.acl"
	kindQuota   = "sandbox.quota"
	kindSubject = "sandbox.subject"
)

// Sandbox is an open connection to a sandbox cluster.
type Sandbox struct {
	db       *db.DB
	topics   *storage.TypedStore[kafka.TopicSpec]
	acls     *storage.TypedStore[kafka.ACLEntry]
	quotas   *storage.TypedStore[kafka.Quota]
	subjects *storage.TypedStore[subjectRecord]
}

// subjectRecord is the persisted form of a subject. Soft-deleted subjects
// keep their versions so a later registration continues numbering.
type subjectRecord struct {
	Spec    kafka.SubjectSpec `json:"spec"`
	Version int               `json:"version"`
	Deleted bool              `json:"deleted,omitempty"`
}

// Open connects to the sandbox stored at path, creating it if needed.
func Open(path string) (*Sandbox, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sandbox: %w", err)
	}

	store := storage.NewStore(database.DB)

	log.Debug().Str("path", path).Msg("Sandbox connection opened")

	return &Sandbox{
		db:       database,
		topics:   storage.NewTypedStore[kafka.TopicSpec](store, kindTopic),
		acls:     storage.NewTypedStore[kafka.ACLEntry](store, kindACL),
		quotas:   storage.NewTypedStore[kafka.Quota](store, kindQuota),
		subjects: storage.NewTypedStore[subjectRecord](store, kindSubject),
	}, nil
}

// Close releases the connection.
func (s *Sandbox) Close() error {
	return s.db.Close()
}

// Reset removes every resource from the sandbox.
func (s *Sandbox) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, clearKind := range []func() error{s.topics.Clear, s.acls.Clear, s.quotas.Clear, s.subjects.Clear} {
		if err := clearKind(); err != nil {
			return err
		}
	}
	return nil
}

func conflictOr(err error) error {
	if errors.Is(err, storage.ErrExists) {
		return ErrConflict
	}
	return err
}
