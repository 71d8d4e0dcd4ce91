package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/dokzlo13/streamctl/internal/kafka"
)

var compatibilityLevels = map[string]bool{
	"BACKWARD":            true,
	"BACKWARD_TRANSITIVE": true,
	"FORWARD":             true,
	"FORWARD_TRANSITIVE":  true,
	"FULL":                true,
	"FULL_TRANSITIVE":     true,
	"NONE":                true,
}

// ListSubjects returns all subjects that are not soft-deleted.
func (s *Sandbox) ListSubjects(ctx context.Context) ([]kafka.Subject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := s.subjects.List()
	if err != nil {
		return nil, err
	}

	subjects := make([]kafka.Subject, 0, len(entries))
	for _, e := range entries {
		if e.Value.Deleted {
			continue
		}
		subjects = append(subjects, kafka.Subject{Name: e.ID, Version: e.Value.Version, Spec: e.Value.Spec})
	}
	return subjects, nil
}

// RegisterSchema registers a schema under a subject and returns its
// version. Registering the current schema again returns the current
// version. A soft-deleted subject is revived with the next version.
func (s *Sandbox) RegisterSchema(ctx context.Context, name string, spec kafka.SubjectSpec) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(spec.Schema) == "" {
		return 0, fmt.Errorf("%w: schema is required", ErrInvalid)
	}
	if err := validateCompatibility(spec.CompatibilityLevel); err != nil {
		return 0, err
	}

	current, found, err := s.subjects.Get(name)
	if err != nil {
		return 0, err
	}

	spec.SchemaType = spec.NormalizedType()
	if found && !current.Deleted &&
		current.Spec.Schema == spec.Schema && current.Spec.SchemaType == spec.SchemaType {
		if current.Spec.CompatibilityLevel != spec.CompatibilityLevel {
			current.Spec.CompatibilityLevel = spec.CompatibilityLevel
			if err := s.subjects.Set(name, current); err != nil {
				return 0, err
			}
		}
		return current.Version, nil
	}

	record := subjectRecord{Spec: spec, Version: current.Version + 1}
	if err := s.subjects.Set(name, record); err != nil {
		return 0, err
	}
	return record.Version, nil
}

// SetCompatibility changes the compatibility level of a subject.
func (s *Sandbox) SetCompatibility(ctx context.Context, name, level string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateCompatibility(level); err != nil {
		return err
	}

	current, found, err := s.subjects.Get(name)
	if err != nil {
		return err
	}
	if !found || current.Deleted {
		return ErrNotFound
	}

	current.Spec.CompatibilityLevel = level
	return s.subjects.Set(name, current)
}

// DeleteSubject soft-deletes a subject. A permanent delete is only
// allowed once the subject has been soft-deleted.
func (s *Sandbox) DeleteSubject(ctx context.Context, name string, permanent bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	current, found, err := s.subjects.Get(name)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}

	if !permanent {
		if current.Deleted {
			return ErrNotFound
		}
		current.Deleted = true
		return s.subjects.Set(name, current)
	}

	if !current.Deleted {
		return fmt.Errorf("%w: subject %q must be soft-deleted before a permanent delete", ErrInvalid, name)
	}
	_, err = s.subjects.Delete(name)
	return err
}

func validateCompatibility(level string) error {
	if level == "" || compatibilityLevels[level] {
		return nil
	}
	return fmt.Errorf("%w: unknown compatibility level %q", ErrInvalid, level)
}
