// Package kafka holds the models of the Kafka resources managed by the
// providers: topics, ACL entries, quotas and schema-registry subjects.
package kafka

import (
	"fmt"
	"strings"
)

// Topic is a Kafka topic.
type Topic struct {
	Name string    `json:"name"`
	Spec TopicSpec `json:"spec"`
}

// TopicSpec is the desired configuration of a topic.
type TopicSpec struct {
	Partitions int32             `yaml:"partitions" json:"partitions"`
	Replicas   int16             `yaml:"replicas" json:"replicas"`
	Configs    map[string]string `yaml:"configs,omitempty" json:"configs,omitempty"`
}

// Permission is the access level granted by an ACL entry.
type Permission string

const (
	PermissionRead      Permission = "read"
	PermissionWrite     Permission = "write"
	PermissionReadWrite Permission = "readwrite"
	PermissionAdmin     Permission = "admin"
)

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionReadWrite, PermissionAdmin:
		return true
	}
	return false
}

// ACLEntry grants a user a permission on a topic pattern.
type ACLEntry struct {
	Username   string     `yaml:"username" json:"username"`
	Topic      string     `yaml:"topic" json:"topic"`
	Permission Permission `yaml:"permission" json:"permission"`
}

// Key identifies an ACL entry by user and topic.
func (e ACLEntry) Key() string {
	return e.Username + ":" + e.Topic
}

// DefaultQuotaEntity is used when a quota omits the user or client ID.
const DefaultQuotaEntity = "default"

// Quota limits the throughput of a user and/or client ID.
type Quota struct {
	User              string  `yaml:"user,omitempty" json:"user,omitempty"`
	ClientID          string  `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	ConsumerByteRate  int64   `yaml:"consumerByteRate,omitempty" json:"consumerByteRate,omitempty"`
	ProducerByteRate  int64   `yaml:"producerByteRate,omitempty" json:"producerByteRate,omitempty"`
	RequestPercentage float64 `yaml:"requestPercentage,omitempty" json:"requestPercentage,omitempty"`
}

// Key identifies a quota by user and client ID, using "default" for
// missing parts.
func (q Quota) Key() string {
	return entityOrDefault(q.User) + "/" + entityOrDefault(q.ClientID)
}

func entityOrDefault(s string) string {
	if s == "" {
		return DefaultQuotaEntity
	}
	return s
}

// Limits renders the quota's limits for descriptions.
func (q Quota) Limits() string {
	var parts []string
	if q.ProducerByteRate > 0 {
		parts = append(parts, fmt.Sprintf("producer_byte_rate=%d", q.ProducerByteRate))
	}
	if q.ConsumerByteRate > 0 {
		parts = append(parts, fmt.Sprintf("consumer_byte_rate=%d", q.ConsumerByteRate))
	}
	if q.RequestPercentage > 0 {
		parts = append(parts, fmt.Sprintf("request_percentage=%g", q.RequestPercentage))
	}
	if len(parts) == 0 {
		return "no limits"
	}
	return strings.Join(parts, ", ")
}

// Schema types supported by the schema registry.
const (
	SchemaTypeAvro     = "AVRO"
	SchemaTypeProtobuf = "PROTOBUF"
	SchemaTypeJSON     = "JSON"
)

// Subject is a schema-registry subject with its latest schema.
type Subject struct {
	Name    string      `json:"name"`
	Version int         `json:"version"`
	Spec    SubjectSpec `json:"spec"`
}

// SubjectSpec is the desired state of a subject.
type SubjectSpec struct {
	SchemaType         string `yaml:"schemaType,omitempty" json:"schemaType,omitempty"`
	Schema             string `yaml:"schema" json:"schema"`
	CompatibilityLevel string `yaml:"compatibilityLevel,omitempty" json:"compatibilityLevel,omitempty"`
}

// NormalizedType returns the schema type, AVRO when unset.
func (s SubjectSpec) NormalizedType() string {
	if s.SchemaType == "" {
		return SchemaTypeAvro
	}
	return strings.ToUpper(s.SchemaType)
}
