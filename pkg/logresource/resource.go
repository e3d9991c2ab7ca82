// Package logresource defines the log group and log stream projections
// observed from the remote logging service.
package logresource

import "time"

// Group is a read-only view of a remote log group.
// Existence is only ever observed, never cached beyond a single describe.
type Group struct {
	Name          string    `json:"name"`
	ARN           string    `json:"arn,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	RetentionDays *int32    `json:"retention_days,omitempty"` // nil means never expire
	StoredBytes   int64     `json:"stored_bytes"`
}

// Key returns the identity of the group.
func (g Group) Key() string {
	return g.Name
}

// Stream is a read-only view of a remote log stream.
// A stream is unique by (GroupName, Name).
type Stream struct {
	GroupName   string    `json:"group_name"`
	Name        string    `json:"name"`
	ARN         string    `json:"arn,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastEventAt time.Time `json:"last_event_at,omitempty"`
}

// Key returns "group/stream".
func (s Stream) Key() string {
	return StreamKey(s.GroupName, s.Name)
}

// StreamKey builds the identity for a stream without a Stream value.
func StreamKey(group, stream string) string {
	return group + "/" + stream
}
