package models

import "time"

// ActorKind identifies who caused a lifecycle event.
type ActorKind string

const (
	// ActorSystem marks events produced by the platform itself.
	ActorSystem ActorKind = "system"
	// ActorUser marks events produced by the owning tenant.
	ActorUser ActorKind = "user"
	// ActorAdmin marks events produced by an administrator.
	ActorAdmin ActorKind = "admin"
)

// IsValid checks if the actor kind is known.
func (k ActorKind) IsValid() bool {
	return k == ActorSystem || k == ActorUser || k == ActorAdmin
}

// EventSeverity classifies a lifecycle event for display and alerting.
type EventSeverity string

const (
	SeverityInfo    EventSeverity = "info"
	SeverityWarning EventSeverity = "warning"
	SeverityError   EventSeverity = "error"
)

// LifecycleEvent is an immutable audit record of a state-affecting
// action on a server.
//
// Rows are append-only: the engine never updates or deletes them.
// Retention and cleanup belong to an external collaborator. Events
// deliberately carry no foreign key to servers so the audit trail
// survives decommission.
type LifecycleEvent struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	ServerID string `gorm:"not null;index;size:36" json:"server_id"`

	Actor    string `gorm:"not null;size:20" json:"actor"`
	Severity string `gorm:"not null;size:20;default:info" json:"severity"`
	Message  string `gorm:"not null;size:512" json:"message"`

	// Metadata is a JSON object with structured detail (field diffs,
	// transition endpoints, restart intent).
	Metadata string `gorm:"type:text" json:"metadata,omitempty"`
	// Source tags the emitting component.
	Source string `gorm:"size:64;default:engine" json:"source"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName returns the table name for LifecycleEvent.
func (LifecycleEvent) TableName() string {
	return "lifecycle_events"
}
