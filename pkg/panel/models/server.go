package models

import (
	"fmt"
	"time"
)

// ServerState represents the lifecycle state of a server instance.
//
// The state machine is:
//
//	Installing → Stopped ⇄ Starting → Running ⇄ Stopping → Stopped
//
// The engine only commits the *intent* states (Installing, Starting,
// Stopping); the runtime collaborator reports completion (Running,
// Stopped) back through the engine's completion boundary.
type ServerState string

const (
	// StateInstalling is the initial state of every provisioned server.
	StateInstalling ServerState = "installing"
	// StateStopped means the server process is not running.
	StateStopped ServerState = "stopped"
	// StateStarting means a start has been requested but not yet confirmed.
	StateStarting ServerState = "starting"
	// StateRunning means the runtime collaborator confirmed the server is up.
	StateRunning ServerState = "running"
	// StateStopping means a stop has been requested but not yet confirmed.
	StateStopping ServerState = "stopping"
)

// IsValid checks if the state is one of the known lifecycle states.
func (s ServerState) IsValid() bool {
	switch s {
	case StateInstalling, StateStopped, StateStarting, StateRunning, StateStopping:
		return true
	}
	return false
}

// AllServerStates returns every lifecycle state, for exhaustive testing.
func AllServerStates() []ServerState {
	return []ServerState{StateInstalling, StateStopped, StateStarting, StateRunning, StateStopping}
}

// Resources describes a resource envelope along the three dimensions the
// platform schedules on. Memory and disk are MiB, CPU is percentage
// points (100 = one full core).
type Resources struct {
	MemoryMB   int64 `gorm:"column:memory_mb" json:"memory_mb"`
	CPUPercent int64 `gorm:"column:cpu_percent" json:"cpu_percent"`
	DiskMB     int64 `gorm:"column:disk_mb" json:"disk_mb"`
}

// Fits reports whether r fits inside the given free envelope along every
// dimension simultaneously.
func (r Resources) Fits(free Resources) bool {
	return r.MemoryMB <= free.MemoryMB &&
		r.CPUPercent <= free.CPUPercent &&
		r.DiskMB <= free.DiskMB
}

// Add returns the component-wise sum of r and other.
func (r Resources) Add(other Resources) Resources {
	return Resources{
		MemoryMB:   r.MemoryMB + other.MemoryMB,
		CPUPercent: r.CPUPercent + other.CPUPercent,
		DiskMB:     r.DiskMB + other.DiskMB,
	}
}

// Sub returns the component-wise difference r - other, clamped at zero.
func (r Resources) Sub(other Resources) Resources {
	clamp := func(v int64) int64 {
		if v < 0 {
			return 0
		}
		return v
	}
	return Resources{
		MemoryMB:   clamp(r.MemoryMB - other.MemoryMB),
		CPUPercent: clamp(r.CPUPercent - other.CPUPercent),
		DiskMB:     clamp(r.DiskMB - other.DiskMB),
	}
}

// Server represents a single provisioned game-server instance owned by
// one tenant and placed on one node.
//
// Invariants:
//   - Port is unique across all servers (enforced by a unique index and
//     by the engine's serialized allocation path).
//   - Resource limits lie within both platform bounds and the owner's
//     plan ceilings at creation time. Later plan tightening does not
//     retroactively invalidate existing servers.
//   - NodeID never changes after creation (no migration operation exists).
type Server struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	Name       string `gorm:"not null;size:255" json:"name"`
	OwnerID    string `gorm:"not null;index;size:36" json:"owner_id"`
	NodeID     string `gorm:"not null;index;size:36" json:"node_id"`
	TemplateID string `gorm:"size:64" json:"template_id,omitempty"`

	Limits Resources `gorm:"embedded" json:"limits"`

	Port int `gorm:"uniqueIndex;not null" json:"port"`

	State     string `gorm:"not null;size:20;default:installing" json:"state"`
	Suspended bool   `gorm:"default:false" json:"suspended"`
	AutoStart bool   `gorm:"default:false" json:"auto_start"`

	// Configuration and Environment are free-form blobs interpreted by
	// the runtime collaborator, opaque to the engine.
	Configuration string `gorm:"type:text" json:"configuration,omitempty"`
	Environment   string `gorm:"type:text" json:"environment,omitempty"`

	LastActivity *time.Time `json:"last_activity,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Server.
func (Server) TableName() string {
	return "servers"
}

// GetState returns the server's state as a typed ServerState.
func (s *Server) GetState() ServerState {
	return ServerState(s.State)
}

// IsOwnedBy checks whether the given tenant owns this server.
func (s *Server) IsOwnedBy(tenantID string) bool {
	return s.OwnerID == tenantID
}

// Validate checks structural validity of the server record.
func (s *Server) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("server name is required")
	}
	if s.OwnerID == "" {
		return fmt.Errorf("server owner is required")
	}
	if s.NodeID == "" {
		return fmt.Errorf("server node is required")
	}
	if !ServerState(s.State).IsValid() {
		return fmt.Errorf("invalid server state %q", s.State)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	return nil
}
