package models

import (
	"fmt"
	"time"
)

// Node represents a physical or virtual host with finite capacity that
// can run zero or more servers.
//
// Committed usage (the sum of placed servers' limits) is derived from
// the servers table at query time rather than stored here, so capacity
// bookkeeping cannot drift across decommissions.
type Node struct {
	ID   string `gorm:"primaryKey;size:36" json:"id"`
	Name string `gorm:"uniqueIndex;not null;size:255" json:"name"`
	FQDN string `gorm:"size:255" json:"fqdn,omitempty"`

	Capacity Resources `gorm:"embedded" json:"capacity"`

	// Active gates the node in or out of service entirely.
	Active bool `gorm:"default:true" json:"active"`
	// Public makes the node eligible for automatic placement. Private
	// nodes only receive servers when named explicitly.
	Public bool `gorm:"default:true" json:"public"`
	// MaintenanceMode excludes the node from all placement while set.
	MaintenanceMode bool `gorm:"default:false" json:"maintenance_mode"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Node.
func (Node) TableName() string {
	return "nodes"
}

// Schedulable reports whether automatic placement may consider this node.
func (n *Node) Schedulable() bool {
	return n.Active && n.Public && !n.MaintenanceMode
}

// CanAccommodate reports whether the node has room for the requested
// envelope given its currently committed usage.
func (n *Node) CanAccommodate(committed, req Resources) bool {
	return req.Fits(n.Capacity.Sub(committed))
}

// Validate checks structural validity of the node record.
func (n *Node) Validate() error {
	if n.Name == "" {
		return fmt.Errorf("node name is required")
	}
	if n.Capacity.MemoryMB <= 0 || n.Capacity.CPUPercent <= 0 || n.Capacity.DiskMB <= 0 {
		return fmt.Errorf("node capacity must be positive along all dimensions")
	}
	return nil
}
