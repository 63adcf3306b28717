package models

import "time"

// Plan is a tenant's subscription-derived resource and feature ceilings.
//
// Plans are owned by the billing subsystem and are read-only to the
// engine: the engine never creates, mutates, or caches them, and always
// reads the current values at decision time.
type Plan struct {
	ID   string `gorm:"primaryKey;size:36" json:"id"`
	Name string `gorm:"uniqueIndex;not null;size:255" json:"name"`

	// PerServer is the ceiling for each individual server's limits.
	PerServer Resources `gorm:"embedded" json:"per_server"`

	// MaxServers is the number of servers the tenant may own at once.
	MaxServers int `gorm:"not null" json:"max_servers"`
	// MaxBackups is the per-tenant backup quota.
	MaxBackups int `gorm:"default:0" json:"max_backups"`
	// MaxDatabases is the per-tenant database quota.
	MaxDatabases int `gorm:"default:0" json:"max_databases"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Plan.
func (Plan) TableName() string {
	return "plans"
}

// Allows reports whether a single server with the given limits fits
// inside the plan's per-server ceilings.
func (p *Plan) Allows(req Resources) bool {
	return req.Fits(p.PerServer)
}
