package models

import (
	"fmt"
	"time"
)

// UserRole represents the role of a user in the system.
type UserRole string

const (
	// RoleUser is a regular tenant with servers of their own.
	RoleUser UserRole = "user"
	// RoleAdmin is an administrator with full panel access.
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is a valid UserRole.
func (r UserRole) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a panel account. Tenants own servers; admins operate
// the panel itself.
type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Username     string `gorm:"uniqueIndex;not null;size:255" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `gorm:"default:user;size:50" json:"role"`
	Enabled      bool   `gorm:"default:true" json:"enabled"`

	// SubscriptionActive mirrors the billing subsystem's view of the
	// tenant. Provisioning is gated on it; existing servers are not.
	SubscriptionActive bool   `gorm:"default:false" json:"subscription_active"`
	PlanID             string `gorm:"size:36" json:"plan_id,omitempty"`
	Plan               *Plan  `gorm:"foreignKey:PlanID" json:"plan,omitempty"`

	Email     string     `gorm:"size:255" json:"email,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// IsAdmin checks if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}

// GetRole returns the user's role as a UserRole type.
func (u *User) GetRole() UserRole {
	return UserRole(u.Role)
}

// Validate checks if the user has valid configuration.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if u.Role != "" && !UserRole(u.Role).IsValid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}
