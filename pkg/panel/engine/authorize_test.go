package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeAdminActions(t *testing.T) {
	admin := ActorSnapshot{ID: "admin-1", Admin: true}
	server := &ServerSnapshot{OwnerID: "tenant-1", Suspended: true}

	// Admins act on any server, suspended or not.
	for _, action := range []Action{ActionView, ActionUpdate, ActionDelete, ActionControl, ActionRestore, ActionForceDel} {
		dec := Authorize(admin, server, PlanCounters{}, action)
		assert.True(t, dec.Allowed, "admin should be allowed %s", action)
	}
}

func TestAuthorizeStrangerDeniedEverything(t *testing.T) {
	stranger := ActorSnapshot{ID: "other"}
	server := &ServerSnapshot{OwnerID: "tenant-1"}

	for _, action := range []Action{ActionView, ActionUpdate, ActionDelete, ActionControl, ActionConsole, ActionFiles, ActionBackups, ActionStatistics} {
		dec := Authorize(stranger, server, PlanCounters{}, action)
		assert.False(t, dec.Allowed, "stranger should be denied %s", action)
		assert.Equal(t, DenyNotOwner, dec.Reason)
	}
}

func TestAuthorizeOwnerReadFamily(t *testing.T) {
	owner := ActorSnapshot{ID: "tenant-1"}

	for _, action := range []Action{ActionView, ActionBackups, ActionDatabases, ActionStatistics} {
		t.Run(string(action), func(t *testing.T) {
			// Reads are allowed even while suspended.
			dec := Authorize(owner, &ServerSnapshot{OwnerID: "tenant-1", Suspended: true}, PlanCounters{}, action)
			assert.True(t, dec.Allowed)
		})
	}
}

func TestAuthorizeOwnerControlFamily(t *testing.T) {
	owner := ActorSnapshot{ID: "tenant-1"}

	for _, action := range []Action{ActionUpdate, ActionControl, ActionConsole, ActionFiles} {
		t.Run(string(action), func(t *testing.T) {
			dec := Authorize(owner, &ServerSnapshot{OwnerID: "tenant-1"}, PlanCounters{}, action)
			assert.True(t, dec.Allowed)

			dec = Authorize(owner, &ServerSnapshot{OwnerID: "tenant-1", Suspended: true}, PlanCounters{}, action)
			assert.False(t, dec.Allowed)
			assert.Equal(t, DenySuspended, dec.Reason)
		})
	}
}

func TestAuthorizeCreate(t *testing.T) {
	owner := ActorSnapshot{ID: "tenant-1"}

	tests := []struct {
		name     string
		counters PlanCounters
		allowed  bool
		reason   DenyReason
	}{
		{
			name:     "allowed below quota",
			counters: PlanCounters{SubscriptionActive: true, ServerCount: 1, MaxServers: 2},
			allowed:  true,
		},
		{
			name:     "denied without subscription",
			counters: PlanCounters{SubscriptionActive: false, ServerCount: 0, MaxServers: 2},
			allowed:  false,
			reason:   DenyNoSubscription,
		},
		{
			name:     "denied at quota",
			counters: PlanCounters{SubscriptionActive: true, ServerCount: 2, MaxServers: 2},
			allowed:  false,
			reason:   DenyServerQuota,
		},
		{
			name:     "denied above quota after plan downgrade",
			counters: PlanCounters{SubscriptionActive: true, ServerCount: 5, MaxServers: 2},
			allowed:  false,
			reason:   DenyServerQuota,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := Authorize(owner, nil, tt.counters, ActionCreate)
			assert.Equal(t, tt.allowed, dec.Allowed)
			if !tt.allowed {
				assert.Equal(t, tt.reason, dec.Reason)
			}
		})
	}
}

func TestAuthorizeCreateBackup(t *testing.T) {
	owner := ActorSnapshot{ID: "tenant-1"}
	server := &ServerSnapshot{OwnerID: "tenant-1"}

	dec := Authorize(owner, server, PlanCounters{BackupCount: 0, MaxBackups: 3}, ActionCreateBackup)
	assert.True(t, dec.Allowed)

	dec = Authorize(owner, server, PlanCounters{BackupCount: 3, MaxBackups: 3}, ActionCreateBackup)
	assert.False(t, dec.Allowed)
	assert.Equal(t, DenyBackupQuota, dec.Reason)

	// Suspension blocks the create family just like control.
	dec = Authorize(owner, &ServerSnapshot{OwnerID: "tenant-1", Suspended: true}, PlanCounters{MaxBackups: 3}, ActionCreateBackup)
	assert.False(t, dec.Allowed)
	assert.Equal(t, DenySuspended, dec.Reason)
}

func TestAuthorizeCreateDatabase(t *testing.T) {
	owner := ActorSnapshot{ID: "tenant-1"}
	server := &ServerSnapshot{OwnerID: "tenant-1"}

	dec := Authorize(owner, server, PlanCounters{MaxDatabases: 1}, ActionCreateDatabase)
	assert.True(t, dec.Allowed)

	dec = Authorize(owner, server, PlanCounters{MaxDatabases: 0}, ActionCreateDatabase)
	assert.False(t, dec.Allowed)
	assert.Equal(t, DenyDatabaseQuota, dec.Reason)
}

func TestAuthorizeDeleteNotBlockedBySuspension(t *testing.T) {
	owner := ActorSnapshot{ID: "tenant-1"}
	suspended := &ServerSnapshot{OwnerID: "tenant-1", Suspended: true}

	dec := Authorize(owner, suspended, PlanCounters{}, ActionDelete)
	assert.True(t, dec.Allowed)
}

func TestAuthorizeNilServerContext(t *testing.T) {
	owner := ActorSnapshot{ID: "tenant-1"}

	// Only account-level create works without a server.
	dec := Authorize(owner, nil, PlanCounters{}, ActionControl)
	assert.False(t, dec.Allowed)
	assert.Equal(t, DenyNoServerContext, dec.Reason)
}

func TestDenialErrorMapping(t *testing.T) {
	err := denialError(ActionCreate, deny(DenyServerQuota))
	require.Equal(t, CodeQuotaExceeded, CodeOf(err))

	err = denialError(ActionCreateBackup, deny(DenyBackupQuota))
	require.Equal(t, CodeQuotaExceeded, CodeOf(err))

	err = denialError(ActionControl, deny(DenySuspended))
	require.Equal(t, CodeNotAuthorized, CodeOf(err))

	err = denialError(ActionView, deny(DenyNotOwner))
	require.Equal(t, CodeNotAuthorized, CodeOf(err))
}
