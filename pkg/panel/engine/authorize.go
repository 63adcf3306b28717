package engine

// Action is an operation an actor can attempt against a server or, for
// the create family, against the tenant's account.
type Action string

const (
	ActionView       Action = "view"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionControl    Action = "control"
	ActionConsole    Action = "console"
	ActionFiles      Action = "files"
	ActionBackups    Action = "backups"
	ActionDatabases  Action = "databases"
	ActionStatistics Action = "statistics"
	ActionRestore    Action = "restore"
	ActionForceDel   Action = "forceDelete"

	ActionCreate         Action = "create"
	ActionCreateBackup   Action = "createBackup"
	ActionCreateDatabase Action = "createDatabase"
)

// DenyReason distinguishes why a request was denied, so callers can map
// denials onto the right typed error (a quota denial is QuotaExceeded,
// everything else NotAuthorized).
type DenyReason string

const (
	DenyNotOwner        DenyReason = "not the server owner"
	DenySuspended       DenyReason = "server is suspended"
	DenyNoSubscription  DenyReason = "no active subscription"
	DenyServerQuota     DenyReason = "server quota reached"
	DenyBackupQuota     DenyReason = "backup quota reached"
	DenyDatabaseQuota   DenyReason = "database quota is zero"
	DenyUnknownAction   DenyReason = "unknown action"
	DenyNoServerContext DenyReason = "action requires a server"
)

// ActorSnapshot is the caller's identity at decision time.
type ActorSnapshot struct {
	ID    string
	Admin bool
}

// ServerSnapshot is the minimal server state the gate needs. Nil server
// context is valid only for the account-level create action.
type ServerSnapshot struct {
	OwnerID   string
	Suspended bool
}

// PlanCounters is the freshly-read quota snapshot. The gate never
// caches these; callers must re-read them per request so a stale quota
// can never authorize an over-limit action.
type PlanCounters struct {
	SubscriptionActive bool
	ServerCount        int
	MaxServers         int
	BackupCount        int
	MaxBackups         int
	MaxDatabases       int
}

// Decision is the gate's verdict.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// adminActions is the fixed set an administrator may always perform.
var adminActions = map[Action]bool{
	ActionView:     true,
	ActionUpdate:   true,
	ActionDelete:   true,
	ActionControl:  true,
	ActionRestore:  true,
	ActionForceDel: true,
}

// ownerReadActions are allowed to the owner unconditionally, even while
// suspended.
var ownerReadActions = map[Action]bool{
	ActionView:       true,
	ActionBackups:    true,
	ActionDatabases:  true,
	ActionStatistics: true,
}

// ownerControlActions are blocked while the server is suspended.
var ownerControlActions = map[Action]bool{
	ActionUpdate:  true,
	ActionControl: true,
	ActionConsole: true,
	ActionFiles:   true,
}

// Authorize is the pure authorization gate. It decides over explicit
// state snapshots passed in by the caller, has no side effects and no
// internal caching, and evaluates its rules in order with first match
// winning:
//
//  1. Admin: always allowed for view/update/delete/control/restore/forceDelete.
//  2. Non-owner, non-admin: denied everything.
//  3. Owner read family (view/backups/databases/statistics): allowed.
//  4. Owner control family (update/control/console/files): allowed
//     unless suspended.
//  5. Owner create: allowed iff subscription active and server count
//     below the plan maximum.
//  6. Owner createBackup: allowed iff control would be allowed and
//     backup count below quota.
//  7. Owner createDatabase: allowed iff control would be allowed and
//     the database quota is nonzero.
//  8. Delete: owner or admin, unconditional; suspension does not block
//     deletion.
func Authorize(actor ActorSnapshot, server *ServerSnapshot, counters PlanCounters, action Action) Decision {
	// Rule 1: admin fast path.
	if actor.Admin && adminActions[action] {
		return allow()
	}

	// Account-level create has no server context.
	if action == ActionCreate {
		if !counters.SubscriptionActive {
			return deny(DenyNoSubscription)
		}
		if counters.ServerCount >= counters.MaxServers {
			return deny(DenyServerQuota)
		}
		return allow()
	}

	if server == nil {
		return deny(DenyNoServerContext)
	}

	isOwner := actor.ID != "" && actor.ID == server.OwnerID

	// Rule 2: strangers get nothing. No public read exists.
	if !isOwner && !actor.Admin {
		return deny(DenyNotOwner)
	}

	if isOwner {
		// Rule 3.
		if ownerReadActions[action] {
			return allow()
		}
		// Rule 4.
		if ownerControlActions[action] {
			if server.Suspended {
				return deny(DenySuspended)
			}
			return allow()
		}
		// Rules 6 and 7 layer on the control check from rule 4.
		switch action {
		case ActionCreateBackup:
			if server.Suspended {
				return deny(DenySuspended)
			}
			if counters.BackupCount >= counters.MaxBackups {
				return deny(DenyBackupQuota)
			}
			return allow()
		case ActionCreateDatabase:
			if server.Suspended {
				return deny(DenySuspended)
			}
			if counters.MaxDatabases <= 0 {
				return deny(DenyDatabaseQuota)
			}
			return allow()
		}
		// Rule 8: deletion is never blocked by suspension.
		if action == ActionDelete {
			return allow()
		}
	}

	return deny(DenyUnknownAction)
}

// denialError maps a gate denial onto the engine error taxonomy. Quota
// denials surface as QuotaExceeded; everything else is NotAuthorized.
func denialError(action Action, d Decision) error {
	switch d.Reason {
	case DenyServerQuota, DenyBackupQuota, DenyDatabaseQuota:
		return NewQuotaExceededError(string(d.Reason))
	default:
		return NewNotAuthorizedError(action, string(d.Reason))
	}
}
