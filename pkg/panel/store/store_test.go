package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wardenhq/warden/pkg/panel/models"
)

func newTestStore(t *testing.T) *GORMStore {
	t.Helper()
	st, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "panel.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedUser(t *testing.T, st *GORMStore, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		PasswordHash: "x",
		Role:         string(models.RoleUser),
		Enabled:      true,
	}
	_, err := st.CreateUser(context.Background(), user)
	require.NoError(t, err)
	return user
}

func seedNode(t *testing.T, st *GORMStore, name string) *models.Node {
	t.Helper()
	node := &models.Node{
		Name:     name,
		Capacity: models.Resources{MemoryMB: 8192, CPUPercent: 800, DiskMB: 51200},
		Active:   true,
		Public:   true,
	}
	_, err := st.CreateNode(context.Background(), node)
	require.NoError(t, err)
	return node
}

func seedServer(t *testing.T, st *GORMStore, owner *models.User, node *models.Node, name string, port int) *models.Server {
	t.Helper()
	server := &models.Server{
		Name:    name,
		OwnerID: owner.ID,
		NodeID:  node.ID,
		Limits:  models.Resources{MemoryMB: 1024, CPUPercent: 100, DiskMB: 2048},
		Port:    port,
		State:   string(models.StateInstalling),
	}
	_, err := st.CreateServer(context.Background(), server, nil)
	require.NoError(t, err)
	return server
}

func TestValidateCredentials(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = st.CreateUser(ctx, &models.User{
		Username:     "alice",
		PasswordHash: string(hash),
		Enabled:      true,
	})
	require.NoError(t, err)

	user, err := st.ValidateCredentials(ctx, "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = st.ValidateCredentials(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	// Unknown users get the same error as wrong passwords.
	_, err = st.ValidateCredentials(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestValidateCredentialsDisabledUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = st.CreateUser(ctx, &models.User{
		Username:     "banned",
		PasswordHash: string(hash),
		Enabled:      false,
	})
	require.NoError(t, err)

	// Disabled only surfaces after the password checks out.
	_, err = st.ValidateCredentials(ctx, "banned", "pw")
	assert.ErrorIs(t, err, models.ErrUserDisabled)

	_, err = st.ValidateCredentials(ctx, "banned", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestEnsureAdminUserGeneratesPasswordOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	password, err := st.EnsureAdminUser(ctx, "", "", "")
	require.NoError(t, err)
	require.NotEmpty(t, password)

	admin, err := st.ValidateCredentials(ctx, "admin", password)
	require.NoError(t, err)
	assert.Equal(t, string(models.RoleAdmin), admin.Role)

	// Second call is a no-op and never returns a password again.
	password, err = st.EnsureAdminUser(ctx, "admin", "", "")
	require.NoError(t, err)
	assert.Empty(t, password)
}

func TestEnsureAdminUserUsesConfiguredHash(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("configured"), bcrypt.MinCost)
	require.NoError(t, err)

	password, err := st.EnsureAdminUser(ctx, "root", "ops@example.com", string(hash))
	require.NoError(t, err)
	assert.Empty(t, password)

	_, err = st.ValidateCredentials(ctx, "root", "configured")
	require.NoError(t, err)
}

func TestUpdateUserFields(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, st, "bob")

	err := st.UpdateUserFields(ctx, user.ID, map[string]any{
		"email":   "bob@example.com",
		"enabled": false,
	})
	require.NoError(t, err)

	updated, err := st.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", updated.Email)
	assert.False(t, updated.Enabled)

	// Empty updates are a no-op, not an error.
	require.NoError(t, st.UpdateUserFields(ctx, user.ID, nil))

	err = st.UpdateUserFields(ctx, "missing", map[string]any{"enabled": true})
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "carol")

	_, err := st.CreateUser(context.Background(), &models.User{
		Username:     "carol",
		PasswordHash: "x",
	})
	assert.ErrorIs(t, err, models.ErrDuplicateUser)
}

func TestCreateServerDuplicatePort(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, st, "owner")
	node := seedNode(t, st, "node-a")

	seedServer(t, st, owner, node, "one", 25565)

	_, err := st.CreateServer(ctx, &models.Server{
		Name:    "two",
		OwnerID: owner.ID,
		NodeID:  node.ID,
		Port:    25565,
		State:   string(models.StateInstalling),
	}, nil)
	assert.ErrorIs(t, err, models.ErrPortTaken)
}

func TestCreateServerRollsBackEventOnPortConflict(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, st, "owner")
	node := seedNode(t, st, "node-a")

	seedServer(t, st, owner, node, "one", 25565)

	loser := &models.Server{
		Name:    "two",
		OwnerID: owner.ID,
		NodeID:  node.ID,
		Port:    25565,
		State:   string(models.StateInstalling),
	}
	event := &models.LifecycleEvent{
		Actor:    string(models.ActorUser),
		Severity: string(models.SeverityInfo),
		Message:  "created",
	}
	_, err := st.CreateServer(ctx, loser, event)
	require.ErrorIs(t, err, models.ErrPortTaken)

	events, err := st.ListEventsForServer(ctx, loser.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, events, "failed insert must not leave an event behind")
}

func TestCommitServerStateGuard(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, st, "owner")
	node := seedNode(t, st, "node-a")
	server := seedServer(t, st, owner, node, "game", 25565)

	err := st.CommitServerState(ctx, server.ID, models.StateInstalling, models.StateStopped, nil)
	require.NoError(t, err)

	// A commit against a state the row no longer holds fails stale and
	// writes nothing.
	err = st.CommitServerState(ctx, server.ID, models.StateInstalling, models.StateStopped, nil)
	assert.ErrorIs(t, err, models.ErrStaleState)

	current, err := st.GetServer(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateStopped, current.GetState())

	err = st.CommitServerState(ctx, "missing", models.StateStopped, models.StateStarting, nil)
	assert.ErrorIs(t, err, models.ErrServerNotFound)
}

func TestDeleteServerFreesPortAndKeepsHistory(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, st, "owner")
	node := seedNode(t, st, "node-a")
	server := seedServer(t, st, owner, node, "game", 25565)

	event := &models.LifecycleEvent{
		Actor:    string(models.ActorUser),
		Severity: string(models.SeverityInfo),
		Message:  "decommissioned",
	}
	require.NoError(t, st.DeleteServer(ctx, server.ID, event))

	_, err := st.GetServer(ctx, server.ID)
	assert.ErrorIs(t, err, models.ErrServerNotFound)

	ports, err := st.ListAllocatedPorts(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ports, 25565)

	// The event trail outlives the server.
	events, err := st.ListEventsForServer(ctx, server.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "decommissioned", events[0].Message)
}

func TestDeleteNodeInUse(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, st, "owner")
	node := seedNode(t, st, "node-a")
	server := seedServer(t, st, owner, node, "game", 25565)

	err := st.DeleteNode(ctx, node.ID)
	assert.ErrorIs(t, err, models.ErrNodeInUse)

	require.NoError(t, st.DeleteServer(ctx, server.ID, nil))
	require.NoError(t, st.DeleteNode(ctx, node.ID))
}

func TestNodeCommittedUsage(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, st, "owner")
	node := seedNode(t, st, "node-a")
	other := seedNode(t, st, "node-b")

	usage, err := st.NodeCommittedUsage(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Resources{}, usage)

	seedServer(t, st, owner, node, "one", 25565)
	seedServer(t, st, owner, node, "two", 25566)
	seedServer(t, st, owner, other, "elsewhere", 25567)

	usage, err = st.NodeCommittedUsage(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Resources{MemoryMB: 2048, CPUPercent: 200, DiskMB: 4096}, usage)
}

func TestListSchedulableNodesFilters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	schedulable := seedNode(t, st, "ok")

	inactive := seedNode(t, st, "inactive")
	inactive.Active = false
	require.NoError(t, st.UpdateNode(ctx, inactive))

	private := seedNode(t, st, "private")
	private.Public = false
	require.NoError(t, st.UpdateNode(ctx, private))

	maintenance := seedNode(t, st, "maintenance")
	maintenance.MaintenanceMode = true
	require.NoError(t, st.UpdateNode(ctx, maintenance))

	nodes, err := st.ListSchedulableNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, schedulable.ID, nodes[0].ID)
}

func TestListEventsForServerOrderAndLimit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, st, "owner")
	node := seedNode(t, st, "node-a")
	server := seedServer(t, st, owner, node, "game", 25565)

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		err := st.AppendEvent(ctx, &models.LifecycleEvent{
			ServerID:  server.ID,
			Actor:     string(models.ActorSystem),
			Severity:  string(models.SeverityInfo),
			Message:   fmt.Sprintf("event-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	events, err := st.ListEventsForServer(ctx, server.ID, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "event-4", events[0].Message)
	assert.Equal(t, "event-3", events[1].Message)

	all, err := st.ListEventsForServer(ctx, server.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
