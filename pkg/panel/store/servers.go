package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wardenhq/warden/pkg/panel/models"
)

func (s *GORMStore) GetServer(ctx context.Context, id string) (*models.Server, error) {
	var server models.Server
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&server).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrServerNotFound)
	}
	return &server, nil
}

func (s *GORMStore) ListServers(ctx context.Context) ([]*models.Server, error) {
	var servers []*models.Server
	if err := s.db.WithContext(ctx).Order("created_at").Find(&servers).Error; err != nil {
		return nil, err
	}
	return servers, nil
}

func (s *GORMStore) ListServersByOwner(ctx context.Context, ownerID string) ([]*models.Server, error) {
	var servers []*models.Server
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at").
		Find(&servers).Error
	if err != nil {
		return nil, err
	}
	return servers, nil
}

func (s *GORMStore) CountServersByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Server{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// CountServers returns the total number of live servers.
func (s *GORMStore) CountServers(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Server{}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// ListAllocatedPorts returns every port held by a live server. Ports of
// decommissioned servers are absent by construction, which is what
// makes them immediately reusable.
func (s *GORMStore) ListAllocatedPorts(ctx context.Context) ([]int, error) {
	var ports []int
	err := s.db.WithContext(ctx).
		Model(&models.Server{}).
		Order("port").
		Pluck("port", &ports).Error
	if err != nil {
		return nil, err
	}
	return ports, nil
}

// CreateServer inserts the server record and its creation event in one
// transaction. The unique index on port is the transactional backstop
// for the check-then-insert port allocation: a concurrent insert of the
// same port fails here with ErrPortTaken instead of violating the
// uniqueness invariant.
func (s *GORMStore) CreateServer(ctx context.Context, server *models.Server, event *models.LifecycleEvent) (string, error) {
	if server.ID == "" {
		server.ID = uuid.New().String()
	}
	if err := server.Validate(); err != nil {
		return "", err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(server).Error; err != nil {
			if isPortConstraintError(err) {
				return models.ErrPortTaken
			}
			if isUniqueConstraintError(err) {
				return models.ErrDuplicateServer
			}
			return err
		}
		return appendEventTx(tx, server.ID, event)
	})
	if err != nil {
		return "", err
	}
	return server.ID, nil
}

// CommitServerState performs the guarded state transition commit: the
// state column is updated only if it still holds the observed `from`
// value, and the lifecycle event is appended in the same transaction.
// Returns ErrStaleState when a concurrent transition won the race, in
// which case nothing is written.
func (s *GORMStore) CommitServerState(ctx context.Context, id string, from, to models.ServerState, event *models.LifecycleEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Server{}).
			Where("id = ? AND state = ?", id, string(from)).
			Updates(map[string]any{
				"state":      string(to),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Either the server is gone or its state moved under us.
			var count int64
			if err := tx.Model(&models.Server{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return models.ErrServerNotFound
			}
			return models.ErrStaleState
		}
		return appendEventTx(tx, id, event)
	})
}

// UpdateServerSettings applies a whole-or-nothing field update together
// with its event. The caller passes only validated, changed columns.
func (s *GORMStore) UpdateServerSettings(ctx context.Context, id string, fields map[string]any, event *models.LifecycleEvent) error {
	if len(fields) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields["updated_at"] = time.Now()
		result := tx.Model(&models.Server{}).Where("id = ?", id).Updates(fields)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrServerNotFound
		}
		return appendEventTx(tx, id, event)
	})
}

// SetServerSuspended overlays or clears the suspension flag. Suspension
// is orthogonal to the lifecycle state machine and never touches the
// state column.
func (s *GORMStore) SetServerSuspended(ctx context.Context, id string, suspended bool, event *models.LifecycleEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Server{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"suspended":  suspended,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrServerNotFound
		}
		return appendEventTx(tx, id, event)
	})
}

// DeleteServer removes the server row and appends the terminal event in
// one transaction. Historical events for the id are retained; only the
// server itself (and with it, its port claim) disappears.
func (s *GORMStore) DeleteServer(ctx context.Context, id string, event *models.LifecycleEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := appendEventTx(tx, id, event); err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Server{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrServerNotFound
		}
		return nil
	})
}

func (s *GORMStore) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Server{}).
		Where("id = ?", id).
		Update("last_activity", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrServerNotFound
	}
	return nil
}
