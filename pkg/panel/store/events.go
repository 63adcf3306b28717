package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wardenhq/warden/pkg/panel/models"
)

// appendEventTx inserts a lifecycle event inside an existing
// transaction. A nil event is allowed so read-only commits can share
// the transactional helpers.
func appendEventTx(tx *gorm.DB, serverID string, event *models.LifecycleEvent) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.ServerID = serverID
	if event.Source == "" {
		event.Source = "engine"
	}
	if event.Severity == "" {
		event.Severity = string(models.SeverityInfo)
	}
	return tx.Create(event).Error
}

// AppendEvent records a lifecycle event outside of any other write.
// Events are append-only: there is no update or delete counterpart.
func (s *GORMStore) AppendEvent(ctx context.Context, event *models.LifecycleEvent) error {
	return appendEventTx(s.db.WithContext(ctx), event.ServerID, event)
}

// ListEventsForServer returns the server's events newest-first, which
// is the display order for console and audit views. A limit of 0 means
// no limit.
func (s *GORMStore) ListEventsForServer(ctx context.Context, serverID string, limit int) ([]*models.LifecycleEvent, error) {
	q := s.db.WithContext(ctx).
		Where("server_id = ?", serverID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var events []*models.LifecycleEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
