package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wardenhq/warden/pkg/panel/models"
)

func (s *GORMStore) CreateNode(ctx context.Context, node *models.Node) (string, error) {
	if err := node.Validate(); err != nil {
		return "", err
	}
	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(node).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", models.ErrDuplicateNode
		}
		return "", err
	}
	return node.ID, nil
}

func (s *GORMStore) GetNode(ctx context.Context, id string) (*models.Node, error) {
	var node models.Node
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&node).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrNodeNotFound)
	}
	return &node, nil
}

func (s *GORMStore) GetNodeByName(ctx context.Context, name string) (*models.Node, error) {
	var node models.Node
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&node).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrNodeNotFound)
	}
	return &node, nil
}

func (s *GORMStore) ListNodes(ctx context.Context) ([]*models.Node, error) {
	var nodes []*models.Node
	if err := s.db.WithContext(ctx).Order("id").Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

// ListSchedulableNodes returns nodes eligible for automatic placement,
// ordered by id ascending. The stable ordering makes placement
// deterministic and reproducible in tests.
func (s *GORMStore) ListSchedulableNodes(ctx context.Context) ([]*models.Node, error) {
	var nodes []*models.Node
	err := s.db.WithContext(ctx).
		Where("active = ? AND public = ? AND maintenance_mode = ?", true, true, false).
		Order("id").
		Find(&nodes).Error
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (s *GORMStore) UpdateNode(ctx context.Context, node *models.Node) error {
	result := s.db.WithContext(ctx).
		Model(&models.Node{}).
		Where("id = ?", node.ID).
		Updates(map[string]any{
			"name":             node.Name,
			"fqdn":             node.FQDN,
			"memory_mb":        node.Capacity.MemoryMB,
			"cpu_percent":      node.Capacity.CPUPercent,
			"disk_mb":          node.Capacity.DiskMB,
			"active":           node.Active,
			"public":           node.Public,
			"maintenance_mode": node.MaintenanceMode,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNodeNotFound
	}
	return nil
}

func (s *GORMStore) DeleteNode(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Server{}).Where("node_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return models.ErrNodeInUse
		}

		result := tx.Where("id = ?", id).Delete(&models.Node{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrNodeNotFound
		}
		return nil
	})
}

// NodeCommittedUsage sums the resource limits of all servers placed on
// the node. Usage is derived rather than stored so that decommission
// frees capacity without a counter to keep in sync.
func (s *GORMStore) NodeCommittedUsage(ctx context.Context, nodeID string) (models.Resources, error) {
	var usage models.Resources
	err := s.db.WithContext(ctx).
		Model(&models.Server{}).
		Select("COALESCE(SUM(memory_mb), 0) AS memory_mb, COALESCE(SUM(cpu_percent), 0) AS cpu_percent, COALESCE(SUM(disk_mb), 0) AS disk_mb").
		Where("node_id = ?", nodeID).
		Scan(&usage).Error
	if err != nil {
		return models.Resources{}, err
	}
	return usage, nil
}
