package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/pkg/panel/models"
)

func (s *GORMStore) CreatePlan(ctx context.Context, plan *models.Plan) (string, error) {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(plan).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", models.ErrDuplicatePlan
		}
		return "", err
	}
	return plan.ID, nil
}

func (s *GORMStore) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	var plan models.Plan
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrPlanNotFound)
	}
	return &plan, nil
}

func (s *GORMStore) GetPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	var plan models.Plan
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&plan).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrPlanNotFound)
	}
	return &plan, nil
}

func (s *GORMStore) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	var plans []*models.Plan
	if err := s.db.WithContext(ctx).Order("name").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *GORMStore) DeletePlan(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Plan{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrPlanNotFound
	}
	return nil
}
