package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/wardenhq/warden/pkg/panel/models"
)

func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) (string, error) {
	if err := user.Validate(); err != nil {
		return "", err
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = string(models.RoleUser)
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", models.ErrDuplicateUser
		}
		return "", err
	}
	return user.ID, nil
}

func (s *GORMStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &user, nil
}

func (s *GORMStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &user, nil
}

// ValidateCredentials checks a username/password pair against the
// stored bcrypt hash. The same ErrInvalidCredentials is returned for
// unknown users and wrong passwords; ErrUserDisabled only surfaces
// after the password checks out.
func (s *GORMStore) ValidateCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, models.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	if !user.Enabled {
		return nil, models.ErrUserDisabled
	}
	return user, nil
}

func (s *GORMStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := s.db.WithContext(ctx).Order("username").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *GORMStore) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Update("last_login", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// EnsureAdminUser makes sure an enabled admin account exists.
//
// If the user already exists this is a no-op. If passwordHash is empty
// a random password is generated and returned exactly once so the
// operator can record it; otherwise the provided hash is used and the
// returned password is empty.
func (s *GORMStore) EnsureAdminUser(ctx context.Context, username, email, passwordHash string) (string, error) {
	if username == "" {
		username = "admin"
	}

	if _, err := s.GetUser(ctx, username); err == nil {
		return "", nil
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return "", err
	}

	var generated string
	if passwordHash == "" {
		raw := make([]byte, 16)
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("failed to generate admin password: %w", err)
		}
		generated = hex.EncodeToString(raw)

		hash, err := bcrypt.GenerateFromPassword([]byte(generated), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("failed to hash admin password: %w", err)
		}
		passwordHash = string(hash)
	}

	admin := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Email:        email,
		Role:         string(models.RoleAdmin),
		Enabled:      true,
	}
	if _, err := s.CreateUser(ctx, admin); err != nil {
		return "", err
	}
	return generated, nil
}

// UpdateUserFields applies a partial update to a user row. Callers pass
// column names as keys; unknown columns are a caller bug.
func (s *GORMStore) UpdateUserFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user account. Users who still own servers cannot
// be deleted; the servers must be decommissioned first so their node
// capacity and ports are released through the normal path.
func (s *GORMStore) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Server{}).Where("owner_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return models.ErrUserInUse
		}

		result := tx.Where("id = ?", id).Delete(&models.User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrUserNotFound
		}
		return nil
	})
}

// SetSubscriptionActive flips the billing subsystem's subscription flag.
// Warden itself never calls this outside of the billing callback path.
func (s *GORMStore) SetSubscriptionActive(ctx context.Context, userID string, active bool) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("subscription_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
