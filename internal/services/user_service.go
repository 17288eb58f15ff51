package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "spendwise/internal/errors"
	"spendwise/internal/models"
)

// userService handles user-related business logic.
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB) UserServicer {
	return &userService{db: db}
}

// EnsureUser returns the local user for an identity-provider subject,
// creating it on first sight and refreshing email and name when they change.
func (s *userService) EnsureUser(externalID, email, name string) (*models.User, error) {
	if externalID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "external id is required")
	}
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.findByExternalID(externalID)
	if err == nil {
		return s.refresh(user, email, name)
	}
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, err
	}

	user = &models.User{
		ExternalID: externalID,
		Email:      email,
		Name:       name,
	}
	if err := s.db.Create(user).Error; err != nil {
		// A concurrent request may have provisioned the same subject.
		if existing, findErr := s.findByExternalID(externalID); findErr == nil {
			return existing, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

func (s *userService) refresh(user *models.User, email, name string) (*models.User, error) {
	updates := map[string]interface{}{}
	if email != "" && email != user.Email {
		updates["email"] = email
	}
	if name != "" && name != user.Name {
		updates["name"] = name
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

func (s *userService) findByExternalID(externalID string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("external_id = ?", externalID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}
