package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrNoMatch indicates that no user metadata row matched the lookup.
var ErrNoMatch = errors.New("users: no metadata match")

const metaKeyMobile = "mobile"

// ServiceConfig describes the dependencies for user metadata lookups.
type ServiceConfig struct {
	Database *gorm.DB
}

// Service resolves users through their metadata attributes.
type Service struct {
	db *gorm.DB
}

// NewService constructs the metadata lookup service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	return &Service{db: cfg.Database}, nil
}

// PatientIDByPhone resolves a phone number to a user id through an exact
// match on the mobile attribute. Returns ErrNoMatch when no row matches.
func (s *Service) PatientIDByPhone(ctx context.Context, phone string) (int64, error) {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return 0, ErrNoMatch
	}

	var meta UserMeta
	err := s.db.WithContext(ctx).
		Where("meta_key = ? AND meta_value = ?", metaKeyMobile, trimmed).
		Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNoMatch
	}
	if err != nil {
		return 0, err
	}
	return meta.UserID, nil
}
