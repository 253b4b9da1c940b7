package service

import (
	"context"
	"log/slog"
	"time"

	"marketbrief/internal/domain/models"
	"marketbrief/internal/domain/repositories"
)

// ProfileService manages per-user briefing preferences.
type ProfileService struct {
	profileRepo repositories.ProfileRepository
	userRepo    repositories.UserRepository
	logger      *slog.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(
	profileRepo repositories.ProfileRepository,
	userRepo repositories.UserRepository,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
		userRepo:    userRepo,
		logger:      logger,
	}
}

// GetOrCreate returns the user's profile, creating the default row on
// first read. Used by the REST path.
func (s *ProfileService) GetOrCreate(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	if err := s.userRepo.Ensure(ctx, userID); err != nil {
		return nil, err
	}
	profile = models.DefaultProfile(userID)
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.Info("profile created with defaults", "user_id", userID)
	return profile, nil
}

// GetOrDefault returns the persisted profile, or an unpersisted default
// when none exists. Used by the voice tool path, which must not write
// rows for a read.
func (s *ProfileService) GetOrDefault(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return models.DefaultProfile(userID), nil
	}
	return profile, nil
}

// Update sanitizes input onto the enum sets and overwrites the user's
// profile, creating it first when absent.
func (s *ProfileService) Update(ctx context.Context, userID string, input *models.Profile) (*models.Profile, error) {
	existing, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	input.UserID = userID
	models.SanitizeProfileInput(input)
	input.CreatedAt = existing.CreatedAt
	input.UpdatedAt = time.Now()

	if err := s.profileRepo.Update(ctx, input); err != nil {
		return nil, err
	}
	return input, nil
}
