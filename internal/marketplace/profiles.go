package marketplace

import (
	"context"

	"go.uber.org/zap"

	"campusgig/internal/errors"
	"campusgig/internal/model"
	"campusgig/internal/storage"
)

// ProfileService reads and seeds user profiles. Identity comes from the
// external auth service; the first sight of an authenticated user creates
// their row. Aggregates are written only by the storage layer.
type ProfileService struct {
	store storage.Store
	log   *zap.Logger
}

// NewProfileService returns a configured ProfileService.
func NewProfileService(store storage.Store, log *zap.Logger) *ProfileService {
	return &ProfileService{store: store, log: log}
}

// EnsureProfileInput carries the identity fields of an authenticated user.
type EnsureProfileInput struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName *string `json:"displayName"`
	AvatarURL   string  `json:"avatarUrl"`
}

// Ensure creates the profile on first sight and returns the stored row.
func (s *ProfileService) Ensure(ctx context.Context, in EnsureProfileInput) (*model.Profile, error) {
	if in.ID == "" {
		return nil, errors.NewValidationf("profile id must not be empty")
	}
	return s.store.EnsureProfile(ctx, &model.Profile{
		ID:          in.ID,
		Email:       in.Email,
		DisplayName: in.DisplayName,
		AvatarURL:   in.AvatarURL,
	})
}

// Get returns a profile by user id.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}
