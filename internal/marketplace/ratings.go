package marketplace

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campusgig/internal/bus"
	"campusgig/internal/errors"
	"campusgig/internal/model"
	"campusgig/internal/readcache"
	"campusgig/internal/storage"
)

// maxReviewLen caps the optional review text, in runes.
const maxReviewLen = 500

// RatingService records the reciprocal ratings of completed jobs and keeps
// each user's aggregate in step.
type RatingService struct {
	store    storage.Store
	bus      bus.Bus
	notifier *NotificationService
	log      *zap.Logger
}

// NewRatingService returns a configured RatingService.
func NewRatingService(store storage.Store, b bus.Bus, notifier *NotificationService, log *zap.Logger) *RatingService {
	return &RatingService{store: store, bus: b, notifier: notifier, log: log}
}

// CreateRatingInput carries one direction of feedback on a job.
type CreateRatingInput struct {
	JobID       string  `json:"jobId"`
	RatedUserID string  `json:"ratedUserId"`
	Type        string  `json:"ratingType"`
	Value       int     `json:"value"`
	Review      *string `json:"review"`
}

// Create records raterID's rating. The job must be completed, the
// (rater, rated, direction) triple must match the job's poster/helper
// pairing, and each direction can be rated exactly once. On success the
// value is folded into the rated user's aggregate atomically at the store.
func (s *RatingService) Create(ctx context.Context, raterID string, in CreateRatingInput) (*model.Rating, error) {
	rt, err := model.ParseRatingType(in.Type)
	if err != nil {
		return nil, errors.NewValidationf("%s", err)
	}

	job, err := s.store.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.StatusCompleted {
		return nil, errors.ErrInvalidTransition
	}

	// A completed job always has an assignee.
	helper := *job.AssignedTo
	var wantRater, wantRated string
	switch rt {
	case model.RatingPosterToHelper:
		wantRater, wantRated = job.PosterID, helper
	case model.RatingHelperToPoster:
		wantRater, wantRated = helper, job.PosterID
	}
	if raterID != wantRater || in.RatedUserID != wantRated {
		return nil, errors.ErrUnauthorized
	}

	if in.Value < 1 || in.Value > 5 {
		return nil, errors.NewValidationf("rating value must be between 1 and 5, got %d", in.Value)
	}
	if in.Review != nil && utf8.RuneCountInString(*in.Review) > maxReviewLen {
		return nil, errors.NewValidationf("review must not exceed %d characters", maxReviewLen)
	}

	rating := &model.Rating{
		ID:          uuid.New().String(),
		JobID:       job.ID,
		RaterID:     raterID,
		RatedUserID: in.RatedUserID,
		Type:        rt,
		Value:       in.Value,
		Review:      in.Review,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateRating(ctx, rating); err != nil {
		return nil, err
	}

	s.notify(ctx, rating.RatedUserID, model.NotifRatingReceived, rating.ID)
	s.invalidate(ctx, readcache.ProfileKey(rating.RatedUserID))
	return rating, nil
}

// ListForUser returns the ratings userID has received, newest first.
func (s *RatingService) ListForUser(ctx context.Context, userID string) ([]model.Rating, error) {
	return s.store.ListRatingsForUser(ctx, userID)
}

// ListForJob returns the ratings recorded for jobID, at most one per
// direction. Clients use it to hide already-rated directions.
func (s *RatingService) ListForJob(ctx context.Context, jobID string) ([]model.Rating, error) {
	return s.store.ListRatingsForJob(ctx, jobID)
}

func (s *RatingService) notify(ctx context.Context, userID, ntype, refID string) {
	if err := s.notifier.Notify(ctx, userID, ntype, refID); err != nil {
		s.log.Warn("notify failed",
			zap.String("user_id", userID),
			zap.String("type", ntype),
			zap.Error(err))
	}
}

func (s *RatingService) invalidate(ctx context.Context, keys ...string) {
	if err := s.bus.Publish(ctx, keys...); err != nil {
		s.log.Warn("publish invalidations failed",
			zap.Strings("keys", keys),
			zap.Error(err))
	}
}
