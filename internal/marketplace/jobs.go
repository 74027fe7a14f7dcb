// Package marketplace contains the business logic of the task marketplace.
// It is transport-agnostic: the HTTP layer, tests, and any future transport
// all go through the same services.
//
// Every service holds the store handle, the invalidation bus, and a logger.
// Mutations commit at the store first; notifications and cache invalidations
// are side effects of a committed mutation and are non-fatal: a failed side
// effect is logged and the mutation result stands.
package marketplace

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campusgig/internal/bus"
	"campusgig/internal/errors"
	"campusgig/internal/model"
	"campusgig/internal/readcache"
	"campusgig/internal/storage"
)

// JobService owns the job lifecycle: create, the assignment race, completion
// and cancellation.
type JobService struct {
	store    storage.Store
	bus      bus.Bus
	notifier *NotificationService
	log      *zap.Logger
}

// NewJobService returns a configured JobService.
func NewJobService(store storage.Store, b bus.Bus, notifier *NotificationService, log *zap.Logger) *JobService {
	return &JobService{store: store, bus: b, notifier: notifier, log: log}
}

// CreateJobInput carries the poster-supplied fields of a new job.
type CreateJobInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Urgency     string `json:"urgency"`
	Location    string `json:"location"`
	Category    string `json:"category"`
}

// Create posts a new open job for posterID.
func (s *JobService) Create(ctx context.Context, posterID string, in CreateJobInput) (*model.Job, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, errors.NewValidationf("title must not be empty")
	}
	if in.Price <= 0 {
		return nil, errors.NewValidationf("price must be positive, got %d", in.Price)
	}

	// First sight of a poster creates their profile row.
	if _, err := s.store.EnsureProfile(ctx, &model.Profile{ID: posterID}); err != nil {
		return nil, errors.Wrap(err, "ensure poster profile")
	}

	now := time.Now().UTC()
	job := &model.Job{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Price:       in.Price,
		Urgency:     in.Urgency,
		Location:    in.Location,
		Category:    in.Category,
		Status:      model.StatusOpen,
		PosterID:    posterID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.invalidate(ctx, readcache.KeyFeed, readcache.MyJobsKey(posterID))
	return job, nil
}

// Assign claims an open job for helperID. The transition is a
// compare-and-swap at the store: when two helpers race, exactly one wins and
// the other gets ErrAlreadyAssigned. Assigning a cancelled job is
// ErrInvalidTransition: there is no assignment to lose to.
func (s *JobService) Assign(ctx context.Context, jobID, helperID string) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID == helperID {
		return nil, errors.NewValidationf("cannot accept your own job")
	}

	if _, err := s.store.EnsureProfile(ctx, &model.Profile{ID: helperID}); err != nil {
		return nil, errors.Wrap(err, "ensure helper profile")
	}

	assigned, err := s.store.AssignJob(ctx, jobID, helperID)
	if err != nil {
		if errors.Is(err, errors.ErrStatusConflict) {
			return nil, s.assignConflict(ctx, jobID)
		}
		return nil, err
	}

	s.notify(ctx, assigned.PosterID, model.NotifJobAssigned, assigned.ID)
	s.invalidate(ctx,
		readcache.KeyFeed,
		readcache.MyJobsKey(assigned.PosterID),
		readcache.MyGigsKey(helperID),
	)
	return assigned, nil
}

// assignConflict re-reads the job after a CAS miss to decide which error the
// caller should see.
func (s *JobService) assignConflict(ctx context.Context, jobID string) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == model.StatusCancelled {
		return errors.ErrInvalidTransition
	}
	return errors.ErrAlreadyAssigned
}

// Complete marks an in_progress job finished. Only the poster may complete,
// and completion is terminal: it unlocks rating eligibility for both sides.
func (s *JobService) Complete(ctx context.Context, jobID, callerID string) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != callerID {
		return nil, errors.ErrUnauthorized
	}

	completed, err := s.store.CompleteJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, errors.ErrStatusConflict) {
			return nil, errors.ErrInvalidTransition
		}
		return nil, err
	}

	helper := *completed.AssignedTo
	s.notify(ctx, helper, model.NotifJobCompleted, completed.ID)
	s.invalidate(ctx,
		readcache.KeyFeed,
		readcache.MyJobsKey(completed.PosterID),
		readcache.MyGigsKey(helper),
		// Completion bumps the helper's TasksCompleted.
		readcache.ProfileKey(helper),
	)
	return completed, nil
}

// Cancel withdraws an open or in_progress job. Only the poster may cancel.
func (s *JobService) Cancel(ctx context.Context, jobID, callerID string) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != callerID {
		return nil, errors.ErrUnauthorized
	}

	// Cancelling clears the assignee, so remember who to notify.
	var helper string
	if job.AssignedTo != nil {
		helper = *job.AssignedTo
	}

	cancelled, err := s.store.CancelJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, errors.ErrStatusConflict) {
			return nil, errors.ErrInvalidTransition
		}
		return nil, err
	}

	keys := []string{readcache.KeyFeed, readcache.MyJobsKey(cancelled.PosterID)}
	if helper != "" {
		s.notify(ctx, helper, model.NotifJobCancelled, cancelled.ID)
		keys = append(keys, readcache.MyGigsKey(helper))
	}
	s.invalidate(ctx, keys...)
	return cancelled, nil
}

// Get returns a single job.
func (s *JobService) Get(ctx context.Context, jobID string) (*model.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// Feed returns the open and in_progress jobs, newest first.
func (s *JobService) Feed(ctx context.Context) ([]model.Job, error) {
	return s.store.ListFeed(ctx)
}

// MyJobs returns every job userID posted, newest first.
func (s *JobService) MyJobs(ctx context.Context, userID string) ([]model.Job, error) {
	return s.store.ListJobsByPoster(ctx, userID)
}

// MyGigs returns every job userID is or was assigned to, newest first.
func (s *JobService) MyGigs(ctx context.Context, userID string) ([]model.Job, error) {
	return s.store.ListJobsByHelper(ctx, userID)
}

func (s *JobService) notify(ctx context.Context, userID, ntype, refID string) {
	if err := s.notifier.Notify(ctx, userID, ntype, refID); err != nil {
		s.log.Warn("notify failed",
			zap.String("user_id", userID),
			zap.String("type", ntype),
			zap.Error(err))
	}
}

func (s *JobService) invalidate(ctx context.Context, keys ...string) {
	if err := s.bus.Publish(ctx, keys...); err != nil {
		s.log.Warn("publish invalidations failed",
			zap.Strings("keys", keys),
			zap.Error(err))
	}
}
