// Package storage defines the persistence contract for the marketplace.
//
// A Store is constructed once at startup and passed into every service; there
// is no package-level client. Two implementations exist: memory (tests,
// single-process) and postgres (production).
//
// Conditional transitions (AssignJob, CompleteJob, CancelJob) are
// compare-and-swap writes: they re-check the job's current status inside the
// same atomic operation that changes it, and return ErrStatusConflict when the
// status moved since the caller last looked. Services translate that conflict
// into the operation-specific error.
package storage

import (
	"context"
	"time"

	"campusgig/internal/model"
)

// Store is the full persistence surface.
type Store interface {
	JobStore
	ProfileStore
	RatingStore
	NotificationStore
}

// JobStore persists jobs and runs the lifecycle transitions.
type JobStore interface {
	// CreateJob inserts a new job. ID, status, and timestamps must already be
	// populated by the caller.
	CreateJob(ctx context.Context, job *model.Job) error

	// GetJob returns a job by ID, or ErrNotFound.
	GetJob(ctx context.Context, id string) (*model.Job, error)

	// ListFeed returns all open and in_progress jobs, newest first.
	ListFeed(ctx context.Context) ([]model.Job, error)

	// ListJobsByPoster returns every job created by posterID, newest first.
	ListJobsByPoster(ctx context.Context, posterID string) ([]model.Job, error)

	// ListJobsByHelper returns every job assigned to helperID (past or
	// present assignment, i.e. in_progress or completed), newest first.
	ListJobsByHelper(ctx context.Context, helperID string) ([]model.Job, error)

	// AssignJob moves an open job to in_progress and sets its assignee, as a
	// single compare-and-swap. ErrStatusConflict when the job is no longer
	// open; ErrNotFound when it does not exist.
	AssignJob(ctx context.Context, jobID, helperID string) (*model.Job, error)

	// CompleteJob moves an in_progress job to completed and increments the
	// assignee's TasksCompleted in the same commit. ErrStatusConflict when
	// the job is not in_progress; ErrNotFound when it does not exist.
	CompleteJob(ctx context.Context, jobID string) (*model.Job, error)

	// CancelJob moves an open or in_progress job to cancelled and clears its
	// assignee. ErrStatusConflict when the job is already terminal;
	// ErrNotFound when it does not exist.
	CancelJob(ctx context.Context, jobID string) (*model.Job, error)
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	// EnsureProfile inserts the profile if its ID is unseen and returns the
	// stored row either way. Aggregate fields on the argument are ignored.
	EnsureProfile(ctx context.Context, p *model.Profile) (*model.Profile, error)

	// GetProfile returns a profile by user ID, or ErrNotFound.
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
}

// RatingStore persists ratings and maintains the rated user's aggregate.
type RatingStore interface {
	// CreateRating inserts the rating and folds its value into the rated
	// user's AverageRating/TotalRatings against the currently stored
	// aggregate, atomically. A second rating for the same (job, type) pair
	// returns ErrDuplicateRating and leaves the aggregate untouched.
	CreateRating(ctx context.Context, r *model.Rating) error

	// ListRatingsForUser returns ratings received by userID, newest first.
	ListRatingsForUser(ctx context.Context, userID string) ([]model.Rating, error)

	// ListRatingsForJob returns the ratings recorded for a job (at most one
	// per direction).
	ListRatingsForJob(ctx context.Context, jobID string) ([]model.Rating, error)
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error

	// GetNotification returns a notification by ID, or ErrNotFound.
	GetNotification(ctx context.Context, id string) (*model.Notification, error)

	// ListNotifications returns userID's notifications, newest first.
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)

	// MarkNotificationRead sets is_read. Marking an already-read
	// notification is a no-op, not an error.
	MarkNotificationRead(ctx context.Context, id string) error

	// CountUnread returns the number of unread notifications for userID.
	CountUnread(ctx context.Context, userID string) (int, error)

	// PurgeReadNotifications deletes read notifications created before the
	// cutoff and reports how many were removed. Unread rows are never purged.
	PurgeReadNotifications(ctx context.Context, before time.Time) (int64, error)
}
