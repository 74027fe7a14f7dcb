// Package memory provides an in-memory Store. It backs the unit tests and
// works for single-process deployments; one mutex around every operation is
// what makes the conditional transitions and the aggregate merge atomic.
package memory

import (
	"context"
	"sync"
	"time"

	"campusgig/internal/errors"
	"campusgig/internal/model"
)

// Store holds all records in maps guarded by a single RWMutex. Insertion
// order is tracked per collection so listings are deterministic (newest
// first) even when timestamps collide.
type Store struct {
	mu sync.RWMutex

	jobs     map[string]*model.Job
	jobOrder []string

	profiles map[string]*model.Profile

	ratings         map[string]*model.Rating
	ratingOrder     []string
	ratingByJobType map[string]bool

	notifs     map[string]*model.Notification
	notifOrder []string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		jobs:            make(map[string]*model.Job),
		profiles:        make(map[string]*model.Profile),
		ratings:         make(map[string]*model.Rating),
		ratingByJobType: make(map[string]bool),
		notifs:          make(map[string]*model.Notification),
	}
}

// ─── Jobs ────────────────────────────────────────────────────────────────────

func (s *Store) CreateJob(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return errors.Newf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = cloneJob(job)
	s.jobOrder = append(s.jobOrder, job.ID)
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *Store) ListFeed(ctx context.Context) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]model.Job, 0)
	for i := len(s.jobOrder) - 1; i >= 0; i-- {
		j := s.jobs[s.jobOrder[i]]
		if j.Status == model.StatusOpen || j.Status == model.StatusInProgress {
			jobs = append(jobs, *cloneJob(j))
		}
	}
	return jobs, nil
}

func (s *Store) ListJobsByPoster(ctx context.Context, posterID string) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]model.Job, 0)
	for i := len(s.jobOrder) - 1; i >= 0; i-- {
		j := s.jobs[s.jobOrder[i]]
		if j.PosterID == posterID {
			jobs = append(jobs, *cloneJob(j))
		}
	}
	return jobs, nil
}

func (s *Store) ListJobsByHelper(ctx context.Context, helperID string) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]model.Job, 0)
	for i := len(s.jobOrder) - 1; i >= 0; i-- {
		j := s.jobs[s.jobOrder[i]]
		if j.AssignedTo != nil && *j.AssignedTo == helperID {
			jobs = append(jobs, *cloneJob(j))
		}
	}
	return jobs, nil
}

func (s *Store) AssignJob(ctx context.Context, jobID, helperID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	if j.Status != model.StatusOpen {
		return nil, errors.ErrStatusConflict
	}

	helper := helperID
	j.Status = model.StatusInProgress
	j.AssignedTo = &helper
	j.UpdatedAt = time.Now().UTC()
	return cloneJob(j), nil
}

func (s *Store) CompleteJob(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	if j.Status != model.StatusInProgress {
		return nil, errors.ErrStatusConflict
	}

	j.Status = model.StatusCompleted
	j.UpdatedAt = time.Now().UTC()

	// Same commit as the transition: the helper's completion counter.
	p := s.ensureProfileLocked(*j.AssignedTo)
	p.TasksCompleted++

	return cloneJob(j), nil
}

func (s *Store) CancelJob(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	if j.Status != model.StatusOpen && j.Status != model.StatusInProgress {
		return nil, errors.ErrStatusConflict
	}

	j.Status = model.StatusCancelled
	j.AssignedTo = nil
	j.UpdatedAt = time.Now().UTC()
	return cloneJob(j), nil
}

// ─── Profiles ────────────────────────────────────────────────────────────────

func (s *Store) EnsureProfile(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.profiles[p.ID]
	if !ok {
		stored := cloneProfile(p)
		stored.AverageRating = 0
		stored.TotalRatings = 0
		stored.TasksCompleted = 0
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now().UTC()
		}
		s.profiles[p.ID] = stored
		return cloneProfile(stored), nil
	}

	// Identity fields fill in blanks left by aggregate-only skeleton rows;
	// aggregates are never touched here.
	if existing.Email == "" {
		existing.Email = p.Email
	}
	if existing.DisplayName == nil && p.DisplayName != nil {
		name := *p.DisplayName
		existing.DisplayName = &name
	}
	if existing.AvatarURL == "" {
		existing.AvatarURL = p.AvatarURL
	}
	return cloneProfile(existing), nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return cloneProfile(p), nil
}

// ensureProfileLocked returns the stored profile for id, creating a skeleton
// row when the user has never been seen. Caller must hold the write lock.
func (s *Store) ensureProfileLocked(id string) *model.Profile {
	p, ok := s.profiles[id]
	if !ok {
		p = &model.Profile{ID: id, CreatedAt: time.Now().UTC()}
		s.profiles[id] = p
	}
	return p
}

// ─── Ratings ─────────────────────────────────────────────────────────────────

func (s *Store) CreateRating(ctx context.Context, r *model.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.JobID + "/" + string(r.Type)
	if s.ratingByJobType[key] {
		return errors.ErrDuplicateRating
	}

	// Merge against the aggregate as stored right now, in the same critical
	// section as the insert.
	p := s.ensureProfileLocked(r.RatedUserID)
	total := float64(p.TotalRatings)
	p.AverageRating = (p.AverageRating*total + float64(r.Value)) / (total + 1)
	p.TotalRatings++

	s.ratings[r.ID] = cloneRating(r)
	s.ratingOrder = append(s.ratingOrder, r.ID)
	s.ratingByJobType[key] = true
	return nil
}

func (s *Store) ListRatingsForUser(ctx context.Context, userID string) ([]model.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ratings := make([]model.Rating, 0)
	for i := len(s.ratingOrder) - 1; i >= 0; i-- {
		r := s.ratings[s.ratingOrder[i]]
		if r.RatedUserID == userID {
			ratings = append(ratings, *cloneRating(r))
		}
	}
	return ratings, nil
}

func (s *Store) ListRatingsForJob(ctx context.Context, jobID string) ([]model.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ratings := make([]model.Rating, 0)
	for i := len(s.ratingOrder) - 1; i >= 0; i-- {
		r := s.ratings[s.ratingOrder[i]]
		if r.JobID == jobID {
			ratings = append(ratings, *cloneRating(r))
		}
	}
	return ratings, nil
}

// ─── Notifications ───────────────────────────────────────────────────────────

func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notifs[n.ID]; exists {
		return errors.Newf("notification %s already exists", n.ID)
	}
	c := *n
	s.notifs[n.ID] = &c
	s.notifOrder = append(s.notifOrder, n.ID)
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifs[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	c := *n
	return &c, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Notification, 0)
	for i := len(s.notifOrder) - 1; i >= 0; i-- {
		n := s.notifs[s.notifOrder[i]]
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifs[id]
	if !ok {
		return errors.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifs {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *Store) PurgeReadNotifications(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	kept := s.notifOrder[:0]
	for _, id := range s.notifOrder {
		n := s.notifs[id]
		if n.IsRead && n.CreatedAt.Before(before) {
			delete(s.notifs, id)
			purged++
			continue
		}
		kept = append(kept, id)
	}
	s.notifOrder = kept
	return purged, nil
}

// ─── Copy helpers ────────────────────────────────────────────────────────────

// Stored rows never escape: reads and writes exchange copies so callers can
// hold results across later mutations.

func cloneJob(j *model.Job) *model.Job {
	c := *j
	if j.AssignedTo != nil {
		v := *j.AssignedTo
		c.AssignedTo = &v
	}
	return &c
}

func cloneProfile(p *model.Profile) *model.Profile {
	c := *p
	if p.DisplayName != nil {
		v := *p.DisplayName
		c.DisplayName = &v
	}
	return &c
}

func cloneRating(r *model.Rating) *model.Rating {
	c := *r
	if r.Review != nil {
		v := *r.Review
		c.Review = &v
	}
	return &c
}
