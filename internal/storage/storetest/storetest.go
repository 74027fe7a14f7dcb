// Package storetest exercises the storage.Store contract. Both backends run
// the same suite: memory unconditionally, postgres when an integration
// database is configured.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusgig/internal/errors"
	"campusgig/internal/model"
	"campusgig/internal/storage"
)

// Run executes the full contract suite. open must return an empty store;
// it is called once per subtest.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Run("JobLifecycle", func(t *testing.T) { testJobLifecycle(t, open(t)) })
	t.Run("AssignConflicts", func(t *testing.T) { testAssignConflicts(t, open(t)) })
	t.Run("AssignRace", func(t *testing.T) { testAssignRace(t, open(t)) })
	t.Run("CancelSemantics", func(t *testing.T) { testCancelSemantics(t, open(t)) })
	t.Run("Listings", func(t *testing.T) { testListings(t, open(t)) })
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, open(t)) })
	t.Run("RatingMerge", func(t *testing.T) { testRatingMerge(t, open(t)) })
	t.Run("RatingConcurrentMerge", func(t *testing.T) { testRatingConcurrentMerge(t, open(t)) })
	t.Run("Notifications", func(t *testing.T) { testNotifications(t, open(t)) })
	t.Run("NotificationPurge", func(t *testing.T) { testNotificationPurge(t, open(t)) })
}

func newJob(posterID string, createdAt time.Time) *model.Job {
	return &model.Job{
		ID:          uuid.New().String(),
		Title:       "move boxes to third floor",
		Description: "two flights of stairs, no elevator",
		Price:       1500,
		Urgency:     "today",
		Location:    "north dorms",
		Category:    "moving",
		Status:      model.StatusOpen,
		PosterID:    posterID,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func newRating(jobID, raterID, ratedID string, rt model.RatingType, value int) *model.Rating {
	return &model.Rating{
		ID:          uuid.New().String(),
		JobID:       jobID,
		RaterID:     raterID,
		RatedUserID: ratedID,
		Type:        rt,
		Value:       value,
		CreatedAt:   time.Now().UTC(),
	}
}

func newNotification(userID, ntype string, createdAt time.Time) *model.Notification {
	return &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      ntype,
		RefID:     uuid.New().String(),
		CreatedAt: createdAt,
	}
}

// assertAssigneeInvariant checks: assignee set ⇔ status ∈ {in_progress, completed}.
func assertAssigneeInvariant(t *testing.T, j *model.Job) {
	t.Helper()
	if model.HasAssignee(j.Status) {
		assert.NotNil(t, j.AssignedTo, "status %s requires an assignee", j.Status)
	} else {
		assert.Nil(t, j.AssignedTo, "status %s forbids an assignee", j.Status)
	}
}

func testJobLifecycle(t *testing.T, s storage.Store) {
	ctx := context.Background()
	poster := uuid.New().String()
	helper := uuid.New().String()

	job := newJob(poster, time.Now().UTC())
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, model.StatusOpen, got.Status)
	assertAssigneeInvariant(t, got)

	_, err = s.GetJob(ctx, uuid.New().String())
	assert.ErrorIs(t, err, errors.ErrNotFound)

	assigned, err := s.AssignJob(ctx, job.ID, helper)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, assigned.Status)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, helper, *assigned.AssignedTo)
	assertAssigneeInvariant(t, assigned)

	completed, err := s.CompleteJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, completed.Status)
	require.NotNil(t, completed.AssignedTo)
	assert.Equal(t, helper, *completed.AssignedTo)
	assertAssigneeInvariant(t, completed)

	// Completion counts toward the helper's profile in the same commit.
	prof, err := s.GetProfile(ctx, helper)
	require.NoError(t, err)
	assert.Equal(t, 1, prof.TasksCompleted)

	// Terminal: no further transitions.
	_, err = s.CompleteJob(ctx, job.ID)
	assert.ErrorIs(t, err, errors.ErrStatusConflict)
	_, err = s.CancelJob(ctx, job.ID)
	assert.ErrorIs(t, err, errors.ErrStatusConflict)
}

func testAssignConflicts(t *testing.T, s storage.Store) {
	ctx := context.Background()
	poster := uuid.New().String()

	job := newJob(poster, time.Now().UTC())
	require.NoError(t, s.CreateJob(ctx, job))

	_, err := s.AssignJob(ctx, uuid.New().String(), uuid.New().String())
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = s.AssignJob(ctx, job.ID, uuid.New().String())
	require.NoError(t, err)

	// Second assignment finds the job no longer open.
	_, err = s.AssignJob(ctx, job.ID, uuid.New().String())
	assert.ErrorIs(t, err, errors.ErrStatusConflict)

	// Completing a job that is not in_progress conflicts too.
	open := newJob(poster, time.Now().UTC())
	require.NoError(t, s.CreateJob(ctx, open))
	_, err = s.CompleteJob(ctx, open.ID)
	assert.ErrorIs(t, err, errors.ErrStatusConflict)
}

func testAssignRace(t *testing.T, s storage.Store) {
	ctx := context.Background()
	job := newJob(uuid.New().String(), time.Now().UTC())
	require.NoError(t, s.CreateJob(ctx, job))

	const contenders = 32

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			helper := uuid.New().String()
			<-start
			_, err := s.AssignJob(ctx, job.ID, helper)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, helper)
			case errors.Is(err, errors.ErrStatusConflict):
				conflicts++
			default:
				t.Errorf("unexpected assign error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1, "exactly one contender may win the assignment")
	assert.Equal(t, contenders-1, conflicts)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, winners[0], *got.AssignedTo)
	assert.Equal(t, model.StatusInProgress, got.Status)
}

func testCancelSemantics(t *testing.T, s storage.Store) {
	ctx := context.Background()
	poster := uuid.New().String()

	// Cancel from open.
	open := newJob(poster, time.Now().UTC())
	require.NoError(t, s.CreateJob(ctx, open))
	cancelled, err := s.CancelJob(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assertAssigneeInvariant(t, cancelled)

	// Cancel from in_progress clears the assignee.
	taken := newJob(poster, time.Now().UTC())
	require.NoError(t, s.CreateJob(ctx, taken))
	_, err = s.AssignJob(ctx, taken.ID, uuid.New().String())
	require.NoError(t, err)
	cancelled, err = s.CancelJob(ctx, taken.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.AssignedTo)

	// Cancel is not repeatable.
	_, err = s.CancelJob(ctx, taken.ID)
	assert.ErrorIs(t, err, errors.ErrStatusConflict)

	_, err = s.CancelJob(ctx, uuid.New().String())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func testListings(t *testing.T, s storage.Store) {
	ctx := context.Background()
	poster := uuid.New().String()
	other := uuid.New().String()
	helper := uuid.New().String()

	base := time.Now().UTC().Add(-time.Minute)
	first := newJob(poster, base)
	second := newJob(poster, base.Add(time.Second))
	third := newJob(other, base.Add(2*time.Second))
	for _, j := range []*model.Job{first, second, third} {
		require.NoError(t, s.CreateJob(ctx, j))
	}

	// Feed: everything is open, newest first.
	feed, err := s.ListFeed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, third.ID, feed[0].ID)
	assert.Equal(t, second.ID, feed[1].ID)
	assert.Equal(t, first.ID, feed[2].ID)

	// Assigned jobs stay in the feed; completed and cancelled drop out.
	_, err = s.AssignJob(ctx, second.ID, helper)
	require.NoError(t, err)
	_, err = s.CompleteJob(ctx, second.ID)
	require.NoError(t, err)
	_, err = s.CancelJob(ctx, third.ID)
	require.NoError(t, err)

	feed, err = s.ListFeed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, first.ID, feed[0].ID)

	mine, err := s.ListJobsByPoster(ctx, poster)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)

	gigs, err := s.ListJobsByHelper(ctx, helper)
	require.NoError(t, err)
	require.Len(t, gigs, 1)
	assert.Equal(t, second.ID, gigs[0].ID)

	none, err := s.ListJobsByHelper(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testProfiles(t *testing.T, s storage.Store) {
	ctx := context.Background()
	id := uuid.New().String()

	_, err := s.GetProfile(ctx, id)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	name := "Sam"
	created, err := s.EnsureProfile(ctx, &model.Profile{
		ID:          id,
		Email:       "sam@campus.edu",
		DisplayName: &name,
		AvatarURL:   "https://cdn.campus.edu/sam.png",
		CreatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "sam@campus.edu", created.Email)
	assert.Zero(t, created.TotalRatings)

	// Ensure is idempotent and never resets aggregates.
	job := newJob(uuid.New().String(), time.Now().UTC())
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.CreateRating(ctx, newRating(job.ID, job.PosterID, id, model.RatingPosterToHelper, 4)))

	again, err := s.EnsureProfile(ctx, &model.Profile{ID: id, Email: "other@campus.edu", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.Equal(t, "sam@campus.edu", again.Email, "first identity write wins")
	assert.Equal(t, 1, again.TotalRatings)
	assert.InDelta(t, 4.0, again.AverageRating, 1e-9)
}

func testRatingMerge(t *testing.T, s storage.Store) {
	ctx := context.Background()
	poster := uuid.New().String()
	helper := uuid.New().String()

	job := newJob(poster, time.Now().UTC())
	require.NoError(t, s.CreateJob(ctx, job))

	// Both directions are allowed once each.
	require.NoError(t, s.CreateRating(ctx, newRating(job.ID, poster, helper, model.RatingPosterToHelper, 5)))
	require.NoError(t, s.CreateRating(ctx, newRating(job.ID, helper, poster, model.RatingHelperToPoster, 3)))

	err := s.CreateRating(ctx, newRating(job.ID, poster, helper, model.RatingPosterToHelper, 1))
	assert.ErrorIs(t, err, errors.ErrDuplicateRating)

	helperProf, err := s.GetProfile(ctx, helper)
	require.NoError(t, err)
	assert.Equal(t, 1, helperProf.TotalRatings)
	assert.InDelta(t, 5.0, helperProf.AverageRating, 1e-9, "rejected duplicate must not touch the aggregate")

	posterProf, err := s.GetProfile(ctx, poster)
	require.NoError(t, err)
	assert.Equal(t, 1, posterProf.TotalRatings)
	assert.InDelta(t, 3.0, posterProf.AverageRating, 1e-9)

	// A second job's rating folds into the running average.
	job2 := newJob(poster, time.Now().UTC())
	require.NoError(t, s.CreateJob(ctx, job2))
	require.NoError(t, s.CreateRating(ctx, newRating(job2.ID, poster, helper, model.RatingPosterToHelper, 2)))

	helperProf, err = s.GetProfile(ctx, helper)
	require.NoError(t, err)
	assert.Equal(t, 2, helperProf.TotalRatings)
	assert.InDelta(t, 3.5, helperProf.AverageRating, 1e-9)

	ratings, err := s.ListRatingsForUser(ctx, helper)
	require.NoError(t, err)
	require.Len(t, ratings, 2)
	assert.Equal(t, job2.ID, ratings[0].JobID)

	forJob, err := s.ListRatingsForJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, forJob, 2)
}

func testRatingConcurrentMerge(t *testing.T, s storage.Store) {
	ctx := context.Background()
	rated := uuid.New().String()

	const n = 24
	jobs := make([]*model.Job, n)
	for i := range jobs {
		jobs[i] = newJob(uuid.New().String(), time.Now().UTC())
		require.NoError(t, s.CreateJob(ctx, jobs[i]))
	}

	// Values 1..5 repeating; the final aggregate must be their exact mean
	// regardless of merge interleaving.
	var sum int
	values := make([]int, n)
	for i := range values {
		values[i] = (i % 5) + 1
		sum += values[i]
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			r := newRating(jobs[i].ID, jobs[i].PosterID, rated, model.RatingPosterToHelper, values[i])
			errCh <- s.CreateRating(ctx, r)
		}(i)
	}
	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	prof, err := s.GetProfile(ctx, rated)
	require.NoError(t, err)
	assert.Equal(t, n, prof.TotalRatings)
	assert.InDelta(t, float64(sum)/float64(n), prof.AverageRating, 1e-6)
}

func testNotifications(t *testing.T, s storage.Store) {
	ctx := context.Background()
	user := uuid.New().String()

	base := time.Now().UTC().Add(-time.Minute)
	first := newNotification(user, model.NotifJobAssigned, base)
	second := newNotification(user, model.NotifJobCompleted, base.Add(time.Second))
	other := newNotification(uuid.New().String(), model.NotifRatingReceived, base)
	for _, n := range []*model.Notification{first, second, other} {
		require.NoError(t, s.CreateNotification(ctx, n))
	}

	list, err := s.ListNotifications(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.False(t, list[0].IsRead)

	count, err := s.CountUnread(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.MarkNotificationRead(ctx, first.ID))
	// Marking twice is a no-op.
	require.NoError(t, s.MarkNotificationRead(ctx, first.ID))

	count, err = s.CountUnread(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = s.MarkNotificationRead(ctx, uuid.New().String())
	assert.ErrorIs(t, err, errors.ErrNotFound)

	got, err := s.GetNotification(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
}

func testNotificationPurge(t *testing.T, s storage.Store) {
	ctx := context.Background()
	user := uuid.New().String()

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()

	oldRead := newNotification(user, model.NotifJobAssigned, old)
	oldUnread := newNotification(user, model.NotifJobCompleted, old)
	newRead := newNotification(user, model.NotifJobCancelled, recent)
	for _, n := range []*model.Notification{oldRead, oldUnread, newRead} {
		require.NoError(t, s.CreateNotification(ctx, n))
	}
	require.NoError(t, s.MarkNotificationRead(ctx, oldRead.ID))
	require.NoError(t, s.MarkNotificationRead(ctx, newRead.ID))

	purged, err := s.PurgeReadNotifications(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = s.GetNotification(ctx, oldRead.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound, "old read notification is purged")

	_, err = s.GetNotification(ctx, oldUnread.ID)
	assert.NoError(t, err, "unread notifications are never purged")

	_, err = s.GetNotification(ctx, newRead.ID)
	assert.NoError(t, err, "recent read notifications survive")
}
