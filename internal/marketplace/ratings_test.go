package marketplace_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusgig/internal/errors"
	"campusgig/internal/marketplace"
	"campusgig/internal/model"
	"campusgig/internal/readcache"
)

// completedJob runs a job through create → assign → complete and returns
// (jobID, posterID, helperID).
func completedJob(t *testing.T, f *fixture) (string, string, string) {
	t.Helper()
	ctx := context.Background()
	poster := uuid.New().String()
	helper := uuid.New().String()

	job, err := f.jobs.Create(ctx, poster, validInput())
	require.NoError(t, err)
	_, err = f.jobs.Assign(ctx, job.ID, helper)
	require.NoError(t, err)
	_, err = f.jobs.Complete(ctx, job.ID, poster)
	require.NoError(t, err)
	return job.ID, poster, helper
}

func TestCreateRatingRequiresCompletedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	poster := uuid.New().String()

	job, err := f.jobs.Create(ctx, poster, validInput())
	require.NoError(t, err)

	_, err = f.ratings.Create(ctx, poster, marketplace.CreateRatingInput{
		JobID:       job.ID,
		RatedUserID: uuid.New().String(),
		Type:        string(model.RatingPosterToHelper),
		Value:       5,
	})
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	_, err = f.ratings.Create(ctx, poster, marketplace.CreateRatingInput{
		JobID:       uuid.New().String(),
		RatedUserID: uuid.New().String(),
		Type:        string(model.RatingPosterToHelper),
		Value:       5,
	})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCreateRatingPairing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jobID, poster, helper := completedJob(t, f)
	stranger := uuid.New().String()

	cases := []struct {
		name  string
		rater string
		rated string
		rtype model.RatingType
	}{
		{"StrangerAsRater", stranger, helper, model.RatingPosterToHelper},
		{"HelperRatingThemselves", helper, helper, model.RatingPosterToHelper},
		{"PosterWrongDirection", poster, helper, model.RatingHelperToPoster},
		{"WrongRatedUser", poster, stranger, model.RatingPosterToHelper},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ratings.Create(ctx, tc.rater, marketplace.CreateRatingInput{
				JobID:       jobID,
				RatedUserID: tc.rated,
				Type:        string(tc.rtype),
				Value:       4,
			})
			assert.ErrorIs(t, err, errors.ErrUnauthorized)
		})
	}
}

func TestCreateRatingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jobID, poster, helper := completedJob(t, f)

	for _, value := range []int{0, 6, -1} {
		_, err := f.ratings.Create(ctx, poster, marketplace.CreateRatingInput{
			JobID:       jobID,
			RatedUserID: helper,
			Type:        string(model.RatingPosterToHelper),
			Value:       value,
		})
		assert.True(t, errors.IsValidation(err), "value %d must be rejected", value)
	}

	long := strings.Repeat("x", 501)
	_, err := f.ratings.Create(ctx, poster, marketplace.CreateRatingInput{
		JobID:       jobID,
		RatedUserID: helper,
		Type:        string(model.RatingPosterToHelper),
		Value:       5,
		Review:      &long,
	})
	assert.True(t, errors.IsValidation(err), "review over 500 characters must be rejected")

	_, err = f.ratings.Create(ctx, poster, marketplace.CreateRatingInput{
		JobID:       jobID,
		RatedUserID: helper,
		Type:        "sideways",
		Value:       5,
	})
	assert.True(t, errors.IsValidation(err), "unknown rating type must be rejected")

	// A 500-rune review is exactly at the limit.
	edge := strings.Repeat("y", 500)
	_, err = f.ratings.Create(ctx, poster, marketplace.CreateRatingInput{
		JobID:       jobID,
		RatedUserID: helper,
		Type:        string(model.RatingPosterToHelper),
		Value:       5,
		Review:      &edge,
	})
	assert.NoError(t, err)
}

// The full reciprocal flow: poster rates helper, helper rates poster, each
// direction exactly once, aggregates folded in.
func TestReciprocalRatingFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jobID, poster, helper := completedJob(t, f)
	f.bus.reset()

	review := "quick and careful"
	rating, err := f.ratings.Create(ctx, poster, marketplace.CreateRatingInput{
		JobID:       jobID,
		RatedUserID: helper,
		Type:        string(model.RatingPosterToHelper),
		Value:       5,
		Review:      &review,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RatingPosterToHelper, rating.Type)

	helperProf, err := f.profiles.Get(ctx, helper)
	require.NoError(t, err)
	assert.Equal(t, 1, helperProf.TotalRatings)
	assert.InDelta(t, 5.0, helperProf.AverageRating, 1e-9)

	// The helper is notified and their profile key went stale.
	notifs, err := f.store.ListNotifications(ctx, helper)
	require.NoError(t, err)
	var found bool
	for _, n := range notifs {
		if n.Type == model.NotifRatingReceived && n.RefID == rating.ID {
			found = true
		}
	}
	assert.True(t, found, "rated user gets a rating_received notification")
	assert.True(t, contains(f.bus.published(), readcache.ProfileKey(helper)))

	// Same direction again: DuplicateRating, aggregate untouched.
	_, err = f.ratings.Create(ctx, poster, marketplace.CreateRatingInput{
		JobID:       jobID,
		RatedUserID: helper,
		Type:        string(model.RatingPosterToHelper),
		Value:       4,
	})
	assert.ErrorIs(t, err, errors.ErrDuplicateRating)
	helperProf, err = f.profiles.Get(ctx, helper)
	require.NoError(t, err)
	assert.Equal(t, 1, helperProf.TotalRatings)
	assert.InDelta(t, 5.0, helperProf.AverageRating, 1e-9)

	// The mirror direction is independent.
	_, err = f.ratings.Create(ctx, helper, marketplace.CreateRatingInput{
		JobID:       jobID,
		RatedUserID: poster,
		Type:        string(model.RatingHelperToPoster),
		Value:       3,
	})
	require.NoError(t, err)

	posterProf, err := f.profiles.Get(ctx, poster)
	require.NoError(t, err)
	assert.Equal(t, 1, posterProf.TotalRatings)
	assert.InDelta(t, 3.0, posterProf.AverageRating, 1e-9)

	forJob, err := f.ratings.ListForJob(ctx, jobID)
	require.NoError(t, err)
	assert.Len(t, forJob, 2)

	forHelper, err := f.ratings.ListForUser(ctx, helper)
	require.NoError(t, err)
	require.Len(t, forHelper, 1)
	require.NotNil(t, forHelper[0].Review)
	assert.Equal(t, review, *forHelper[0].Review)
}

func TestRatingAverageAcrossJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The same helper completes three jobs and is rated 5, 4, 3.
	helper := uuid.New().String()
	values := []int{5, 4, 3}
	for _, v := range values {
		poster := uuid.New().String()
		job, err := f.jobs.Create(ctx, poster, validInput())
		require.NoError(t, err)
		_, err = f.jobs.Assign(ctx, job.ID, helper)
		require.NoError(t, err)
		_, err = f.jobs.Complete(ctx, job.ID, poster)
		require.NoError(t, err)
		_, err = f.ratings.Create(ctx, poster, marketplace.CreateRatingInput{
			JobID:       job.ID,
			RatedUserID: helper,
			Type:        string(model.RatingPosterToHelper),
			Value:       v,
		})
		require.NoError(t, err)
	}

	prof, err := f.profiles.Get(ctx, helper)
	require.NoError(t, err)
	assert.Equal(t, 3, prof.TotalRatings)
	assert.InDelta(t, 4.0, prof.AverageRating, 1e-9)
	assert.Equal(t, 3, prof.TasksCompleted)
}
