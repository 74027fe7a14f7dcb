package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusgig/internal/model"
	"campusgig/internal/storage"
	"campusgig/internal/storage/memory"
	"campusgig/internal/storage/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		return memory.New()
	})
}

// Returned rows are copies: callers must not be able to reach into the store.
func TestReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	now := time.Now().UTC()
	job := &model.Job{
		ID:        uuid.New().String(),
		Title:     "water plants",
		Price:     500,
		Status:    model.StatusOpen,
		PosterID:  uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateJob(ctx, job))

	// Mutating the input after CreateJob changes nothing.
	job.Title = "mutated"
	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "water plants", got.Title)

	// Mutating a read result changes nothing either.
	got.Status = model.StatusCancelled
	again, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, again.Status)

	assigned, err := s.AssignJob(ctx, job.ID, "helper-1")
	require.NoError(t, err)
	*assigned.AssignedTo = "intruder"

	final, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "helper-1", *final.AssignedTo)
}
