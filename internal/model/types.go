package model

import (
	"fmt"
	"time"
)

// Job is a posted task. Price is stored in minor currency units.
// PosterID never changes after creation; AssignedTo is nil exactly while the
// job is not in_progress or completed.
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Urgency     string    `json:"urgency"`
	Location    string    `json:"location"`
	Category    string    `json:"category"`
	Status      JobStatus `json:"status"`
	PosterID    string    `json:"posterId"`
	AssignedTo  *string   `json:"assignedTo"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Profile is the public face of a user. AverageRating, TotalRatings and
// TasksCompleted are derived: only the storage layer writes them, as part of
// the commits that change them.
type Profile struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	DisplayName    *string   `json:"displayName"`
	AvatarURL      string    `json:"avatarUrl"`
	AverageRating  float64   `json:"averageRating"`
	TotalRatings   int       `json:"totalRatings"`
	TasksCompleted int       `json:"tasksCompleted"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RatingType identifies the direction of a rating on a completed job.
type RatingType string

const (
	RatingPosterToHelper RatingType = "poster_to_helper"
	RatingHelperToPoster RatingType = "helper_to_poster"
)

// ParseRatingType converts a raw string to a RatingType, returning an error
// for unknown values.
func ParseRatingType(s string) (RatingType, error) {
	rt := RatingType(s)
	switch rt {
	case RatingPosterToHelper, RatingHelperToPoster:
		return rt, nil
	}
	return "", fmt.Errorf("unknown rating type %q", s)
}

// Rating is one direction of post-completion feedback. A job accepts at most
// one rating per type.
type Rating struct {
	ID          string     `json:"id"`
	JobID       string     `json:"jobId"`
	RaterID     string     `json:"raterId"`
	RatedUserID string     `json:"ratedUserId"`
	Type        RatingType `json:"ratingType"`
	Value       int        `json:"value"`
	Review      *string    `json:"review"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Notification types.
const (
	NotifJobAssigned    = "job_assigned"
	NotifJobCompleted   = "job_completed"
	NotifJobCancelled   = "job_cancelled"
	NotifRatingReceived = "rating_received"
)

// Notification is an in-app message created as a side effect of a lifecycle
// transition or a received rating. RefID points at the job or rating that
// caused it.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	RefID     string    `json:"refId"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}
