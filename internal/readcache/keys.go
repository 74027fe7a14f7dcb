package readcache

import "strings"

// Cache keys, one namespace per read view. A trailing "*" in Invalidate
// matches every key sharing the prefix, e.g. "jobs:my:*".
const (
	KeyFeed = "jobs:feed"

	prefixMyJobs  = "jobs:my:"
	prefixMyGigs  = "jobs:gigs:"
	prefixProfile = "profile:"
	prefixUnread  = "notifications:unread:"
)

// MyJobsKey is the view of every job the user posted.
func MyJobsKey(userID string) string { return prefixMyJobs + userID }

// MyGigsKey is the view of every job the user is or was assigned to.
func MyGigsKey(userID string) string { return prefixMyGigs + userID }

// ProfileKey is the user's public profile including rating aggregates.
func ProfileKey(userID string) string { return prefixProfile + userID }

// UnreadKey is the user's unread notification count.
func UnreadKey(userID string) string { return prefixUnread + userID }

// Family groups keys that share a refresh policy.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyFeed
	FamilyMyJobs
	FamilyMyGigs
	FamilyProfile
	FamilyUnread
)

// SplitKey returns a key's family and its trailing argument (the user id,
// empty for the feed).
func SplitKey(key string) (Family, string) {
	switch {
	case key == KeyFeed:
		return FamilyFeed, ""
	case strings.HasPrefix(key, prefixMyJobs):
		return FamilyMyJobs, strings.TrimPrefix(key, prefixMyJobs)
	case strings.HasPrefix(key, prefixMyGigs):
		return FamilyMyGigs, strings.TrimPrefix(key, prefixMyGigs)
	case strings.HasPrefix(key, prefixProfile):
		return FamilyProfile, strings.TrimPrefix(key, prefixProfile)
	case strings.HasPrefix(key, prefixUnread):
		return FamilyUnread, strings.TrimPrefix(key, prefixUnread)
	}
	return FamilyUnknown, ""
}

// KeyFamily returns just the family of a key.
func KeyFamily(key string) Family {
	f, _ := SplitKey(key)
	return f
}
