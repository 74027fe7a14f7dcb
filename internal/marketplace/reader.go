package marketplace

import (
	"context"

	"campusgig/internal/errors"
	"campusgig/internal/readcache"
	"campusgig/internal/storage"
)

// Reader maps read-cache keys onto store queries. It is the backend side of
// the sync layer: every cached view resolves through here.
type Reader struct {
	store storage.Store
}

// NewReader returns a Reader over store.
func NewReader(store storage.Store) *Reader {
	return &Reader{store: store}
}

var _ readcache.Reader = (*Reader)(nil)

// Read fetches the current backend value for key.
func (r *Reader) Read(ctx context.Context, key string) (any, error) {
	fam, arg := readcache.SplitKey(key)
	switch fam {
	case readcache.FamilyFeed:
		return r.store.ListFeed(ctx)
	case readcache.FamilyMyJobs:
		return r.store.ListJobsByPoster(ctx, arg)
	case readcache.FamilyMyGigs:
		return r.store.ListJobsByHelper(ctx, arg)
	case readcache.FamilyProfile:
		return r.store.GetProfile(ctx, arg)
	case readcache.FamilyUnread:
		return r.store.CountUnread(ctx, arg)
	}
	return nil, errors.Newf("unknown cache key %q", key)
}
