package postgres

import "context"

// TruncateAll empties every table so integration subtests start clean.
func (s *Store) TruncateAll(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE jobs, profiles, ratings, notifications`)
	return err
}
