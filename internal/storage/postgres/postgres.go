// Package postgres implements storage.Store on PostgreSQL via pgx.
//
// The conditional transitions are single UPDATE statements whose WHERE clause
// re-checks the current status; a zero-row result means the status moved and
// surfaces as ErrStatusConflict. The rating merge and the completion counter
// are single-statement upserts, so both aggregates are read-modify-write
// atomic at commit time.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"campusgig/internal/errors"
	"campusgig/internal/model"
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// Open creates the pool, verifies the connection and applies pending
// migrations.
func Open(ctx context.Context, databaseURL string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool.New")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres ping failed")
	}

	if err := migrate(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool, log: log}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// ─── Jobs ────────────────────────────────────────────────────────────────────

const jobColumns = `id, title, description, price, urgency, location, category,
       status, poster_id, assigned_to, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		j      model.Job
		status string
	)
	err := row.Scan(
		&j.ID, &j.Title, &j.Description, &j.Price, &j.Urgency, &j.Location,
		&j.Category, &status, &j.PosterID, &j.AssignedTo, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}

func (s *Store) CreateJob(ctx context.Context, job *model.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, title, description, price, urgency, location, category,
		                   status, poster_id, assigned_to, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.Title, job.Description, job.Price, job.Urgency, job.Location,
		job.Category, string(job.Status), job.PosterID, job.AssignedTo,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert job")
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(err, "get job")
	}
	return j, nil
}

func (s *Store) ListFeed(ctx context.Context) ([]model.Job, error) {
	return s.listJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status IN ('open', 'in_progress')
		 ORDER BY created_at DESC`)
}

func (s *Store) ListJobsByPoster(ctx context.Context, posterID string) ([]model.Job, error) {
	return s.listJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE poster_id = $1
		 ORDER BY created_at DESC`, posterID)
}

func (s *Store) ListJobsByHelper(ctx context.Context, helperID string) ([]model.Job, error) {
	return s.listJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE assigned_to = $1
		 ORDER BY created_at DESC`, helperID)
}

func (s *Store) listJobs(ctx context.Context, query string, args ...any) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs query")
	}
	defer rows.Close()

	jobs := make([]model.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "list jobs scan")
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list jobs rows")
	}
	return jobs, nil
}

func (s *Store) AssignJob(ctx context.Context, jobID, helperID string) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs
		 SET status = 'in_progress', assigned_to = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'open'
		 RETURNING `+jobColumns,
		jobID, helperID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.transitionConflict(ctx, jobID)
		}
		return nil, errors.Wrap(err, "assign job")
	}
	return j, nil
}

func (s *Store) CompleteJob(ctx context.Context, jobID string) (*model.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin complete job")
	}
	defer tx.Rollback(ctx)

	j, err := scanJob(tx.QueryRow(ctx,
		`UPDATE jobs
		 SET status = 'completed', updated_at = NOW()
		 WHERE id = $1 AND status = 'in_progress'
		 RETURNING `+jobColumns,
		jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.transitionConflict(ctx, jobID)
		}
		return nil, errors.Wrap(err, "complete job")
	}

	// Same transaction as the transition: the helper's completion counter.
	_, err = tx.Exec(ctx,
		`INSERT INTO profiles (id, tasks_completed, created_at)
		 VALUES ($1, 1, NOW())
		 ON CONFLICT (id) DO UPDATE SET tasks_completed = profiles.tasks_completed + 1`,
		*j.AssignedTo)
	if err != nil {
		return nil, errors.Wrap(err, "count completed task")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit complete job")
	}
	return j, nil
}

func (s *Store) CancelJob(ctx context.Context, jobID string) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs
		 SET status = 'cancelled', assigned_to = NULL, updated_at = NOW()
		 WHERE id = $1 AND status IN ('open', 'in_progress')
		 RETURNING `+jobColumns,
		jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.transitionConflict(ctx, jobID)
		}
		return nil, errors.Wrap(err, "cancel job")
	}
	return j, nil
}

// transitionConflict tells a missing job apart from one whose status moved.
func (s *Store) transitionConflict(ctx context.Context, jobID string) error {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return err
	}
	return errors.ErrStatusConflict
}

// ─── Profiles ────────────────────────────────────────────────────────────────

const profileColumns = `id, email, display_name, avatar_url, average_rating,
       total_ratings, tasks_completed, created_at`

func scanProfile(row rowScanner) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.ID, &p.Email, &p.DisplayName, &p.AvatarURL, &p.AverageRating,
		&p.TotalRatings, &p.TasksCompleted, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) EnsureProfile(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// Identity fields fill in blanks left by aggregate-only skeleton rows;
	// the first real value wins and aggregates are never touched here.
	stored, err := scanProfile(s.pool.QueryRow(ctx,
		`INSERT INTO profiles (id, email, display_name, avatar_url, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   email        = CASE WHEN profiles.email = '' THEN EXCLUDED.email ELSE profiles.email END,
		   display_name = COALESCE(profiles.display_name, EXCLUDED.display_name),
		   avatar_url   = CASE WHEN profiles.avatar_url = '' THEN EXCLUDED.avatar_url ELSE profiles.avatar_url END
		 RETURNING `+profileColumns,
		p.ID, p.Email, p.DisplayName, p.AvatarURL, createdAt))
	if err != nil {
		return nil, errors.Wrap(err, "ensure profile")
	}
	return stored, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(err, "get profile")
	}
	return p, nil
}

// ─── Ratings ─────────────────────────────────────────────────────────────────

const ratingColumns = `id, job_id, rater_id, rated_user_id, rating_type, value,
       review, created_at`

func scanRating(row rowScanner) (*model.Rating, error) {
	var (
		r  model.Rating
		rt string
	)
	err := row.Scan(
		&r.ID, &r.JobID, &r.RaterID, &r.RatedUserID, &rt, &r.Value,
		&r.Review, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Type = model.RatingType(rt)
	return &r, nil
}

func (s *Store) CreateRating(ctx context.Context, r *model.Rating) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin create rating")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO ratings (id, job_id, rater_id, rated_user_id, rating_type,
		                      value, review, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.JobID, r.RaterID, r.RatedUserID, string(r.Type),
		r.Value, r.Review, r.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.ErrDuplicateRating
		}
		return errors.Wrap(err, "insert rating")
	}

	// Fold the value into the aggregate as stored right now. The whole
	// read-modify-write happens inside this one statement.
	_, err = tx.Exec(ctx,
		`INSERT INTO profiles (id, average_rating, total_ratings, created_at)
		 VALUES ($1, $2, 1, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   average_rating = (profiles.average_rating * profiles.total_ratings + EXCLUDED.average_rating)
		                    / (profiles.total_ratings + 1),
		   total_ratings  = profiles.total_ratings + 1`,
		r.RatedUserID, float64(r.Value))
	if err != nil {
		return errors.Wrap(err, "merge rating aggregate")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit create rating")
	}
	return nil
}

func (s *Store) ListRatingsForUser(ctx context.Context, userID string) ([]model.Rating, error) {
	return s.listRatings(ctx,
		`SELECT `+ratingColumns+` FROM ratings
		 WHERE rated_user_id = $1
		 ORDER BY created_at DESC`, userID)
}

func (s *Store) ListRatingsForJob(ctx context.Context, jobID string) ([]model.Rating, error) {
	return s.listRatings(ctx,
		`SELECT `+ratingColumns+` FROM ratings
		 WHERE job_id = $1
		 ORDER BY created_at DESC`, jobID)
}

func (s *Store) listRatings(ctx context.Context, query string, args ...any) ([]model.Rating, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list ratings query")
	}
	defer rows.Close()

	ratings := make([]model.Rating, 0)
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, errors.Wrap(err, "list ratings scan")
		}
		ratings = append(ratings, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list ratings rows")
	}
	return ratings, nil
}

// ─── Notifications ───────────────────────────────────────────────────────────

const notificationColumns = `id, user_id, type, ref_id, is_read, created_at`

func scanNotification(row rowScanner) (*model.Notification, error) {
	var n model.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.RefID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, ref_id, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Type, n.RefID, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert notification")
	}
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(err, "get notification")
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications query")
	}
	defer rows.Close()

	out := make([]model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.Wrap(err, "list notifications scan")
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list notifications rows")
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "mark notification read")
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count unread")
	}
	return count, nil
}

func (s *Store) PurgeReadNotifications(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1`, before)
	if err != nil {
		return 0, errors.Wrap(err, "purge notifications")
	}
	return tag.RowsAffected(), nil
}
