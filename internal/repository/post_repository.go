package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/threadflow/internal/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrNotClaimable = errors.New("post is not in a publishable state")
	ErrClaimLost    = errors.New("post is no longer claimed by this run")
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ClaimDueBatch(ctx context.Context, now time.Time, limit int) ([]int64, error)
	ClaimForImmediate(ctx context.Context, postID int64, now time.Time) error
	LoadForPublish(ctx context.Context, ids []int64) ([]*models.Post, error)
	ApplyOutcome(ctx context.Context, o *models.PostOutcome) error
	ReleaseClaims(ctx context.Context, ids []int64) error
	ListStalePublishing(ctx context.Context, claimedBefore time.Time, limit int) ([]*models.Post, error)
}

type postRepository struct {
	db      *sql.DB
	threads ThreadRepository
	acc     AccountRepository
}

func NewPostRepository(db *sql.DB, threads ThreadRepository, acc AccountRepository) PostRepository {
	return &postRepository{db: db, threads: threads, acc: acc}
}

const postColumns = `id, account_id, status, scheduled_at, published_at, claimed_at, error, retry_count, poll_duration, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.AccountID, &post.Status, &post.ScheduledAt, &post.PublishedAt,
		&post.ClaimedAt, &post.Error, &post.RetryCount, &post.PollDuration, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

// ClaimDueBatch moves at most limit due posts from SCHEDULED to PUBLISHING in one statement.
// Rows locked by a concurrent claim are skipped, and the outer status predicate makes the
// transition a compare-and-set, so each row is claimed by exactly one caller.
func (r *postRepository) ClaimDueBatch(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	query := `
		UPDATE posts
		SET status = 'PUBLISHING',
			claimed_at = $1,
			updated_at = $1
		WHERE id IN (
			SELECT id FROM posts
			WHERE status = 'SCHEDULED'
				AND scheduled_at <= $1
				AND account_id IS NOT NULL
			ORDER BY scheduled_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		AND status = 'SCHEDULED'
		RETURNING id
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return ids, nil
}

func (r *postRepository) ClaimForImmediate(ctx context.Context, postID int64, now time.Time) error {
	query := `
		UPDATE posts
		SET status = 'PUBLISHING',
			claimed_at = $2,
			updated_at = $2
		WHERE id = $1
			AND status IN ('DRAFT', 'SCHEDULED')
			AND account_id IS NOT NULL
	`

	result, err := r.db.ExecContext(ctx, query, postID, now)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 1 {
		return nil
	}

	if _, err := r.GetByID(ctx, postID); err != nil {
		return err
	}
	return ErrNotClaimable
}

// LoadForPublish returns the posts with their ordered thread content and account.
func (r *postRepository) LoadForPublish(ctx context.Context, ids []int64) ([]*models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + postColumns + ` FROM posts WHERE id = ANY($1) ORDER BY scheduled_at NULLS FIRST, id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	byID := make(map[int64]*models.Post, len(ids))
	var accountIDs []int64
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
		byID[post.ID] = post
		if post.AccountID != nil {
			accountIDs = append(accountIDs, *post.AccountID)
		}
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	items, err := r.threads.ListByPostIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if post, ok := byID[item.PostID]; ok {
			post.Items = append(post.Items, item)
		}
	}

	accounts, err := r.acc.ListByIDs(ctx, accountIDs)
	if err != nil {
		return nil, err
	}
	for _, post := range posts {
		if post.AccountID != nil {
			post.Account = accounts[*post.AccountID]
		}
	}

	return posts, nil
}

// ApplyOutcome writes new tweet ids and the post's resolved status in one transaction.
// The status only changes while the post still holds the claim the outcome was built
// from. Tweet ids are committed even when the claim was lost, so a later attempt resumes
// after them.
func (r *postRepository) ApplyOutcome(ctx context.Context, o *models.PostOutcome) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	itemQuery := `
		UPDATE thread_items
		SET tweet_id = $1
		WHERE post_id = $2 AND position = $3 AND tweet_id IS NULL
	`
	for _, item := range o.TweetIDs {
		if _, err := tx.ExecContext(ctx, itemQuery, item.TweetID, o.PostID, item.Position); err != nil {
			slog.Info(err.Error())
			return err
		}
	}

	postQuery := `
		UPDATE posts
		SET status = $1,
			error = $2,
			retry_count = $3,
			published_at = COALESCE($4, published_at),
			claimed_at = NULL,
			updated_at = $5
		WHERE id = $6
			AND status = 'PUBLISHING'
			AND retry_count <= $3
			AND claimed_at IS NOT DISTINCT FROM $7
	`
	result, err := tx.ExecContext(ctx, postQuery, o.Status, o.Error, o.RetryCount, o.PublishedAt, time.Now(), o.PostID, o.ClaimedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}

	if affected != 1 {
		return ErrClaimLost
	}
	return nil
}

// ReleaseClaims hands claimed posts that were never attempted back to the queue.
func (r *postRepository) ReleaseClaims(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE posts
		SET status = 'SCHEDULED',
			claimed_at = NULL,
			updated_at = $2
		WHERE id = ANY($1) AND status = 'PUBLISHING'
	`
	_, err := r.db.ExecContext(ctx, query, pq.Array(ids), time.Now())
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) ListStalePublishing(ctx context.Context, claimedBefore time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE status = 'PUBLISHING' AND (claimed_at IS NULL OR claimed_at < $1)
		ORDER BY claimed_at NULLS FIRST, id
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, claimedBefore, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return posts, nil
}
