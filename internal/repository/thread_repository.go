package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lib/pq"
	"github.com/maheshrc27/threadflow/internal/models"
)

type ThreadRepository interface {
	ListByPostIDs(ctx context.Context, postIDs []int64) ([]*models.ThreadItem, error)
}

type threadRepository struct {
	db *sql.DB
}

func NewThreadRepository(db *sql.DB) ThreadRepository {
	return &threadRepository{db: db}
}

// ListByPostIDs returns thread items ordered by post and position, each carrying its
// ordered media and poll options.
func (r *threadRepository) ListByPostIDs(ctx context.Context, postIDs []int64) ([]*models.ThreadItem, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, post_id, position, text, tweet_id
		FROM thread_items
		WHERE post_id = ANY($1)
		ORDER BY post_id, position
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(postIDs))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.ThreadItem
	byID := make(map[int64]*models.ThreadItem)
	for rows.Next() {
		var item models.ThreadItem
		if err := rows.Scan(&item.ID, &item.PostID, &item.Position, &item.Text, &item.TweetID); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, &item)
		byID[item.ID] = &item
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if len(items) == 0 {
		return items, nil
	}

	if err := r.attachMedia(ctx, postIDs, byID); err != nil {
		return nil, err
	}
	if err := r.attachPollOptions(ctx, postIDs, byID); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *threadRepository) attachMedia(ctx context.Context, postIDs []int64, byID map[int64]*models.ThreadItem) error {
	query := `
		SELECT m.id, m.thread_item_id, m.display_order, m.url, m.alt_text, m.kind
		FROM thread_media m
		JOIN thread_items t ON t.id = m.thread_item_id
		WHERE t.post_id = ANY($1)
		ORDER BY m.thread_item_id, m.display_order
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(postIDs))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Media
		if err := rows.Scan(&m.ID, &m.ThreadItemID, &m.DisplayOrder, &m.URL, &m.AltText, &m.Kind); err != nil {
			slog.Info(err.Error())
			return err
		}
		if item, ok := byID[m.ThreadItemID]; ok {
			item.Media = append(item.Media, &m)
		}
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *threadRepository) attachPollOptions(ctx context.Context, postIDs []int64, byID map[int64]*models.ThreadItem) error {
	query := `
		SELECT o.id, o.thread_item_id, o.display_order, o.label
		FROM poll_options o
		JOIN thread_items t ON t.id = o.thread_item_id
		WHERE t.post_id = ANY($1) AND t.position = 0
		ORDER BY o.thread_item_id, o.display_order
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(postIDs))
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.ThreadItemID, &o.DisplayOrder, &o.Label); err != nil {
			slog.Info(err.Error())
			return err
		}
		if item, ok := byID[o.ThreadItemID]; ok {
			item.PollOptions = append(item.PollOptions, &o)
		}
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
