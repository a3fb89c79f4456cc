package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/threadflow/internal/models"
)

type PublishAttemptRepository interface {
	Create(ctx context.Context, pa *models.PublishAttempt) (int64, error)
}

type publishAttemptRepository struct {
	db *sql.DB
}

func NewPublishAttemptRepository(db *sql.DB) PublishAttemptRepository {
	return &publishAttemptRepository{db: db}
}

// Create appends one attempt to the history. AccountID is nil for posts that lost their account.
func (r *publishAttemptRepository) Create(ctx context.Context, pa *models.PublishAttempt) (int64, error) {
	query := `
		INSERT INTO publish_attempts (post_id, account_id, run_id, outcome, tweet_count, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, pa.PostID, pa.AccountID, pa.RunID, pa.Outcome, pa.TweetCount, pa.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}
