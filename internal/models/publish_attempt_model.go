package models

import "time"

type PublishAttempt struct {
	ID           int64      `db:"id" json:"id"`
	PostID       int64      `db:"post_id" json:"post_id"`
	AccountID    *int64     `db:"account_id" json:"account_id,omitempty"`
	RunID        string     `db:"run_id" json:"run_id"`
	Outcome      PostStatus `db:"outcome" json:"outcome"`
	TweetCount   int        `db:"tweet_count" json:"tweet_count"`
	ErrorMessage string     `db:"error_message" json:"error_message"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
