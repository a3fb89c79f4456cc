package models

import "time"

type Post struct {
	ID           int64      `db:"id" json:"id"`
	AccountID    *int64     `db:"account_id" json:"account_id,omitempty"`
	Status       PostStatus `db:"status" json:"status"`
	ScheduledAt  *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at,omitempty"`
	ClaimedAt    *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
	Error        *string    `db:"error" json:"error,omitempty"`
	RetryCount   int        `db:"retry_count" json:"retry_count"`
	PollDuration int        `db:"poll_duration" json:"poll_duration"` // minutes
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	Items   []*ThreadItem `db:"-" json:"items"`
	Account *Account      `db:"-" json:"-"`
}

type ThreadItem struct {
	ID       int64   `db:"id" json:"id"`
	PostID   int64   `db:"post_id" json:"post_id"`
	Position int     `db:"position" json:"position"`
	Text     string  `db:"text" json:"text"`
	TweetID  *string `db:"tweet_id" json:"tweet_id,omitempty"`

	Media       []*Media      `db:"-" json:"media"`
	PollOptions []*PollOption `db:"-" json:"poll_options"`
}

// Published reports whether the item already has an external id.
func (t *ThreadItem) Published() bool {
	return t.TweetID != nil && *t.TweetID != ""
}

type MediaKind string

const (
	MediaKindImage         MediaKind = "image"
	MediaKindVideo         MediaKind = "video"
	MediaKindAnimatedImage MediaKind = "animated_image"
)

type Media struct {
	ID           int64     `db:"id" json:"id"`
	ThreadItemID int64     `db:"thread_item_id" json:"thread_item_id"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	URL          string    `db:"url" json:"url"`
	AltText      string    `db:"alt_text" json:"alt_text"`
	Kind         MediaKind `db:"kind" json:"kind"`
}

type PollOption struct {
	ID           int64  `db:"id" json:"id"`
	ThreadItemID int64  `db:"thread_item_id" json:"thread_item_id"`
	DisplayOrder int    `db:"display_order" json:"display_order"`
	Label        string `db:"label" json:"label"`
}

// PublishedItem is one external id produced for one thread position.
type PublishedItem struct {
	Position int    `json:"position"`
	TweetID  string `json:"tweet_id"`
}

// PostOutcome is the persisted result of one publish attempt.
type PostOutcome struct {
	PostID      int64
	Status      PostStatus
	Error       *string
	RetryCount  int
	PublishedAt *time.Time
	TweetIDs    []PublishedItem
	ClaimedAt   *time.Time // claim the outcome resolves
}
