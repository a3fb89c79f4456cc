package pipeline

import (
	"errors"
	"time"

	"github.com/maheshrc27/threadflow/internal/models"
)

// ErrInterrupted is recorded on posts found stuck in PUBLISHING by the stale sweep.
var ErrInterrupted = errors.New("publish interrupted")

// Attempt is the raw result of one publish attempt.
type Attempt struct {
	Published []models.PublishedItem
	Err       error
	// Immediate attempts fail straight to FAILED instead of re-entering the queue.
	Immediate bool
}

// Policy decides where a post goes after an attempt. IsPermanent, when set, sends
// matching errors straight to FAILED. A nil IsPermanent retries every error alike.
type Policy struct {
	MaxRetryCount int
	IsPermanent   func(error) bool
}

// Resolve builds the outcome to persist for post. Every new tweet id is carried on the
// outcome whether or not the attempt succeeded.
func (p Policy) Resolve(post *models.Post, attempt Attempt, now time.Time) (*models.PostOutcome, error) {
	outcome := &models.PostOutcome{
		PostID:     post.ID,
		RetryCount: post.RetryCount,
		TweetIDs:   attempt.Published,
		ClaimedAt:  post.ClaimedAt,
	}

	next := models.PostStatusPublished
	if attempt.Err == nil {
		outcome.PublishedAt = &now
	} else {
		outcome.RetryCount = post.RetryCount + 1
		msg := attempt.Err.Error()
		outcome.Error = &msg

		switch {
		case attempt.Immediate:
			next = models.PostStatusFailed
		case p.IsPermanent != nil && p.IsPermanent(attempt.Err):
			next = models.PostStatusFailed
		case outcome.RetryCount >= p.MaxRetryCount:
			next = models.PostStatusFailed
		default:
			next = models.PostStatusScheduled
		}
	}

	status, err := post.Status.Transition(next)
	if err != nil {
		return nil, err
	}
	outcome.Status = status
	return outcome, nil
}
