package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/maheshrc27/threadflow/internal/service"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const persistTimeout = 10 * time.Second

type BatchSummary struct {
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Published int    `json:"published"`
	Failed    int    `json:"failed"`
	Retried   int    `json:"retried"`
}

type SweepSummary struct {
	Requeued int `json:"requeued"`
	Failed   int `json:"failed"`
}

type Pipeline interface {
	RunBatch(ctx context.Context) (*BatchSummary, error)
	PublishNow(ctx context.Context, postID int64) ([]string, error)
	SweepStale(ctx context.Context) (*SweepSummary, error)
}

type Options struct {
	BatchSize  int
	StaleAfter time.Duration
}

type pipeline struct {
	posts    repository.PostRepository
	attempts repository.PublishAttemptRepository
	threads  service.ThreadService
	policy   Policy
	opts     Options
	now      func() time.Time
}

func NewPipeline(
	posts repository.PostRepository,
	attempts repository.PublishAttemptRepository,
	threads service.ThreadService,
	policy Policy,
	opts Options) Pipeline {
	return &pipeline{
		posts:    posts,
		attempts: attempts,
		threads:  threads,
		policy:   policy,
		opts:     opts,
		now:      time.Now,
	}
}

type attemptResult struct {
	outcome    *models.PostOutcome
	publishErr error
}

// RunBatch claims up to BatchSize due posts and publishes them one after another. A
// failing post never stops the batch. Once ctx is cancelled no further post is
// started and the unstarted claims are handed back without consuming a retry.
func (p *pipeline) RunBatch(ctx context.Context) (*BatchSummary, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	summary := &BatchSummary{RunID: runID}

	ids, err := p.posts.ClaimDueBatch(ctx, p.now(), p.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("claim due posts: %w", err)
	}
	if len(ids) == 0 {
		return summary, nil
	}
	slog.Info("claimed due posts", "run_id", runID, "count", len(ids))

	posts, err := p.posts.LoadForPublish(ctx, ids)
	if err != nil {
		p.release(ctx, runID, ids)
		return nil, fmt.Errorf("load claimed posts: %w", err)
	}

	for i, post := range posts {
		if ctx.Err() != nil {
			p.release(ctx, runID, postIDs(posts[i:]))
			break
		}

		res, err := p.attempt(ctx, runID, post, false)
		summary.Processed++
		if err != nil {
			continue
		}

		switch res.outcome.Status {
		case models.PostStatusPublished:
			summary.Published++
		case models.PostStatusFailed:
			summary.Failed++
		case models.PostStatusScheduled:
			summary.Retried++
		}
	}

	slog.Info("batch finished",
		"run_id", runID,
		"processed", summary.Processed,
		"published", summary.Published,
		"failed", summary.Failed,
		"retried", summary.Retried,
	)
	return summary, nil
}

// PublishNow publishes one DRAFT or SCHEDULED post synchronously and returns the
// external ids of its whole thread in position order. Any failure leaves the post FAILED.
// When the outcome cannot be stored the publish error is joined with the storage error.
func (p *pipeline) PublishNow(ctx context.Context, postID int64) ([]string, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	if err := p.posts.ClaimForImmediate(ctx, postID, p.now()); err != nil {
		return nil, err
	}

	posts, err := p.posts.LoadForPublish(ctx, []int64{postID})
	if err == nil && len(posts) == 0 {
		err = repository.ErrNotFound
	}
	if err != nil {
		p.failClaimed(ctx, runID, postID, err)
		return nil, fmt.Errorf("load post %d: %w", postID, err)
	}
	post := posts[0]

	res, err := p.attempt(ctx, runID, post, true)
	if err != nil {
		if res != nil && res.publishErr != nil {
			return nil, errors.Join(res.publishErr, err)
		}
		return nil, err
	}
	if res.publishErr != nil {
		return nil, res.publishErr
	}

	return threadIDs(post, res.outcome.TweetIDs), nil
}

// SweepStale resolves posts left in PUBLISHING past the grace period as interrupted
// attempts.
func (p *pipeline) SweepStale(ctx context.Context) (*SweepSummary, error) {
	summary := &SweepSummary{}
	cutoff := p.now().Add(-p.opts.StaleAfter)

	stale, err := p.posts.ListStalePublishing(ctx, cutoff, p.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list stale posts: %w", err)
	}

	for _, post := range stale {
		outcome, err := p.policy.Resolve(post, Attempt{Err: ErrInterrupted}, p.now())
		if err != nil {
			slog.Warn("cannot resolve stale post", "post_id", post.ID, "error", err)
			continue
		}
		if err := p.posts.ApplyOutcome(ctx, outcome); err != nil {
			if !errors.Is(err, repository.ErrClaimLost) {
				slog.Error("failed to resolve stale post", "post_id", post.ID, "error", err)
			}
			continue
		}

		slog.Warn("stale post resolved", "post_id", post.ID, "status", outcome.Status, "retry_count", outcome.RetryCount)
		p.recordAttempt(ctx, "sweep", post, outcome)
		if outcome.Status == models.PostStatusFailed {
			summary.Failed++
		} else {
			summary.Requeued++
		}
	}

	return summary, nil
}

// attempt publishes one claimed post and persists the resolved outcome. The outcome is
// written on a context detached from ctx so cancellation cannot strand the post.
func (p *pipeline) attempt(ctx context.Context, runID string, post *models.Post, immediate bool) (*attemptResult, error) {
	published, publishErr := p.threads.PublishThread(ctx, post)

	outcome, err := p.policy.Resolve(post, Attempt{Published: published, Err: publishErr, Immediate: immediate}, p.now())
	if err != nil {
		slog.Error("cannot resolve post", "run_id", runID, "post_id", post.ID, "error", err)
		return nil, err
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := p.posts.ApplyOutcome(persistCtx, outcome); err != nil {
		if errors.Is(err, repository.ErrClaimLost) {
			slog.Warn("post claim lost before outcome was stored", "run_id", runID, "post_id", post.ID)
		} else {
			slog.Error("failed to store post outcome", "run_id", runID, "post_id", post.ID, "error", err)
		}
		return &attemptResult{outcome: outcome, publishErr: publishErr}, err
	}

	attrs := []any{"run_id", runID, "post_id", post.ID, "status", outcome.Status, "retry_count", outcome.RetryCount}
	if publishErr != nil {
		slog.Warn("post attempt failed", append(attrs, "error", publishErr)...)
	} else {
		slog.Info("post published", attrs...)
	}

	p.recordAttempt(persistCtx, runID, post, outcome)
	return &attemptResult{outcome: outcome, publishErr: publishErr}, nil
}

// failClaimed marks an immediately claimed post FAILED when it could not be loaded.
func (p *pipeline) failClaimed(ctx context.Context, runID string, postID int64, cause error) {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	post, err := p.posts.GetByID(persistCtx, postID)
	if err != nil {
		slog.Error("claimed post vanished", "run_id", runID, "post_id", postID, "error", err)
		return
	}

	outcome, err := p.policy.Resolve(post, Attempt{Err: cause, Immediate: true}, p.now())
	if err != nil {
		return
	}
	if err := p.posts.ApplyOutcome(persistCtx, outcome); err != nil {
		slog.Error("failed to store post outcome", "run_id", runID, "post_id", postID, "error", err)
	}
}

func (p *pipeline) release(ctx context.Context, runID string, ids []int64) {
	if len(ids) == 0 {
		return
	}
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := p.posts.ReleaseClaims(persistCtx, ids); err != nil {
		slog.Error("failed to release claimed posts", "run_id", runID, "count", len(ids), "error", err)
		return
	}
	slog.Info("released unstarted posts", "run_id", runID, "count", len(ids))
}

// recordAttempt stores attempt history. Failures are logged and otherwise ignored.
func (p *pipeline) recordAttempt(ctx context.Context, runID string, post *models.Post, outcome *models.PostOutcome) {
	if p.attempts == nil {
		return
	}

	pa := &models.PublishAttempt{
		PostID:     post.ID,
		AccountID:  post.AccountID,
		RunID:      runID,
		Outcome:    outcome.Status,
		TweetCount: len(outcome.TweetIDs),
	}
	if outcome.Error != nil {
		pa.ErrorMessage = *outcome.Error
	}

	if _, err := p.attempts.Create(ctx, pa); err != nil {
		slog.Warn("failed to record publish attempt", "run_id", runID, "post_id", post.ID, "error", err)
	}
}

func postIDs(posts []*models.Post) []int64 {
	ids := make([]int64, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}
	return ids
}

// threadIDs merges ids known before the attempt with the ones it produced.
func threadIDs(post *models.Post, produced []models.PublishedItem) []string {
	byPosition := make(map[int]string, len(post.Items))
	for _, item := range post.Items {
		if item.Published() {
			byPosition[item.Position] = *item.TweetID
		}
	}
	for _, item := range produced {
		byPosition[item.Position] = item.TweetID
	}

	positions := make([]int, 0, len(byPosition))
	for pos := range byPosition {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	ids := make([]string, 0, len(positions))
	for _, pos := range positions {
		ids = append(ids, byPosition[pos])
	}
	return ids
}
