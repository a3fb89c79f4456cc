package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/transfer"
)

const (
	minPollOptions      = 2
	defaultPollDuration = 24 * 60
)

type ThreadService interface {
	PublishThread(ctx context.Context, post *models.Post) ([]models.PublishedItem, error)
}

type threadService struct {
	creds CredentialService
	media MediaService
}

func NewThreadService(creds CredentialService, media MediaService) ThreadService {
	return &threadService{creds: creds, media: media}
}

// PublishThread publishes the post's items in position order as a reply chain and
// returns the ids produced by this call. Items that already carry an external id are
// skipped and the next reply chains to the last existing id. On a failure after any
// item is live the error is a *PartialThreadError and the returned slice still holds
// everything published before it.
func (s *threadService) PublishThread(ctx context.Context, post *models.Post) ([]models.PublishedItem, error) {
	items, err := orderedItems(post)
	if err != nil {
		return nil, err
	}

	pending := false
	for _, item := range items {
		if !item.Published() {
			pending = true
			break
		}
	}
	if !pending {
		return nil, nil
	}

	client, err := s.creds.GetClient(ctx, *post.AccountID)
	if err != nil {
		return nil, err
	}

	var published []models.PublishedItem
	var previousID string
	for _, item := range items {
		if item.Published() {
			previousID = *item.TweetID
			continue
		}

		tweetID, err := s.publishItem(ctx, client, post, item, previousID)
		if err != nil {
			slog.Info("thread item failed", "post_id", post.ID, "position", item.Position, "error", err)
			if previousID == "" {
				return published, err
			}
			return published, &PartialThreadError{Position: item.Position, Published: published, Err: err}
		}

		item.TweetID = &tweetID
		published = append(published, models.PublishedItem{Position: item.Position, TweetID: tweetID})
		previousID = tweetID
	}

	return published, nil
}

func (s *threadService) publishItem(ctx context.Context, client XClient, post *models.Post, item *models.ThreadItem, replyTo string) (string, error) {
	req := &transfer.CreatePostRequest{Text: item.Text}

	if len(item.Media) > 0 {
		mediaIDs := make([]string, 0, len(item.Media))
		for _, m := range item.Media {
			mediaID, err := s.media.Transfer(ctx, client, m.URL, m.Kind)
			if err != nil {
				return "", err
			}
			if m.AltText != "" {
				if err := client.SetAltText(ctx, mediaID, m.AltText); err != nil {
					return "", err
				}
			}
			mediaIDs = append(mediaIDs, mediaID)
		}
		req.Media = &transfer.PostMedia{MediaIDs: mediaIDs}
	}

	if item.Position == 0 && len(item.PollOptions) >= minPollOptions {
		options := make([]string, 0, len(item.PollOptions))
		for _, o := range item.PollOptions {
			options = append(options, o.Label)
		}
		duration := post.PollDuration
		if duration <= 0 {
			duration = defaultPollDuration
		}
		req.Poll = &transfer.PostPoll{Options: options, DurationMinutes: duration}
	}

	if item.Position > 0 {
		req.Reply = &transfer.PostReply{InReplyToTweetID: replyTo}
	}

	return client.CreatePost(ctx, req)
}

// orderedItems validates the thread shape and returns its items sorted by position.
func orderedItems(post *models.Post) ([]*models.ThreadItem, error) {
	err := validation.ValidateStruct(post,
		validation.Field(&post.AccountID, validation.Required),
		validation.Field(&post.Items, validation.Required),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: post %d: %v", ErrConfig, post.ID, err)
	}

	items := make([]*models.ThreadItem, len(post.Items))
	copy(items, post.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })

	for i, item := range items {
		if item.Position != i {
			return nil, fmt.Errorf("%w: post %d: thread positions are not contiguous at %d", ErrConfig, post.ID, i)
		}
		if err := validation.ValidateStruct(item, validation.Field(&item.Text, validation.Required)); err != nil {
			return nil, fmt.Errorf("%w: post %d position %d: %v", ErrConfig, post.ID, i, err)
		}
		if i > 0 && item.Published() && !items[i-1].Published() {
			return nil, fmt.Errorf("%w: post %d: position %d is published but %d is not", ErrConfig, post.ID, i, i-1)
		}
	}

	return items, nil
}

// IsPartial reports whether err left some thread items published.
func IsPartial(err error) bool {
	var pe *PartialThreadError
	return errors.As(err, &pe)
}
