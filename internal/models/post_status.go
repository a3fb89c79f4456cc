package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

type PostStatus string

const (
	PostStatusDraft      PostStatus = "DRAFT"
	PostStatusInReview   PostStatus = "IN_REVIEW"
	PostStatusScheduled  PostStatus = "SCHEDULED"
	PostStatusPublishing PostStatus = "PUBLISHING"
	PostStatusPublished  PostStatus = "PUBLISHED"
	PostStatusFailed     PostStatus = "FAILED"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[PostStatus][]PostStatus{
	PostStatusDraft:      {PostStatusScheduled, PostStatusInReview, PostStatusPublishing},
	PostStatusInReview:   {PostStatusScheduled},
	PostStatusScheduled:  {PostStatusPublishing},
	PostStatusPublishing: {PostStatusPublished, PostStatusScheduled, PostStatusFailed},
	PostStatusPublished:  nil,
	PostStatusFailed:     nil,
}

func ParsePostStatus(s string) (PostStatus, error) {
	st := PostStatus(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown post status %q", s)
	}
	return st, nil
}

// Terminal reports whether the pipeline never re-attempts a post in this status.
func (s PostStatus) Terminal() bool {
	return s == PostStatusPublished || s == PostStatusFailed
}

func (s PostStatus) CanTransition(to PostStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns to when the move is allowed and ErrInvalidTransition otherwise.
func (s PostStatus) Transition(to PostStatus) (PostStatus, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, to)
	}
	return to, nil
}

func (s *PostStatus) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into PostStatus", src)
	}
	st, err := ParsePostStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s PostStatus) Value() (driver.Value, error) {
	if _, ok := transitions[s]; !ok {
		return nil, fmt.Errorf("unknown post status %q", string(s))
	}
	return string(s), nil
}
