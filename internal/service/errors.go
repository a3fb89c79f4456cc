package service

import (
	"errors"
	"fmt"

	"github.com/maheshrc27/threadflow/internal/models"
)

// ErrConfig marks missing or unusable credentials and configuration.
var ErrConfig = errors.New("configuration error")

// APIError is a non-success response from the X API or the OAuth2 token endpoint.
// Body is kept verbatim.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// TransferError is a failed media download or upload.
type TransferError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media transfer %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("media transfer %s: download returned status %d", e.URL, e.Status)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// PartialThreadError reports a thread that stopped at Position. Published holds the
// ids produced by this attempt before the failure.
type PartialThreadError struct {
	Position  int
	Published []models.PublishedItem
	Err       error
}

func (e *PartialThreadError) Error() string {
	return fmt.Sprintf("thread stopped at position %d after %d new posts: %v", e.Position, len(e.Published), e.Err)
}

func (e *PartialThreadError) Unwrap() error {
	return e.Err
}
