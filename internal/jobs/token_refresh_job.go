package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/maheshrc27/threadflow/internal/service"
)

type TokenRefreshJob struct {
	ar     repository.AccountRepository
	creds  service.CredentialService
	window time.Duration
}

func NewTokenRefreshJob(
	ar repository.AccountRepository,
	creds service.CredentialService,
	window time.Duration) *TokenRefreshJob {
	return &TokenRefreshJob{
		ar:     ar,
		creds:  creds,
		window: window,
	}
}

// RefreshTokens refreshes every account whose token expires within the window. Each
// refresh takes the same per-account lock as publishing.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	accounts, err := c.ar.ListExpiring(ctx, time.Now().Add(c.window))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.Account) {
			defer wg.Done()
			defer func() { <-semaphore }()

			refreshed, err := c.creds.Refresh(ctx, acc.ID, c.window)
			if err != nil {
				slog.Warn("Unable to refresh token", "account_id", acc.ID, "error", err)
				return
			}
			if refreshed {
				slog.Info("Token refreshed", "account_id", acc.ID)
			}
		}(acc)
	}

	wg.Wait()
}
