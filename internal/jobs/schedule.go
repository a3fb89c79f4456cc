package job

import (
	"fmt"

	"github.com/robfig/cron"
)

// Schedule adds the sweep and token refresh jobs to c. An empty schedule leaves that job out.
func Schedule(c *cron.Cron, sweepSpec string, sweep *StaleSweepJob, refreshSpec string, refresh *TokenRefreshJob) error {
	if sweepSpec != "" {
		if err := c.AddFunc(sweepSpec, sweep.Sweep); err != nil {
			return fmt.Errorf("sweep schedule %q: %w", sweepSpec, err)
		}
	}
	if refreshSpec != "" {
		if err := c.AddFunc(refreshSpec, refresh.RefreshTokens); err != nil {
			return fmt.Errorf("token refresh schedule %q: %w", refreshSpec, err)
		}
	}
	return nil
}
