package scheduler

import (
	"context"

	"licensegate/logger"
	"licensegate/metrics"
	"licensegate/middleware"
	"licensegate/services"
)

// RefreshLicenseGauges copies registry counts into the metrics gauges.
func RefreshLicenseGauges(licenses services.LicenseService, m *metrics.Metrics) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		stats, err := licenses.Stats(ctx)
		if err != nil {
			return err
		}
		m.SetLicenseCounts(stats.ByStatus, stats.DevicesBound)
		return nil
	}
}

// PruneRateLimiter drops idle per-client buckets.
func PruneRateLimiter(rl *middleware.RateLimiter) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if removed := rl.Cleanup(); removed > 0 {
			logger.Debug("Pruned %d idle rate limit bucket(s)", removed)
		}
		return nil
	}
}
