package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current counts for gauge metrics.
// Each function returns the current count; returning -1 indicates the source
// is unavailable.
type StatsSource struct {
	PendingReportCount func() int
	AuditRecordCount   func() int
	SessionCount       func() int
}

// StartCollector launches a goroutine that periodically updates gauge metrics.
// It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	collect(src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(src StatsSource) {
	if src.PendingReportCount != nil {
		if n := src.PendingReportCount(); n >= 0 {
			ReportsPending.Set(float64(n))
		}
	}
	if src.AuditRecordCount != nil {
		if n := src.AuditRecordCount(); n >= 0 {
			AuditRecordsTotal.Set(float64(n))
		}
	}
	if src.SessionCount != nil {
		if n := src.SessionCount(); n >= 0 {
			DashboardSessions.Set(float64(n))
		}
	}
}
