package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current counts for gauge metrics.
// Nil functions are skipped.
type StatsSource struct {
	WorkingSetCount func() int
	VisibleCount    func() int
	FeedConnected   func() bool
	FeedStats       func() (events, bytes int64)
	CacheEntries    func() int
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
	if src.WorkingSetCount != nil {
		WorkingSetComments.Set(float64(src.WorkingSetCount()))
	}
	if src.VisibleCount != nil {
		VisibleComments.Set(float64(src.VisibleCount()))
	}
	if src.FeedConnected != nil {
		if src.FeedConnected() {
			FeedConnectionState.Set(1)
		} else {
			FeedConnectionState.Set(0)
		}
	}
	if src.FeedStats != nil {
		events, bytes := src.FeedStats()
		FeedEventsReceived.Set(float64(events))
		FeedBytesReceived.Set(float64(bytes))
	}
	if src.CacheEntries != nil {
		CacheEntries.Set(float64(src.CacheEntries()))
	}
}
