package service

import (
	"context"
	"time"
)

// StartBroadcastScheduler runs a background loop that fires the scheduled
// topic broadcast once per configured hour of day. It blocks until the
// context is cancelled, so it should be launched in a separate goroutine.
func (s *Service) StartBroadcastScheduler(ctx context.Context, hours []int) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.logger.Info("Broadcast scheduler started")

	var lastSlot string
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Broadcast scheduler stopped")
			return
		case <-ticker.C:
			now := s.now()
			if !containsHour(hours, now.Hour()) {
				continue
			}
			// One run per date-hour slot, however often the ticker fires.
			slot := now.Format("2006-01-02T15")
			if slot == lastSlot {
				continue
			}
			lastSlot = slot

			summary, err := s.BroadcastTopics(ctx)
			if err != nil {
				s.logger.WithError(err).Warn("Scheduled broadcast finished with errors")
			}
			s.logger.Infof("Scheduled broadcast: processed=%d succeeded=%d fallbacks=%d failed=%d",
				summary.Processed, summary.Succeeded, summary.Fallbacks, summary.Failed)
		}
	}
}

func containsHour(hours []int, hour int) bool {
	for _, h := range hours {
		if h == hour {
			return true
		}
	}
	return false
}
