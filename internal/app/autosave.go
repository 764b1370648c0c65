package app

import (
	"context"
	"time"
)

// autosaveFlushTimeout bounds the final save attempted when autosave stops.
const autosaveFlushTimeout = 5 * time.Second

// RunAutosave retries pending saves every interval until ctx is cancelled,
// then makes one final flush attempt. A non-positive interval disables the loop.
func (s *Service) RunAutosave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), autosaveFlushTimeout)
			s.autosave(flushCtx)
			cancel()
			return
		case <-ticker.C:
			s.autosave(ctx)
		}
	}
}

func (s *Service) autosave(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || !s.dirty {
		return
	}
	if err := s.saveLocked(ctx); err != nil {
		s.log.Warn("autosave failed", "sprint_id", s.session.SprintID, "err", err)
		return
	}
	s.log.Debug("autosave complete", "sprint_id", s.session.SprintID)
}
