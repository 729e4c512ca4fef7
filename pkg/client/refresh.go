package client

import (
	"context"
	"fmt"
	"time"
)

const refreshLimit = 100

// Refresh replaces the local snapshot with a fresh personalized (or
// popular, for anonymous installs) corpus from the backend. Unlike the
// per-keystroke search path, a failed refresh retries with exponential
// backoff (1s, 2s, 4s) before surfacing the error. The existing snapshot
// stays intact on failure, so completion keeps working offline.
func (s *Searcher) Refresh(ctx context.Context, language string) error {
	var lastErr error

	for attempt := 1; attempt <= s.refreshAttempts; attempt++ {
		snaps, personalized, err := s.backend.FetchSnippets(ctx, s.userID, language, refreshLimit)
		if err == nil {
			s.setSnapshot(snaps)
			s.logger.Debugf("loaded %d %s snippets", len(snaps), fetchKind(personalized))
			return nil
		}

		lastErr = err
		s.logger.Warnf("snippet refresh attempt %d/%d failed: %v", attempt, s.refreshAttempts, err)

		if attempt < s.refreshAttempts {
			delay := time.Duration(1<<(attempt-1)) * time.Second
			s.sleep(delay)
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}
	return fmt.Errorf("snippet refresh failed after %d attempts: %w", s.refreshAttempts, lastErr)
}

func fetchKind(personalized bool) string {
	if personalized {
		return "personalized"
	}
	return "popular"
}
