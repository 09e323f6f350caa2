// Package reputation is the trust-score collaborator contract. Recalculation
// runs after settlements and dispute resolutions; failures are logged and
// never abort the triggering operation.
package reputation

import (
	"context"
	"log/slog"
)

type Scorer interface {
	RecalculateTrustScore(ctx context.Context, userID string) error
}

type LogScorer struct{}

func (LogScorer) RecalculateTrustScore(_ context.Context, userID string) error {
	slog.Debug("trust score recalculation requested", "user_id", userID)
	return nil
}
