package engine

import (
	"context"
	"fmt"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

// PotentialJobs lists the pending jobs a translator is eligible to accept,
// applying the same gates as the candidate search run from the job side.
func (e *Engine) PotentialJobs(ctx context.Context, translatorID string) ([]domain.Job, error) {
	tr, err := e.store.GetTranslator(ctx, translatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve translator: %w", err)
	}
	return e.matcher.PotentialJobs(ctx, tr)
}
