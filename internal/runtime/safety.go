package runtime

import (
	"context"

	"github.com/aretw0/lectern/pkg/domain"
)

// screen passes text through the safety gate. Without a risk checker everything passes.
func (e *Engine) screen(ctx context.Context, text string) error {
	if e.risk == nil || text == "" {
		return nil
	}
	verdict, err := e.risk.Check(ctx, text)
	if err != nil {
		return &domain.UpstreamError{Service: "risk", Err: err}
	}
	if !verdict.Pass {
		return &domain.RiskRejectedError{Label: verdict.Label}
	}
	return nil
}
