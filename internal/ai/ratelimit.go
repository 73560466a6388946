package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

type rateLimitedEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

// WithRateLimit throttles calls to next. A non-positive rps disables the limit.
func WithRateLimit(next IEmbedder, rps float64, burst int) IEmbedder {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedEmbedder{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, appErr.Embedding(fmt.Errorf("rate limit wait: %w", err))
	}
	return r.next.Embed(ctx, text)
}

func (r *rateLimitedEmbedder) ModelName() string {
	return r.next.ModelName()
}
