package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedGenerator throttles completion calls against a shared backend.
// Consolidation sweeps can fan out one summarization call per entity; the
// limiter keeps that burst from starving interactive resolution traffic.
type rateLimitedGenerator struct {
	inner   TextGenerator
	limiter *rate.Limiter
}

// WithRateLimit wraps gen so that at most reqPerMinute completions are
// started per minute, with the given burst. Waits (honoring ctx) rather
// than rejecting. reqPerMinute <= 0 returns gen unchanged.
func WithRateLimit(gen TextGenerator, reqPerMinute int, burst int) TextGenerator {
	if reqPerMinute <= 0 {
		return gen
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedGenerator{
		inner:   gen,
		limiter: rate.NewLimiter(rate.Limit(float64(reqPerMinute)/60.0), burst),
	}
}

func (g *rateLimitedGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return g.inner.Complete(ctx, prompt)
}

func (g *rateLimitedGenerator) GetModel() string {
	return g.inner.GetModel()
}
