package middlewares

import (
	"context"
	"fmt"
	"time"

	"github.com/openmined/syftupload/internal/server/chain"
	"github.com/openmined/syftupload/internal/server/handlers/api"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const (
	RateLimitMiddlewareName = "rateLimit"
	RateLimitKey            = "rateLimit"

	// HeaderClientID is a stable per-installation id sent by the SDK.
	HeaderClientID = "x-client-id"
)

// RateLimit limits requests per client with a formatted rate such as "100-M".
func RateLimit(formattedRate string, skipPaths []string) (*chain.Middleware, error) {
	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return newRateLimit(limiter.New(memory.NewStore(), rate), skipPaths)
}

func newRateLimit(l *limiter.Limiter, skipPaths []string) (*chain.Middleware, error) {
	return chain.New(chain.Config{
		Name:      RateLimitMiddlewareName,
		SkipPaths: skipPaths,
		Handler: func(ctx context.Context, c *chain.Context) (chain.Result, error) {
			key := rateLimitKey(c)

			lctx, err := l.Get(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}

			if lctx.Reached {
				return nil, api.NewError(api.CodeRateLimitExceeded, "rate limit exceeded").
					WithDetail("limit", lctx.Limit).
					WithDetail("resetAt", time.Unix(lctx.Reset, 0).UTC().Format(time.RFC3339))
			}

			return chain.Result{RateLimitKey: lctx}, nil
		},
	})
}

// rateLimitKey prefers the authenticated user, then the client id, then the
// remote IP. It runs after signature verification, so only holders of the
// shared secret can choose the first two.
func rateLimitKey(c *chain.Context) string {
	if user, ok := c.Get(UserContextKey); ok {
		if s, ok := user.(string); ok && s != "" {
			return "user:" + s
		}
	}
	if id := c.Headers.Get(HeaderClientID); id != "" {
		return "client:" + id
	}
	return "ip:" + c.ClientIP
}
