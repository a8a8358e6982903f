package middlewares

import (
	"context"
	"errors"
	"strings"

	"github.com/openmined/syftupload/internal/server/auth"
	"github.com/openmined/syftupload/internal/server/chain"
	"github.com/openmined/syftupload/internal/server/handlers/api"
)

const (
	bearerPrefix = "Bearer "
	authHeader   = "Authorization"

	AuthMiddlewareName = "auth"

	// UserContextKey holds the authenticated subject.
	UserContextKey = "user"
	ClaimsKey      = "claims"
)

// BearerAuth is an AuthHook validating an access token from the
// Authorization header.
func BearerAuth(authService *auth.AuthService) AuthHook {
	return func(ctx context.Context, c *chain.Context) (chain.Result, error) {
		value := c.Headers.Get(authHeader)
		if value == "" {
			return nil, api.NewError(api.CodeUnauthorized, "Authorization header is missing")
		}

		if !strings.HasPrefix(value, bearerPrefix) {
			return nil, api.NewError(api.CodeUnauthorized, "Authorization header format must be Bearer {token}")
		}

		token := strings.TrimSpace(strings.TrimPrefix(value, bearerPrefix))
		if token == "" {
			return nil, api.NewError(api.CodeUnauthorized, "token is missing")
		}

		claims, err := authService.ValidateAccessToken(ctx, token)
		if err != nil {
			return nil, api.NewError(api.CodeUnauthorized, err.Error())
		}

		return chain.Result{
			UserContextKey: claims.Subject,
			ClaimsKey:      claims,
		}, nil
	}
}

// Auth runs BearerAuth as its own chain middleware, for servers that
// authenticate with access tokens but do not verify signatures.
func Auth(authService *auth.AuthService, skipPaths []string) (*chain.Middleware, error) {
	if authService == nil || !authService.IsEnabled() {
		return nil, errors.New("auth middleware: auth service is not enabled")
	}
	if skipPaths == nil {
		skipPaths = DefaultUnsignedPaths
	}

	return chain.New(chain.Config{
		Name:      AuthMiddlewareName,
		SkipPaths: skipPaths,
		Handler:   chain.HandlerFunc(BearerAuth(authService)),
	})
}
