package middlewares

import (
	"context"
	"errors"
	"fmt"

	"github.com/openmined/syftupload/internal/nonce"
	"github.com/openmined/syftupload/internal/server/chain"
	"github.com/openmined/syftupload/internal/server/handlers/api"
	"github.com/openmined/syftupload/internal/signing"
)

const (
	SignatureMiddlewareName = "signature"

	// SignatureKey holds a VerifiedSignature in the chain context.
	SignatureKey = "signature"
)

// DefaultUnsignedPaths are reachable without a signature.
var DefaultUnsignedPaths = []string{"/", "/healthz"}

// AuthHook runs after a request's signature has been verified. A returned
// error is reported as UNAUTHORIZED unless it is already an *api.Error.
type AuthHook func(ctx context.Context, c *chain.Context) (chain.Result, error)

type VerifiedSignature struct {
	Timestamp string
	Nonce     string
}

type SignatureConfig struct {
	Signer    *signing.Signer
	Nonces    nonce.Store
	SkipPaths []string
	AuthHook  AuthHook
}

var reasonCodes = map[signing.Reason]string{
	signing.ReasonTimestampInvalid:  api.CodeTimestampInvalid,
	signing.ReasonTimestampExpired:  api.CodeTimestampExpired,
	signing.ReasonNonceMissing:      api.CodeNonceMissing,
	signing.ReasonNonceReused:       api.CodeNonceReused,
	signing.ReasonSignatureMismatch: api.CodeSignatureInvalid,
}

var reasonMessages = map[signing.Reason]string{
	signing.ReasonTimestampInvalid:  "timestamp must be Unix milliseconds",
	signing.ReasonTimestampExpired:  "timestamp is outside the accepted window, check the client clock",
	signing.ReasonNonceMissing:      "nonce is required",
	signing.ReasonNonceReused:       "nonce was already used, sign the request again with a new nonce",
	signing.ReasonSignatureMismatch: "signature does not match the request",
}

// Signature authenticates requests signed with the shared secret. Missing
// headers are reported before the signer runs so that a malformed request is
// distinguishable from one that failed verification.
func Signature(cfg SignatureConfig) (*chain.Middleware, error) {
	if cfg.Signer == nil {
		return nil, errors.New("signature middleware: signer is required")
	}

	skip := cfg.SkipPaths
	if skip == nil {
		skip = DefaultUnsignedPaths
	}

	return chain.New(chain.Config{
		Name:      SignatureMiddlewareName,
		SkipPaths: skip,
		Handler: func(ctx context.Context, c *chain.Context) (chain.Result, error) {
			sig := c.Headers.Get(signing.HeaderSignature)
			if sig == "" {
				return nil, api.NewError(api.CodeSignatureMissing, "x-signature header is required")
			}
			ts := c.Headers.Get(signing.HeaderTimestamp)
			if ts == "" {
				return nil, api.NewError(api.CodeTimestampMissing, "x-timestamp header is required")
			}
			n := c.Headers.Get(signing.HeaderNonce)
			if n == "" && cfg.Signer.RequireNonce() {
				return nil, api.NewError(api.CodeNonceMissing, "x-nonce header is required")
			}

			res, err := cfg.Signer.Verify(ctx, &signing.VerifyInput{
				Method:    c.Method,
				Path:      c.Path,
				Body:      c.Body,
				Signature: sig,
				Timestamp: ts,
				Nonce:     n,
			}, cfg.Nonces)
			if err != nil {
				return nil, fmt.Errorf("signature verification: %w", err)
			}
			if !res.Valid {
				return nil, api.NewError(reasonCodes[res.Reason], reasonMessages[res.Reason]).
					WithDetail("reason", string(res.Reason))
			}

			result := chain.Result{
				SignatureKey: &VerifiedSignature{Timestamp: ts, Nonce: n},
			}
			if cfg.AuthHook == nil {
				return result, nil
			}

			// the hook sees the verified signature like any later middleware would
			c.Values[SignatureKey] = result[SignatureKey]
			extra, err := cfg.AuthHook(ctx, c)
			if err != nil {
				var apiErr *api.Error
				if errors.As(err, &apiErr) {
					return nil, err
				}
				return nil, api.NewError(api.CodeUnauthorized, err.Error())
			}
			for k, v := range extra {
				result[k] = v
			}
			return result, nil
		},
	})
}
