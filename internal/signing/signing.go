// Package signing implements the HMAC request signature shared by the upload
// SDK and the control-plane server.
//
// The canonical string is
//
//	METHOD \n PATH \n TIMESTAMP \n NONCE \n hex(sha256(raw body))
//
// where METHOD is upper-cased, TIMESTAMP is Unix milliseconds and NONCE is empty
// when absent. The body is hashed exactly as sent, never re-serialized, so both
// sides must sign the same bytes that travel on the wire.
package signing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openmined/syftupload/internal/nonce"
)

const (
	HeaderSignature = "x-signature"
	HeaderTimestamp = "x-timestamp"
	HeaderNonce     = "x-nonce"

	DefaultTimestampTolerance = 5 * time.Minute
)

var (
	ErrNoSecret          = errors.New("signing: secret is required")
	ErrNegativeTolerance = errors.New("signing: timestamp tolerance must be positive")
)

// Reason explains why a verification failed.
type Reason string

const (
	ReasonTimestampInvalid  Reason = "timestamp_invalid"
	ReasonTimestampExpired  Reason = "timestamp_expired"
	ReasonNonceMissing      Reason = "nonce_missing"
	ReasonNonceReused       Reason = "nonce_reused"
	ReasonSignatureMismatch Reason = "signature_mismatch"
)

// Config is fixed for the lifetime of a Signer.
type Config struct {
	Secret             []byte
	TimestampTolerance time.Duration
	RequireNonce       bool
}

// Signer signs and verifies requests. It is safe for concurrent use.
type Signer struct {
	secret       []byte
	tolerance    time.Duration
	requireNonce bool
	nowFn        func() time.Time
}

// Option customizes a Signer.
type Option func(*Signer)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.nowFn = now
	}
}

// New creates a Signer. The secret is copied.
func New(cfg Config, opts ...Option) (*Signer, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}
	if cfg.TimestampTolerance < 0 {
		return nil, ErrNegativeTolerance
	}

	tolerance := cfg.TimestampTolerance
	if tolerance == 0 {
		tolerance = DefaultTimestampTolerance
	}

	s := &Signer{
		secret:       append([]byte(nil), cfg.Secret...),
		tolerance:    tolerance,
		requireNonce: cfg.RequireNonce,
		nowFn:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tolerance returns the accepted clock skew in either direction.
func (s *Signer) Tolerance() time.Duration {
	return s.tolerance
}

// RequireNonce reports whether requests without a nonce are rejected.
func (s *Signer) RequireNonce() bool {
	return s.requireNonce
}

type SignInput struct {
	Method string
	Path   string
	Body   []byte
	Nonce  string
}

type SignOutput struct {
	Signature string
	Timestamp int64
	Headers   map[string]string
}

// Sign stamps the request with the current time and returns the transport
// headers to attach.
func (s *Signer) Sign(in *SignInput) *SignOutput {
	ts := s.nowFn().UnixMilli()
	sig := s.compute(in.Method, in.Path, ts, in.Nonce, in.Body)

	headers := map[string]string{
		HeaderSignature: sig,
		HeaderTimestamp: strconv.FormatInt(ts, 10),
	}
	if in.Nonce != "" {
		headers[HeaderNonce] = in.Nonce
	}

	return &SignOutput{
		Signature: sig,
		Timestamp: ts,
		Headers:   headers,
	}
}

type VerifyInput struct {
	Method    string
	Path      string
	Body      []byte
	Signature string
	Timestamp string
	Nonce     string
}

type VerifyResult struct {
	Valid  bool
	Reason Reason
}

func failed(reason Reason) VerifyResult {
	return VerifyResult{Valid: false, Reason: reason}
}

// Verify checks a signed request. Checks run in a fixed order: timestamp,
// nonce presence, nonce reuse (read-only), signature, and only then is the
// nonce recorded, so a forged signature cannot burn a legitimate nonce.
//
// store may be nil, in which case replay protection is skipped. The returned
// error is reserved for store failures; verification failures are reported
// through VerifyResult.
func (s *Signer) Verify(ctx context.Context, in *VerifyInput, store nonce.Store) (VerifyResult, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(in.Timestamp), 10, 64)
	if err != nil || ts <= 0 {
		return failed(ReasonTimestampInvalid), nil
	}

	skew := s.nowFn().Sub(time.UnixMilli(ts))
	if skew < 0 {
		skew = -skew
	}
	if skew > s.tolerance {
		return failed(ReasonTimestampExpired), nil
	}

	if s.requireNonce && in.Nonce == "" {
		return failed(ReasonNonceMissing), nil
	}

	if store != nil && in.Nonce != "" {
		if peeker, ok := store.(nonce.Peeker); ok {
			used, err := peeker.Seen(ctx, in.Nonce)
			if err != nil {
				return VerifyResult{}, fmt.Errorf("nonce lookup: %w", err)
			}
			if used {
				return failed(ReasonNonceReused), nil
			}
		}
	}

	expected := s.compute(in.Method, in.Path, ts, in.Nonce, in.Body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(in.Signature))) {
		return failed(ReasonSignatureMismatch), nil
	}

	if store != nil && in.Nonce != "" {
		fresh, err := store.Record(ctx, in.Nonce)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("nonce record: %w", err)
		}
		if !fresh {
			return failed(ReasonNonceReused), nil
		}
	}

	return VerifyResult{Valid: true}, nil
}

func (s *Signer) compute(method, path string, ts int64, nonce string, body []byte) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(CanonicalString(method, path, ts, nonce, body)))
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalString builds the exact string that is signed.
func CanonicalString(method, path string, ts int64, nonce string, body []byte) string {
	bodyHash := sha256.Sum256(body)

	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteString("\n")
	b.WriteString(path)
	b.WriteString("\n")
	b.WriteString(strconv.FormatInt(ts, 10))
	b.WriteString("\n")
	b.WriteString(nonce)
	b.WriteString("\n")
	b.WriteString(hex.EncodeToString(bodyHash[:]))
	return b.String()
}
