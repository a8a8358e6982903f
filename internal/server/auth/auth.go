package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// AuthService validates the bearer tokens presented alongside signed
// control-plane requests and mints them for operators.
type AuthService struct {
	config *Config
}

func NewAuthService(config *Config) *AuthService {
	return &AuthService{config: config}
}

func (s *AuthService) IsEnabled() bool {
	return s.config.Enabled
}

// IssueAccessToken mints an access token for subject.
func (s *AuthService) IssueAccessToken(subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrEmptySubject
	}

	token, err := NewAccessToken(subject, s.config.TokenIssuer, s.config.AccessTokenSecret, s.config.AccessTokenExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	slog.Debug("issued access token", "subject", subject, "expiry", s.config.AccessTokenExpiry)
	return token, nil
}

func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, ErrInvalidAccessToken
	}

	claims, err := ParseClaims(accessToken, s.config.AccessTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}

	if claims.Type != AccessToken {
		return nil, fmt.Errorf("%w: wrong token type got %q", ErrInvalidAccessToken, claims.Type)
	}

	if s.config.TokenIssuer != "" && claims.Issuer != s.config.TokenIssuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidAccessToken, claims.Issuer)
	}

	return claims, nil
}
