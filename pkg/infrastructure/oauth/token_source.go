package oauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Token represents the OAuth token structure we care about
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// TokenSource returns a valid token.
// It is safe for concurrent use by multiple goroutines.
type TokenSource interface {
	Token(context.Context) (*Token, error)
	ForceRefresh(context.Context) (*Token, error)
}

// RefreshTokenSource holds a single account's token in memory and exchanges
// the refresh token when the access token is missing, expired or rejected.
type RefreshTokenSource struct {
	config *oauth2.Config

	mu      sync.Mutex
	current *oauth2.Token
}

// NewRefreshTokenSource creates a source seeded with an optional access token.
// An access token without a known expiry is used until the remote rejects it.
func NewRefreshTokenSource(config *oauth2.Config, accessToken, refreshToken string) *RefreshTokenSource {
	return &RefreshTokenSource{
		config: config,
		current: &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "Bearer",
		},
	}
}

// Token returns the current token, refreshing it first if it is not valid.
func (s *RefreshTokenSource) Token(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Valid() {
		return toToken(s.current), nil
	}
	return s.refresh(ctx)
}

// ForceRefresh forcibly refreshes the token regardless of expiry.
func (s *RefreshTokenSource) ForceRefresh(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh(ctx)
}

func (s *RefreshTokenSource) refresh(ctx context.Context) (*Token, error) {
	if s.current.RefreshToken == "" {
		return nil, fmt.Errorf("missing refresh token")
	}

	// An empty access token makes the oauth2 source exchange the refresh token.
	src := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: s.current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token exchange: %w", err)
	}
	s.current = tok
	return toToken(tok), nil
}

func toToken(t *oauth2.Token) *Token {
	return &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}
