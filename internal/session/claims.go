package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the display view of the credential's JWT payload.
type Claims struct {
	Email     string
	Name      string
	Picture   string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token's exp claim is in the past relative to now.
// A token without exp never reports expired.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

type userInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	ID      string `json:"id"`
}

type tokenClaims struct {
	UserInfo userInfo `json:"user_info"`
	jwt.RegisteredClaims
}

// Inspect decodes the stored credential without verifying its signature.
func (s *Session) Inspect() (*Claims, error) {
	token, ok := s.Credential()
	if !ok {
		return nil, ErrNoCredential
	}
	return ParseClaims(token)
}

// ParseClaims decodes an unverified JWT into Claims.
func ParseClaims(token string) (*Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return nil, fmt.Errorf("credential is not a readable JWT: %w", err)
	}

	c := &Claims{
		Email:   tc.UserInfo.Email,
		Name:    tc.UserInfo.Name,
		Picture: tc.UserInfo.Picture,
		UserID:  tc.UserInfo.ID,
	}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}
