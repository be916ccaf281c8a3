// Copyright 2026 The Wardrobe Authors
// SPDX-License-Identifier: Apache-2.0

package closetremote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource mints and validates the HS256 bearer tokens the HTTP client
// presents to the hosted backend.
type TokenSource struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// Claims are the token claims for a signed-in wardrobe user. The device id
// distinguishes installs of the app syncing the same account.
type Claims struct {
	DeviceID string `json:"did"`
	jwt.RegisteredClaims
}

// NewTokenSource creates a token source with the given signing secret.
func NewTokenSource(secret, issuer string, ttl time.Duration) *TokenSource {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenSource{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Mint signs a token for the user/device pair.
func (t *TokenSource) Mint(userID, deviceID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    t.issuer,
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses and checks a token, returning its claims.
func (t *TokenSource) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("missing sub (user id) in token")
	}
	return claims, nil
}

// TokenFunc returns a token callback for HTTPClient that re-mints shortly
// before expiry and otherwise reuses the cached token.
func (t *TokenSource) TokenFunc(userID, deviceID string) func(ctx context.Context) (string, error) {
	var mu sync.Mutex
	var cached string
	var expires time.Time
	return func(ctx context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if cached != "" && time.Until(expires) > time.Minute {
			return cached, nil
		}
		token, err := t.Mint(userID, deviceID)
		if err != nil {
			return "", fmt.Errorf("failed to mint token: %w", err)
		}
		cached = token
		expires = time.Now().Add(t.ttl)
		return cached, nil
	}
}
