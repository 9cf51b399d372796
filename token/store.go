// Package token issues, validates and revokes the bounded-lifetime
// capability tokens that gate private assets.
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	cachepolicy "github.com/asset-origin/asset-origin/pkg/cache-policy"
	"github.com/asset-origin/asset-origin/pkg/clock"
	"github.com/asset-origin/asset-origin/registry"
)

// ErrInvalid is returned for any token that cannot be used: unknown,
// revoked, expired, or bound to an asset that no longer exists. Callers
// must not be able to tell these cases apart.
var ErrInvalid = errors.New("token: invalid")

// tokenBytes is the entropy of a token before encoding: 256 bits.
const tokenBytes = 32

// Store issues and validates access tokens backed by the registry
// repository.
type Store struct {
	repo  registry.Repository
	clock clock.Clock
	log   zerolog.Logger
}

func NewStore(repo registry.Repository, clk clock.Clock, logger zerolog.Logger) *Store {
	if clk == nil {
		clk = clock.System()
	}
	return &Store{repo: repo, clock: clk, log: logger}
}

// Issue creates a token for the given private asset. It fails with the
// registry's not-found error if the asset does not exist or is not
// private.
func (s *Store) Issue(ctx context.Context, assetID string, ttl time.Duration) (registry.AccessToken, error) {
	a, err := s.repo.GetAsset(ctx, assetID)
	if err != nil {
		return registry.AccessToken{}, err
	}
	if a.Visibility != cachepolicy.Private {
		return registry.AccessToken{}, fmt.Errorf("%w: tokens are only issued for private assets", registry.ErrNotFound)
	}

	now := s.clock.Now()
	t := registry.AccessToken{
		AssetID:   assetID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	for {
		t.Token = generate()
		err := s.repo.InsertToken(ctx, t)
		if err == nil {
			break
		}
		if !errors.Is(err, registry.ErrConflict) {
			return registry.AccessToken{}, err
		}
		// token string collision: with 256 bits of entropy this is
		// astronomically unlikely, so just generate a new one
	}
	s.log.Debug().
		Str("asset", assetID).
		Time("expires", t.ExpiresAt).
		Msg("Issued access token")
	return t, nil
}

// Validate resolves the asset a token grants access to.
//
// Unknown, revoked and expired tokens all run the same checks and produce
// the same ErrInvalid, so neither the outcome nor its shape reveals which
// condition failed.
func (s *Store) Validate(ctx context.Context, tok string) (string, error) {
	t, err := s.repo.GetToken(ctx, tok)
	known := err == nil
	if err != nil && !errors.Is(err, registry.ErrNotFound) {
		return "", err
	}
	now := s.clock.Now()
	valid := known && !t.Revoked && now.Before(t.ExpiresAt)
	if !valid {
		return "", ErrInvalid
	}
	return t.AssetID, nil
}

// Revoke marks the token unusable. Revoking an unknown or already revoked
// token is a no-op; a revoked token is never resurrected.
func (s *Store) Revoke(ctx context.Context, tok string) error {
	return s.repo.RevokeToken(ctx, tok)
}

// generate returns a fresh high-entropy token string.
func generate() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
