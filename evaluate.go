package assetorigin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	cachepolicy "github.com/asset-origin/asset-origin/pkg/cache-policy"
	"github.com/asset-origin/asset-origin/pkg/fingerprint"
	"github.com/asset-origin/asset-origin/registry"
	"github.com/asset-origin/asset-origin/token"
)

// Evaluation is the outcome of a conditional read. It is the only place in
// the engine where a 200-vs-304 decision is made.
type Evaluation struct {
	// NotModified reports that the client's validator matched the current
	// fingerprint. Content is nil and the response must carry no body.
	NotModified bool
	// Content streams the bytes from the blob store. Nil on NotModified.
	Content io.ReadCloser
	// Fingerprint is the strong validator for the served content.
	Fingerprint fingerprint.Fingerprint
	// Directives is the Cache-Control value for this asset state. It is
	// attached on both full and not-modified outcomes, so caches keep
	// knowing the policy on a 304.
	Directives   string
	MimeType     string
	FileName     string
	SizeBytes    int64
	LastModified time.Time
}

// Close releases the content stream, if any.
func (ev *Evaluation) Close() {
	if ev.Content != nil {
		ev.Content.Close()
	}
}

// Evaluate decides the outcome of a public read. Private assets are never
// served on this path: they are only reachable through EvaluatePrivate,
// which takes the token as the sole identifier, so a token can never be
// combined with an unrelated asset id.
func (o *Origin) Evaluate(ctx context.Context, assetID, clientValidator string) (Evaluation, error) {
	a, err := o.registry.Get(ctx, assetID)
	if err != nil {
		return Evaluation{}, err
	}
	if a.Visibility != cachepolicy.Public {
		return Evaluation{}, ErrForbidden
	}
	return o.evaluateAsset(ctx, a, clientValidator)
}

// EvaluatePrivate decides the outcome of a private read. Any unusable
// token, including one whose asset has been deleted, yields ErrForbidden
// with no further detail.
func (o *Origin) EvaluatePrivate(ctx context.Context, accessToken, clientValidator string) (Evaluation, error) {
	assetID, err := o.tokens.Validate(ctx, accessToken)
	if err != nil {
		if errors.Is(err, token.ErrInvalid) {
			return Evaluation{}, ErrForbidden
		}
		return Evaluation{}, err
	}
	a, err := o.registry.Get(ctx, assetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Evaluation{}, ErrForbidden
		}
		return Evaluation{}, err
	}
	return o.evaluateAsset(ctx, a, clientValidator)
}

// EvaluateVersion decides the outcome of an immutable versioned read. The
// comparison algorithm is the same as for current content; only the
// directives differ.
func (o *Origin) EvaluateVersion(ctx context.Context, assetID string, number int64, clientValidator string) (Evaluation, error) {
	a, err := o.registry.Get(ctx, assetID)
	if err != nil {
		return Evaluation{}, err
	}
	if a.Visibility != cachepolicy.Public {
		return Evaluation{}, ErrForbidden
	}
	v, err := o.registry.Version(ctx, assetID, number)
	if err != nil {
		return Evaluation{}, err
	}
	ev := Evaluation{
		Fingerprint:  v.Fingerprint,
		Directives:   cachepolicy.PublicImmutable,
		MimeType:     a.MimeType,
		FileName:     a.FileName,
		SizeBytes:    v.SizeBytes,
		LastModified: v.CreatedAt,
	}
	if validatorMatches(clientValidator, v.Fingerprint) {
		ev.NotModified = true
		return ev, nil
	}
	content, err := o.registry.OpenVersion(ctx, v)
	if err != nil {
		return Evaluation{}, fmt.Errorf("open version content: %w", err)
	}
	ev.Content = content
	return ev, nil
}

func (o *Origin) evaluateAsset(ctx context.Context, a registry.Asset, clientValidator string) (Evaluation, error) {
	ev := Evaluation{
		Fingerprint:  a.CurrentFingerprint,
		Directives:   cachepolicy.Resolve(a.Visibility, a.Mutability),
		MimeType:     a.MimeType,
		FileName:     a.FileName,
		SizeBytes:    a.SizeBytes,
		LastModified: a.UpdatedAt,
	}
	if validatorMatches(clientValidator, a.CurrentFingerprint) {
		ev.NotModified = true
		return ev, nil
	}
	content, err := o.registry.Open(ctx, a)
	if err != nil {
		return Evaluation{}, fmt.Errorf("open content: %w", err)
	}
	ev.Content = content
	return ev, nil
}

// validatorMatches compares a client-supplied validator against the stored
// fingerprint using exact string equality. Validators here are always
// strong; weak-comparison semantics do not apply.
func validatorMatches(clientValidator string, fp fingerprint.Fingerprint) bool {
	return clientValidator != "" && fingerprint.FromETag(clientValidator) == fp
}
