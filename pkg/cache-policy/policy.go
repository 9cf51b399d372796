// Package cachepolicy maps asset visibility and mutability to the
// Cache-Control directives the origin emits. Resolution is a pure function
// of asset state: no network, no database, deterministic.
package cachepolicy

import "fmt"

// Visibility of an asset. Immutable after creation.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// Mutability governs which directive class an asset gets.
type Mutability string

const (
	// ImmutableVersioned content is addressed by permanent version URLs and
	// never changes once published.
	ImmutableVersioned Mutability = "versioned"
	// MutableLatest content may be replaced in place, so shared caches get a
	// short lifetime and browsers an even shorter one.
	MutableLatest Mutability = "latest"
)

// Directive header values emitted by Resolve.
const (
	PublicImmutable = "public, max-age=31536000, immutable"
	PublicLatest    = "public, s-maxage=3600, max-age=60"
	PrivateNoStore  = "private, no-store, no-cache, must-revalidate"
)

// Resolve returns the Cache-Control header value for an asset with the
// given visibility and mutability.
func Resolve(v Visibility, m Mutability) string {
	if v == Private {
		return PrivateNoStore
	}
	if m == ImmutableVersioned {
		return PublicImmutable
	}
	return PublicLatest
}

// ParseVisibility validates a visibility string from an external request.
// The empty string defaults to Private.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(s) {
	case "":
		return Private, nil
	case Public, Private:
		return Visibility(s), nil
	}
	return "", fmt.Errorf("unknown visibility %q", s)
}

// ParseMutability validates a mutability string from an external request.
// The empty string defaults to MutableLatest.
func ParseMutability(s string) (Mutability, error) {
	switch Mutability(s) {
	case "":
		return MutableLatest, nil
	case ImmutableVersioned, MutableLatest:
		return Mutability(s), nil
	}
	return "", fmt.Errorf("unknown mutability %q", s)
}
