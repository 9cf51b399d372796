// Package fingerprint computes the strong content validators used for
// conditional requests.
//
// A fingerprint is computed once, at the point content becomes durable
// (upload or publish), and stored alongside the metadata. It is never
// recomputed on the read path.
package fingerprint

import (
	"fmt"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Fingerprint is the hex-encoded SHA-256 digest of content bytes.
type Fingerprint string

// FromBytes computes the fingerprint of the given content.
func FromBytes(b []byte) Fingerprint {
	return Fingerprint(digest.FromBytes(b).Encoded())
}

// FromReader computes the fingerprint of everything read from r.
func FromReader(r io.Reader) (Fingerprint, error) {
	d, err := digest.Canonical.FromReader(r)
	if err != nil {
		return "", err
	}
	return Fingerprint(d.Encoded()), nil
}

func (f Fingerprint) String() string {
	return string(f)
}

// ETag renders the fingerprint as a quoted strong validator.
func (f Fingerprint) ETag() string {
	return `"` + string(f) + `"`
}

// FromETag parses a validator as received in an If-None-Match header.
// Surrounding quotes are optional. Weak validators (W/"...") are never
// produced by this service, and the leading marker makes them compare
// unequal to any stored fingerprint.
func FromETag(etag string) Fingerprint {
	return Fingerprint(strings.Trim(etag, `"`))
}

// Verify reads all of r and checks it against the expected fingerprint.
func Verify(r io.Reader, want Fingerprint) error {
	got, err := FromReader(r)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("content fingerprint %s does not match expected %s", got, want)
	}
	return nil
}
