package cachepolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		visibility Visibility
		mutability Mutability
		want       string
	}{
		{"public versioned", Public, ImmutableVersioned, "public, max-age=31536000, immutable"},
		{"public latest", Public, MutableLatest, "public, s-maxage=3600, max-age=60"},
		{"private versioned", Private, ImmutableVersioned, "private, no-store, no-cache, must-revalidate"},
		{"private latest", Private, MutableLatest, "private, no-store, no-cache, must-revalidate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.visibility, tt.mutability))
		})
	}
}

func TestParseDirectives(t *testing.T) {
	cc := Parse(Resolve(Public, MutableLatest))

	val, ok := cc.Get("s-maxage")
	require.True(t, ok)
	assert.Equal(t, "3600", val)

	val, ok = cc.Get("max-age")
	require.True(t, ok)
	assert.Equal(t, "60", val)

	_, ok = cc.Get("immutable")
	assert.False(t, ok)
}

func TestParseImmutable(t *testing.T) {
	cc := Parse(Resolve(Public, ImmutableVersioned))

	_, ok := cc.Get("immutable")
	assert.True(t, ok)

	val, _ := cc.Get("max-age")
	assert.Equal(t, "31536000", val)
}

func TestParseVisibility(t *testing.T) {
	v, err := ParseVisibility("")
	require.NoError(t, err)
	assert.Equal(t, Private, v)

	v, err = ParseVisibility("public")
	require.NoError(t, err)
	assert.Equal(t, Public, v)

	_, err = ParseVisibility("internal")
	assert.Error(t, err)
}

func TestParseMutability(t *testing.T) {
	m, err := ParseMutability("")
	require.NoError(t, err)
	assert.Equal(t, MutableLatest, m)

	m, err = ParseMutability("versioned")
	require.NoError(t, err)
	assert.Equal(t, ImmutableVersioned, m)

	_, err = ParseMutability("frozen")
	assert.Error(t, err)
}
