package provider

import (
	"encoding/json"
	"testing"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry(logger.Mock())
	google := NewGoogleDrive(logger.Mock(), nil)

	registry.Register("Google", google)

	// Lookups canonicalize, so any casing resolves the same handler.
	lister, ok := registry.Lookup("GOOGLE")
	require.True(t, ok)
	assert.Same(t, google, lister)

	lister, ok = registry.Lookup(domain.ProviderGoogle)
	require.True(t, ok)
	assert.Same(t, google, lister)

	_, ok = registry.Lookup(domain.ProviderDropbox)
	assert.False(t, ok, "Unregistered providers should not resolve")

	_, ok = registry.Lookup("Unknown")
	assert.False(t, ok)
}

func TestTokenFromCredentials(t *testing.T) {
	t.Run("valid credentials decode into a token", func(t *testing.T) {
		token, err := tokenFromCredentials(json.RawMessage(`{"access_token":"tok-1","refresh_token":"ref-1","token_type":"Bearer"}`))
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token.AccessToken)
		assert.Equal(t, "ref-1", token.RefreshToken)
	})

	t.Run("empty credentials are rejected", func(t *testing.T) {
		_, err := tokenFromCredentials(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "credentials are not set")
	})

	t.Run("credentials without an access token are rejected", func(t *testing.T) {
		_, err := tokenFromCredentials(json.RawMessage(`{"refresh_token":"ref-only"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing an access token")
	})

	t.Run("malformed credentials are rejected", func(t *testing.T) {
		_, err := tokenFromCredentials(json.RawMessage(`{not json`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode credentials")
	})
}
