package security

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmsim/llmsim/internal/config"
)

func TestExtractAPIKeyBearer(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer sk-test-key-123")

	key, ok := ExtractAPIKey(h)
	require.True(t, ok)
	assert.Equal(t, "sk-test-key-123", key)
}

func TestExtractAPIKeyLowercaseBearer(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "bearer sk-test")

	key, ok := ExtractAPIKey(h)
	require.True(t, ok)
	assert.Equal(t, "sk-test", key)
}

func TestExtractAPIKeyXApiKey(t *testing.T) {
	h := http.Header{}
	h.Set("X-Api-Key", "sk-test-key-456")

	key, ok := ExtractAPIKey(h)
	require.True(t, ok)
	assert.Equal(t, "sk-test-key-456", key)
}

func TestExtractAPIKeyMalformed(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Basic dXNlcjpwYXNz")

	_, ok := ExtractAPIKey(h)
	assert.False(t, ok)
}

func TestExtractAPIKeyMissing(t *testing.T) {
	_, ok := ExtractAPIKey(http.Header{})
	assert.False(t, ok)
}

func TestIsHealthEndpoint(t *testing.T) {
	for _, path := range []string{"/", "/health", "/healthz", "/ready", "/readyz", "/metrics", "/version"} {
		assert.True(t, IsHealthEndpoint(path), path)
	}
	assert.False(t, IsHealthEndpoint("/v1/chat/completions"))
	assert.False(t, IsHealthEndpoint("/admin/stats"))
}

func TestIsAdminEndpoint(t *testing.T) {
	assert.True(t, IsAdminEndpoint("/admin/stats"))
	assert.True(t, IsAdminEndpoint("/admin/config"))
	assert.False(t, IsAdminEndpoint("/v1/models"))
}

func TestFindKeyConstantTime(t *testing.T) {
	cfg := config.APIKeyConfig{
		Enabled: true,
		Keys: []config.APIKeyEntry{
			{ID: "k1", Key: "sk-alpha", Role: config.RoleUser, Tier: config.TierStandard, Enabled: true},
			{ID: "k2", Key: "sk-beta", Role: config.RoleAdmin, Tier: config.TierAdmin, Enabled: true},
		},
	}

	entry, found := cfg.FindKey("sk-beta")
	require.True(t, found)
	assert.Equal(t, "k2", entry.ID)
	assert.Equal(t, config.RoleAdmin, entry.Role)

	_, found = cfg.FindKey("sk-gamma")
	assert.False(t, found)
}

func TestAnonymousIdentity(t *testing.T) {
	id := AnonymousIdentity()
	assert.True(t, id.Anonymous)
	assert.False(t, id.IsAdmin())
	assert.Equal(t, config.RoleReadonly, id.Role)
	assert.Equal(t, config.TierStandard, id.Tier)
}
