package config

import (
	"crypto/subtle"
	"fmt"
	"math"
	"strings"
)

// Role is the access level attached to an API key.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleUser     Role = "user"
	RoleReadonly Role = "readonly"
)

// Tier selects a rate limit tier for an API key.
type Tier string

const (
	TierStandard  Tier = "standard"
	TierPremium   Tier = "premium"
	TierAdmin     Tier = "admin"
	TierUnlimited Tier = "unlimited"
)

// SecurityConfig groups the security subsystems.
type SecurityConfig struct {
	// APIKeys configures client authentication.
	APIKeys APIKeyConfig `yaml:"api-keys" json:"api_keys"`

	// Admin configures the admin endpoint gate.
	Admin AdminConfig `yaml:"admin" json:"admin"`

	// CORS configures cross-origin access.
	CORS CORSConfig `yaml:"cors" json:"cors"`

	// RateLimiting configures the per-key token buckets.
	RateLimiting RateLimitConfig `yaml:"rate-limiting" json:"rate_limiting"`

	// Headers configures the security response headers.
	Headers SecurityHeadersConfig `yaml:"headers" json:"headers"`
}

// DefaultSecurityConfig returns permissive development defaults.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		APIKeys:      DefaultAPIKeyConfig(),
		Admin:        DefaultAdminConfig(),
		CORS:         DefaultCORSConfig(),
		RateLimiting: DefaultRateLimitConfig(),
		Headers:      DefaultSecurityHeadersConfig(),
	}
}

// Validate checks every sub-config.
func (c SecurityConfig) Validate() error {
	if err := c.APIKeys.Validate(); err != nil {
		return err
	}
	if err := c.CORS.Validate(); err != nil {
		return err
	}
	return c.RateLimiting.Validate()
}

// APIKeyConfig configures API key authentication.
type APIKeyConfig struct {
	// Enabled toggles authentication; disabled tags all requests anonymous.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Keys lists the valid API keys.
	Keys []APIKeyEntry `yaml:"keys,omitempty" json:"keys,omitempty"`

	// AllowAnonymousHealth exempts health and metrics paths from auth.
	AllowAnonymousHealth bool `yaml:"allow-anonymous-health" json:"allow_anonymous_health"`
}

// DefaultAPIKeyConfig returns auth disabled for development.
func DefaultAPIKeyConfig() APIKeyConfig {
	return APIKeyConfig{
		Enabled:              false,
		AllowAnonymousHealth: true,
	}
}

// Validate checks that enabled auth has keys and that key ids are unique.
func (c APIKeyConfig) Validate() error {
	if c.Enabled && len(c.Keys) == 0 {
		return fmt.Errorf("security.api-keys enabled but no keys are configured")
	}
	seen := make(map[string]struct{}, len(c.Keys))
	for _, k := range c.Keys {
		if _, dup := seen[k.ID]; dup {
			return fmt.Errorf("duplicate API key id %q", k.ID)
		}
		seen[k.ID] = struct{}{}
	}
	return nil
}

// FindKey resolves a key string to its entry using a constant-time compare.
func (c APIKeyConfig) FindKey(value string) (APIKeyEntry, bool) {
	for _, k := range c.Keys {
		if len(k.Key) == len(value) &&
			subtle.ConstantTimeCompare([]byte(k.Key), []byte(value)) == 1 {
			return k, true
		}
	}
	return APIKeyEntry{}, false
}

// APIKeyEntry is a single configured API key.
type APIKeyEntry struct {
	// ID identifies the key in logs and rate limit buckets.
	ID string `yaml:"id" json:"id"`

	// Key is the opaque bearer string clients present.
	Key string `yaml:"key" json:"key"`

	// Role is the access level: admin, user, or readonly.
	Role Role `yaml:"role" json:"role"`

	// Tier selects the rate limit tier.
	Tier Tier `yaml:"tier" json:"tier"`

	// Description is a free-form note.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Enabled toggles the key without removing it.
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// AdminConfig configures the admin endpoint gate.
type AdminConfig struct {
	// RequireAdminKey enforces the admin role on /admin paths.
	RequireAdminKey bool `yaml:"require-admin-key" json:"require_admin_key"`

	// LogAccess logs every admin endpoint access.
	LogAccess bool `yaml:"log-access" json:"log_access"`
}

// DefaultAdminConfig requires the admin role by default.
func DefaultAdminConfig() AdminConfig {
	return AdminConfig{RequireAdminKey: true, LogAccess: true}
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	// Enabled toggles CORS handling.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// AllowedOrigins lists permitted origins; "*" allows any.
	AllowedOrigins []string `yaml:"allowed-origins" json:"allowed_origins"`

	// AllowedMethods lists permitted HTTP methods.
	AllowedMethods []string `yaml:"allowed-methods" json:"allowed_methods"`

	// AllowedHeaders lists permitted request headers.
	AllowedHeaders []string `yaml:"allowed-headers" json:"allowed_headers"`

	// ExposedHeaders lists response headers visible to browsers.
	ExposedHeaders []string `yaml:"exposed-headers" json:"exposed_headers"`

	// AllowCredentials permits credentialed requests.
	AllowCredentials bool `yaml:"allow-credentials" json:"allow_credentials"`

	// MaxAgeSeconds caches preflight results.
	MaxAgeSeconds int `yaml:"max-age-seconds" json:"max_age_seconds"`
}

// DefaultCORSConfig returns permissive development CORS.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID", "X-API-Key"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAgeSeconds:  3600,
	}
}

// Validate rejects wildcard origins combined with credentials.
func (c CORSConfig) Validate() error {
	if c.Enabled && len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("security.cors enabled but no allowed origins configured")
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" && c.AllowCredentials {
			return fmt.Errorf("cannot use wildcard origin with allow-credentials")
		}
	}
	return nil
}

// OriginAllowed reports whether the given origin may access the API.
func (c CORSConfig) OriginAllowed(origin string) bool {
	if !c.Enabled {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		switch {
		case allowed == "*":
			return true
		case strings.HasPrefix(allowed, "*."):
			if strings.HasSuffix(origin, allowed[2:]) {
				return true
			}
		case origin == allowed:
			return true
		}
	}
	return false
}

// RateLimitConfig configures per-key token bucket limiting.
type RateLimitConfig struct {
	// Enabled toggles the security rate limiter.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// DefaultTier applies to anonymous requests.
	DefaultTier Tier `yaml:"default-tier" json:"default_tier"`

	// Tiers maps each tier to its limits.
	Tiers RateLimitTiers `yaml:"tiers" json:"tiers"`
}

// DefaultRateLimitConfig returns the stock tier table.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:     true,
		DefaultTier: TierStandard,
		Tiers:       DefaultRateLimitTiers(),
	}
}

// Validate checks the standard tier is usable.
func (c RateLimitConfig) Validate() error {
	if c.Tiers.Standard.RequestsPerMinute == 0 {
		return fmt.Errorf("security.rate-limiting standard tier requests-per-minute cannot be 0")
	}
	return nil
}

// TierConfig resolves a tier to its limits.
func (c RateLimitConfig) TierConfig(t Tier) TierLimits {
	switch t {
	case TierPremium:
		return c.Tiers.Premium
	case TierAdmin:
		return c.Tiers.Admin
	case TierUnlimited:
		return c.Tiers.Unlimited
	default:
		return c.Tiers.Standard
	}
}

// RateLimitTiers holds the per-tier limits.
type RateLimitTiers struct {
	Standard  TierLimits `yaml:"standard" json:"standard"`
	Premium   TierLimits `yaml:"premium" json:"premium"`
	Admin     TierLimits `yaml:"admin" json:"admin"`
	Unlimited TierLimits `yaml:"unlimited" json:"unlimited"`
}

// DefaultRateLimitTiers returns the stock tier limits.
func DefaultRateLimitTiers() RateLimitTiers {
	return RateLimitTiers{
		Standard:  TierLimits{RequestsPerMinute: 60, BurstSize: 10},
		Premium:   TierLimits{RequestsPerMinute: 600, BurstSize: 100},
		Admin:     TierLimits{RequestsPerMinute: 1000, BurstSize: 200},
		Unlimited: TierLimits{RequestsPerMinute: math.MaxInt32, BurstSize: math.MaxInt32},
	}
}

// TierLimits are the token bucket parameters for one tier.
type TierLimits struct {
	// RequestsPerMinute is the sustained rate.
	RequestsPerMinute int `yaml:"requests-per-minute" json:"requests_per_minute"`

	// BurstSize is the bucket capacity.
	BurstSize int `yaml:"burst-size" json:"burst_size"`
}

// SecurityHeadersConfig configures defensive response headers.
type SecurityHeadersConfig struct {
	// Enabled toggles the header middleware.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// HSTSEnabled emits Strict-Transport-Security; enable behind TLS only.
	HSTSEnabled bool `yaml:"hsts-enabled" json:"hsts_enabled"`

	// HSTSMaxAge is the HSTS max-age in seconds.
	HSTSMaxAge int64 `yaml:"hsts-max-age" json:"hsts_max_age"`

	// HSTSIncludeSubdomains adds includeSubDomains to HSTS.
	HSTSIncludeSubdomains bool `yaml:"hsts-include-subdomains" json:"hsts_include_subdomains"`

	// HSTSPreload adds preload to HSTS.
	HSTSPreload bool `yaml:"hsts-preload" json:"hsts_preload"`

	// ContentSecurityPolicy is emitted verbatim when non-empty.
	ContentSecurityPolicy string `yaml:"content-security-policy,omitempty" json:"content_security_policy,omitempty"`

	// FrameOptions is the X-Frame-Options value.
	FrameOptions string `yaml:"frame-options" json:"frame_options"`

	// ReferrerPolicy is the Referrer-Policy value.
	ReferrerPolicy string `yaml:"referrer-policy" json:"referrer_policy"`

	// PermissionsPolicy is emitted verbatim when non-empty.
	PermissionsPolicy string `yaml:"permissions-policy,omitempty" json:"permissions_policy,omitempty"`
}

// DefaultSecurityHeadersConfig returns hardened defaults with HSTS off.
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		Enabled:               true,
		HSTSEnabled:           false,
		HSTSMaxAge:            31_536_000,
		HSTSIncludeSubdomains: true,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:          "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=()",
	}
}
