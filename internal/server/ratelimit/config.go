package ratelimit

import "time"

// Tier groups endpoints that share a per-IP request budget.
type Tier string

// Tiers, strictest first
const (
	TierAuth      Tier = "auth"
	TierRanking   Tier = "ranking"
	TierDefault   Tier = "default"
	TierUnlimited Tier = "unlimited"
)

// EndpointConfig assigns an endpoint to a tier.
type EndpointConfig struct {
	Path   string // Endpoint path pattern (supports prefix matching)
	Method string // HTTP method (GET, POST, etc.)
	Tier   Tier
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled   bool
	Window    time.Duration
	Limits    map[Tier]int // requests per Window; <= 0 means unlimited
	Endpoints []EndpointConfig
}

// NewConfig builds a configuration from per-minute limits for each tier.
func NewConfig(enabled bool, authPerMin, rankingPerMin, defaultPerMin int) Config {
	return Config{
		Enabled: enabled,
		Window:  time.Minute,
		Limits: map[Tier]int{
			TierAuth:    authPerMin,
			TierRanking: rankingPerMin,
			TierDefault: defaultPerMin,
		},
		Endpoints: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the endpoint tiers of the API.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Credential checks are the brute-force surface
		{Path: "/api/signup", Method: "POST", Tier: TierAuth},
		{Path: "/api/login", Method: "POST", Tier: TierAuth},
		{Path: "/api/user/password", Method: "PUT", Tier: TierAuth},

		// Ranking may call an embedding model per posting
		{Path: "/api/rank_jobs", Method: "POST", Tier: TierRanking},
		{Path: "/api/analyses/ranked", Method: "GET", Tier: TierRanking},

		{Path: "/health", Method: "GET", Tier: TierUnlimited},
		{Path: "/metrics", Method: "GET", Tier: TierUnlimited},
	}
}
