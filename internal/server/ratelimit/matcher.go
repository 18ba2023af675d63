package ratelimit

import (
	"strings"
)

// MatchEndpoint returns the tier for a request path and method.
// Exact matches win over prefix matches (paths ending with "/"); anything else is TierDefault.
func MatchEndpoint(path string, method string, configs []EndpointConfig) Tier {
	for i := range configs {
		config := &configs[i]
		if config.Path == path && config.Method == method {
			return config.Tier
		}
	}

	for i := range configs {
		config := &configs[i]
		if config.Method == method && strings.HasSuffix(config.Path, "/") && strings.HasPrefix(path, config.Path) {
			return config.Tier
		}
	}

	return TierDefault
}
