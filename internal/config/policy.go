package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jonathan/jobtrust/internal/ranking"
)

// Policy file keys
const (
	keyBoostMultiplier  = "boost-multiplier"
	keyPenaltyThreshold = "penalty-threshold"
)

// LoadPolicy reads ranking policy knobs from a YAML or JSON file. An empty path yields the
// default policy; keys missing from the file keep their defaults.
func LoadPolicy(path string) (ranking.Policy, error) {
	def := ranking.DefaultPolicy()
	if strings.TrimSpace(path) == "" {
		return def, nil
	}

	v := viper.New()
	v.SetDefault(keyBoostMultiplier, def.BoostMultiplier)
	v.SetDefault(keyPenaltyThreshold, def.PenaltyThreshold)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return ranking.Policy{}, fmt.Errorf("op=config.LoadPolicy: read %s: %w", path, err)
	}

	var policy ranking.Policy
	if err := v.Unmarshal(&policy); err != nil {
		return ranking.Policy{}, fmt.Errorf("op=config.LoadPolicy: decode %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return ranking.Policy{}, fmt.Errorf("op=config.LoadPolicy: %w", err)
	}
	return policy, nil
}
