package indengine

import (
	"fmt"

	"indstream/config"
	"indstream/internal/indicator"
)

// Config is the service configuration plus the parsed indicator set.
type Config struct {
	*config.Config

	Specs []indicator.Spec
}

// LoadConfig reads the environment and parses INDICATORS against the
// default registry.
func LoadConfig() (Config, error) {
	base, err := config.Load()
	if err != nil {
		return Config{}, err
	}
	specs, err := ParseIndicators(base.Indicators, nil)
	if err != nil {
		return Config{}, err
	}
	return Config{Config: base, Specs: specs}, nil
}

// ParseIndicators parses a spec list and checks every name against reg
// (the default registry when nil).
func ParseIndicators(list string, reg *indicator.Registry) ([]indicator.Spec, error) {
	if reg == nil {
		reg = indicator.DefaultRegistry()
	}
	specs, err := indicator.ParseSpecs(list)
	if err != nil {
		return nil, fmt.Errorf("INDICATORS: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("INDICATORS: empty indicator list")
	}
	if err := reg.Validate(specs); err != nil {
		return nil, fmt.Errorf("INDICATORS: %w", err)
	}
	return specs, nil
}
