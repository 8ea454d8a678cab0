package indicator

import (
	"fmt"
	"strings"

	"indstream/internal/model"
)

// Spec describes one subscription in the text form
//
//	name[:p1[:p2...]][@alias]
//
// e.g. "rsi:14", "bb:20:2@bands", "supertrend:10:3:wilder".
type Spec struct {
	Name   string
	Params []string
	Alias  string
}

// ParseSpec parses a single spec.
func ParseSpec(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	var spec Spec
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		spec.Alias = strings.TrimSpace(s[at+1:])
		s = s[:at]
		if spec.Alias == "" {
			return Spec{}, &model.ConfigError{Indicator: s, Param: "alias", Value: "", Reason: "empty alias"}
		}
	}
	parts := strings.Split(s, ":")
	spec.Name = normalizeName(parts[0])
	if spec.Name == "" {
		return Spec{}, &model.ConfigError{Indicator: "spec", Param: "name", Value: s, Reason: "empty indicator name"}
	}
	for _, p := range parts[1:] {
		spec.Params = append(spec.Params, strings.TrimSpace(p))
	}
	return spec, nil
}

// ParseSpecs parses a comma separated spec list. Blank entries are skipped;
// two specs with the same key are rejected.
func ParseSpecs(list string) ([]Spec, error) {
	var specs []Spec
	seen := make(map[string]bool)
	for _, item := range strings.Split(list, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		spec, err := ParseSpec(item)
		if err != nil {
			return nil, err
		}
		if seen[spec.Key()] {
			return nil, fmt.Errorf("duplicate indicator %q", spec.Key())
		}
		seen[spec.Key()] = true
		specs = append(specs, spec)
	}
	return specs, nil
}

// Key is the subscription name: the alias when set, otherwise the spec
// without alias ("rsi:14").
func (s Spec) Key() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.base()
}

func (s Spec) base() string {
	if len(s.Params) == 0 {
		return s.Name
	}
	return s.Name + ":" + strings.Join(s.Params, ":")
}

// String renders the spec back to its text form.
func (s Spec) String() string {
	if s.Alias != "" {
		return s.base() + "@" + s.Alias
	}
	return s.base()
}

// FormatSpecs joins specs into the comma separated text form.
func FormatSpecs(specs []Spec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// Build creates the indicator a spec describes.
func (r *Registry) Build(s Spec) (Indicator, error) {
	params := make([]any, len(s.Params))
	for i, p := range s.Params {
		params[i] = p
	}
	ind, err := r.Create(s.Name, params...)
	if err != nil {
		return nil, fmt.Errorf("indicator %s: %w", s.Key(), err)
	}
	return ind, nil
}

// Validate checks that every spec builds.
func (r *Registry) Validate(specs []Spec) error {
	for _, s := range specs {
		if _, err := r.Build(s); err != nil {
			return err
		}
	}
	return nil
}
