package model

import (
	"errors"
	"fmt"
)

// Engine error taxonomy. Detail errors below match these with errors.Is.
var (
	// ErrConfig is returned at construction time for an invalid period, factor or mode.
	ErrConfig = errors.New("invalid indicator configuration")
	// ErrData is returned per bar for a malformed input field.
	ErrData = errors.New("malformed bar")
	// ErrUnknownIndicator is returned by registry lookups for unregistered names.
	ErrUnknownIndicator = errors.New("unknown indicator")
)

// ConfigError names the parameter that failed validation.
type ConfigError struct {
	Indicator string
	Param     string
	Value     any
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", e.Indicator, e.Param, e.Value, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// DataError names the bar field that failed validation.
type DataError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("malformed bar: %s=%v (%s)", e.Field, e.Value, e.Reason)
}

func (e *DataError) Is(target error) bool { return target == ErrData }

// UnknownIndicatorError carries the name that missed the registry.
type UnknownIndicatorError struct {
	Name string
}

func (e *UnknownIndicatorError) Error() string {
	return fmt.Sprintf("unknown indicator %q", e.Name)
}

func (e *UnknownIndicatorError) Is(target error) bool { return target == ErrUnknownIndicator }
