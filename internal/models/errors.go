package models

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a pipeline assembled without a required step,
// such as a missing detection strategy at build time.
type ConfigurationError struct {
	Missing string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration incomplete: %s not set", e.Missing)
}

// UnknownStrategyError reports a request for an unregistered strategy name.
type UnknownStrategyError struct {
	Name      string
	Available []string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown strategy %q, available: %s", e.Name, strings.Join(e.Available, ", "))
}

// MissingRuleError reports a strategy invoked without its required rule
// parameters.
type MissingRuleError struct {
	Strategy string
	Keys     []string
}

func (e *MissingRuleError) Error() string {
	return fmt.Sprintf("strategy %q missing required rules: %s", e.Strategy, strings.Join(e.Keys, ", "))
}

// InvalidRuleError reports a rule parameter that is present but semantically
// invalid, such as a threshold upper bound at or below the lower bound.
type InvalidRuleError struct {
	Strategy string
	Rule     string
	Reason   string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("strategy %q rule %q invalid: %s", e.Strategy, e.Rule, e.Reason)
}

// DataShapeError reports a column required at detection time that is absent
// from the series. Fatal: without the signal column no zone can exist.
type DataShapeError struct {
	Strategy string
	Column   string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("strategy %q requires column %q, not present in series", e.Strategy, e.Column)
}
