package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidOption = errors.New("invalid deployment option")
)

// =============================================================================
// Runtime Strategy
// =============================================================================

// RuntimeStrategy controls how runtime sessions are allocated for a unit.
type RuntimeStrategy string

const (
	StrategySingleton          RuntimeStrategy = "SINGLETON"
	StrategyPerRequest         RuntimeStrategy = "PER_REQUEST"
	StrategyPerProcessInstance RuntimeStrategy = "PER_PROCESS_INSTANCE"
	StrategyPerCase            RuntimeStrategy = "PER_CASE"
)

var runtimeStrategies = []RuntimeStrategy{
	StrategySingleton,
	StrategyPerRequest,
	StrategyPerProcessInstance,
	StrategyPerCase,
}

// DefaultRuntimeStrategy is used when a request does not name one.
const DefaultRuntimeStrategy = StrategySingleton

// ParseRuntimeStrategy parses a strategy name, case-insensitively.
func ParseRuntimeStrategy(s string) (RuntimeStrategy, error) {
	upper := RuntimeStrategy(strings.ToUpper(s))
	for _, rs := range runtimeStrategies {
		if rs == upper {
			return rs, nil
		}
	}
	return "", fmt.Errorf("%w: runtime strategy '%s' does not exist", ErrInvalidOption, upper)
}

// =============================================================================
// Merge Mode
// =============================================================================

// MergeMode controls how a request descriptor is merged with the unit's own.
type MergeMode string

const (
	MergeKeepAll          MergeMode = "KEEP_ALL"
	MergeOverrideAll      MergeMode = "OVERRIDE_ALL"
	MergeOverrideEmpty    MergeMode = "OVERRIDE_EMPTY"
	MergeMergeCollections MergeMode = "MERGE_COLLECTIONS"
)

var mergeModes = []MergeMode{
	MergeKeepAll,
	MergeOverrideAll,
	MergeOverrideEmpty,
	MergeMergeCollections,
}

// DefaultMergeMode is used when a request does not name one.
const DefaultMergeMode = MergeMergeCollections

// ParseMergeMode parses a merge mode name, case-insensitively.
func ParseMergeMode(s string) (MergeMode, error) {
	upper := MergeMode(strings.ToUpper(s))
	for _, m := range mergeModes {
		if m == upper {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: merge mode '%s' does not exist", ErrInvalidOption, upper)
}

// =============================================================================
// Deploy Options
// =============================================================================

// DeployOptions are the raw, unvalidated options of a deploy request.
// Empty fields mean "not provided".
type DeployOptions struct {
	Strategy  string
	MergeMode string
}

// Resolve validates the options and applies defaults.
func (o DeployOptions) Resolve() (RuntimeStrategy, MergeMode, error) {
	strategy := DefaultRuntimeStrategy
	if o.Strategy != "" {
		rs, err := ParseRuntimeStrategy(o.Strategy)
		if err != nil {
			return "", "", err
		}
		strategy = rs
	}

	mode := DefaultMergeMode
	if o.MergeMode != "" {
		m, err := ParseMergeMode(o.MergeMode)
		if err != nil {
			return "", "", err
		}
		mode = m
	}

	return strategy, mode, nil
}
