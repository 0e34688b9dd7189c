package vario

import "github.com/arloliu/vario/types"

// Re-export types from the internal types package.
//
// This file provides a stable public API for the library's core types and
// interfaces. It uses type aliases to re-export definitions from the `types`
// subpackage, which lets internal packages depend on `types` without
// depending on the root `vario` package.
type (
	Experiment       = types.Experiment
	ExperimentStatus = types.ExperimentStatus
	Variant          = types.Variant
	Choice           = types.Choice
)

// Re-export interfaces from the internal types package for convenience.
type (
	ExperimentRepository = types.ExperimentRepository
	StickyStore          = types.StickyStore
	ReallocationPolicy   = types.ReallocationPolicy
	Sampler              = types.Sampler
	MetricsCollector     = types.MetricsCollector
	Logger               = types.Logger
	Hooks                = types.Hooks
	ContentSanitizer     = types.ContentSanitizer
)

// Re-export constants.
const (
	StatusActive  = types.StatusActive
	StatusRetired = types.StatusRetired

	// WeightTolerance is the allowed deviation of an experiment's weight sum from 1.
	WeightTolerance = types.WeightTolerance
)
