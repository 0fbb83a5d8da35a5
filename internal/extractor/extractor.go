// Package extractor implements the schema-keyed extraction variants
// (component D): time-series tabular and endpoint structured. Each
// extractor validates its payload, decomposes it into channels, dispatches
// to internal/kernel, and assembles the final feature map.
package extractor

import "github.com/biomarker-io/worker/internal/domain"

// ExtractionResult is the tagged result every extractor returns: success
// with a feature map and count, or failure with a textual reason. This is
// not an error channel - malformed input is a value, not a panic/error.
type ExtractionResult struct {
	Success     bool
	Features    domain.FeatureMap
	NumFeatures int
	Error       string
}

// Failure builds a failed ExtractionResult.
func Failure(reason string) ExtractionResult {
	return ExtractionResult{Success: false, Error: reason}
}

// FromFeatures builds a successful ExtractionResult, counting the
// assembled feature map.
func FromFeatures(features domain.FeatureMap) ExtractionResult {
	return ExtractionResult{Success: true, Features: features, NumFeatures: len(features)}
}

// Extractor decomposes a raw artifact payload into a feature map.
type Extractor interface {
	// SchemaVersion is the registry key this extractor answers to.
	SchemaVersion() string

	// Validate reports whether content is well-formed for this
	// extractor, returning a descriptive reason when it is not.
	Validate(content []byte) (bool, string)

	// Extract decomposes content into a feature map.
	Extract(content []byte) ExtractionResult
}
