package extractor

import "sort"

// Registry maps schema_version to the Extractor variant that handles it.
// A plain map, not reflection-based dispatch; new variants register at
// construction time.
type Registry struct {
	byVersion map[string]Extractor
}

// NewRegistry builds the registry with the two shipped variants.
func NewRegistry() *Registry {
	r := &Registry{byVersion: make(map[string]Extractor)}
	r.Register(NewTimeseriesCSVExtractor())
	r.Register(NewEndpointJSONExtractor())

	return r
}

// Register adds or replaces an extractor under its own SchemaVersion().
func (r *Registry) Register(e Extractor) {
	r.byVersion[e.SchemaVersion()] = e
}

// Lookup returns the extractor for schemaVersion, or false if unknown.
func (r *Registry) Lookup(schemaVersion string) (Extractor, bool) {
	e, ok := r.byVersion[schemaVersion]

	return e, ok
}

// Known returns the supported schema_version strings, sorted, for use in
// "unsupported schema version" error messages.
func (r *Registry) Known() []string {
	versions := make([]string, 0, len(r.byVersion))
	for v := range r.byVersion {
		versions = append(versions, v)
	}

	sort.Strings(versions)

	return versions
}
