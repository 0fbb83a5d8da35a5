package extractor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/biomarker-io/worker/internal/domain"
	"github.com/biomarker-io/worker/internal/kernel"
)

const endpointSchemaVersion = "v1_endpoint_json"

// endpointPayload is the on-wire shape: a list of channel/value pairs plus
// optional free-form metadata.
type endpointPayload struct {
	Channels []endpointChannel      `json:"channels"`
	Metadata map[string]interface{} `json:"metadata"`
}

type endpointChannel struct {
	Channel string   `json:"channel"`
	Value   *float64 `json:"value"`
}

// EndpointJSONExtractor handles schema_version "v1_endpoint_json": a JSON
// document listing one scalar value per channel.
type EndpointJSONExtractor struct{}

// NewEndpointJSONExtractor constructs the extractor.
func NewEndpointJSONExtractor() *EndpointJSONExtractor {
	return &EndpointJSONExtractor{}
}

// SchemaVersion implements Extractor.
func (e *EndpointJSONExtractor) SchemaVersion() string { return endpointSchemaVersion }

// Validate implements Extractor.
func (e *EndpointJSONExtractor) Validate(content []byte) (bool, string) {
	_, reason, err := decodeEndpointPayload(content)
	if err != nil {
		return false, err.Error()
	}

	if reason != "" {
		return false, reason
	}

	return true, ""
}

// Extract implements Extractor.
func (e *EndpointJSONExtractor) Extract(content []byte) ExtractionResult {
	payload, reason, err := decodeEndpointPayload(content)
	if err != nil {
		return Failure(err.Error())
	}

	if reason != "" {
		return Failure(reason)
	}

	byChannel := make(map[string]float64, len(payload.Channels))
	for _, c := range payload.Channels {
		byChannel[c.Channel] = *c.Value
	}

	channels := make([]string, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, ch)
	}

	sort.Strings(channels)

	all := make(domain.FeatureMap)

	for _, ch := range channels {
		for k, v := range kernel.EndpointFeatures(ch, byChannel[ch]) {
			all[k] = v
		}
	}

	for k, v := range payload.Metadata {
		all["metadata."+k] = toFeatureValue(v)
	}

	for k, v := range kernel.GlobalFeatures(channels, all, kernel.DefaultBaselineStdThreshold, kernel.DefaultSNRThreshold) {
		all[k] = v
	}

	return FromFeatures(all)
}

// decodeEndpointPayload parses content and runs positional validation, so
// failures name the offending entry ("channels[2].value is required").
func decodeEndpointPayload(content []byte) (*endpointPayload, string, error) {
	var payload endpointPayload

	dec := json.NewDecoder(strings.NewReader(string(content)))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&payload); err != nil {
		return nil, "", fmt.Errorf("invalid JSON: %w", err)
	}

	if len(payload.Channels) == 0 {
		return &payload, "channels must be a non-empty array", nil
	}

	seen := make(map[string]bool, len(payload.Channels))

	for i, c := range payload.Channels {
		if strings.TrimSpace(c.Channel) == "" {
			return &payload, fmt.Sprintf("channels[%d].channel is required", i), nil
		}

		if c.Value == nil {
			return &payload, fmt.Sprintf("channels[%d].value is required", i), nil
		}

		if seen[c.Channel] {
			return &payload, fmt.Sprintf("channels[%d].channel %q is a duplicate", i, c.Channel), nil
		}

		seen[c.Channel] = true
	}

	return &payload, "", nil
}

// toFeatureValue maps a decoded JSON scalar into the FeatureValue tagged
// union: null stays null, numbers stay numeric, everything else is
// stringified.
func toFeatureValue(v interface{}) domain.FeatureValue {
	switch t := v.(type) {
	case nil:
		return domain.Null()
	case float64:
		return domain.Number(t)
	case string:
		return domain.Text(t)
	case bool:
		if t {
			return domain.Text("true")
		}

		return domain.Text("false")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return domain.Null()
		}

		return domain.Text(string(b))
	}
}
