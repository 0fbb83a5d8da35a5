package kernel

import "github.com/biomarker-io/worker/internal/domain"

// EndpointFeatures computes the single-value endpoint feature for channel.
func EndpointFeatures(channel string, value float64) domain.FeatureMap {
	return domain.FeatureMap{
		"channel." + channel + ".endpoint_value": domain.Number(value),
	}
}
