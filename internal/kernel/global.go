package kernel

import "github.com/biomarker-io/worker/internal/domain"

const (
	// DefaultBaselineStdThreshold is the channel baseline_std cutoff
	// above which a channel is considered low quality.
	DefaultBaselineStdThreshold = 10.0
	// DefaultSNRThreshold is the channel snr cutoff below which a
	// channel is considered low quality.
	DefaultSNRThreshold = 3.0
)

// GlobalFeatures computes the cross-channel global features from an
// already-assembled channel feature map and the ordered channel list.
//
// A channel contributes no evidence on an axis where its value is null
// (the empty-channel case): null baseline_std cannot mark a channel low,
// and null snr cannot either.
func GlobalFeatures(channels []string, channelFeatures domain.FeatureMap, baselineStdThreshold, snrThreshold float64) domain.FeatureMap {
	low := false

	for _, ch := range channels {
		if std, ok := numberAt(channelFeatures, "channel."+ch+".baseline_std"); ok && std > baselineStdThreshold {
			low = true

			break
		}

		if snr, ok := numberAt(channelFeatures, "channel."+ch+".snr"); ok && snr < snrThreshold {
			low = true

			break
		}
	}

	flag := "ok"
	if low {
		flag = "low"
	}

	return domain.FeatureMap{
		"global.num_channels":        domain.Number(float64(len(channels))),
		"global.signal_quality_flag": domain.Text(flag),
	}
}

func numberAt(m domain.FeatureMap, key string) (float64, bool) {
	v, present := m[key]
	if !present {
		return 0, false
	}

	return v.Float64()
}
