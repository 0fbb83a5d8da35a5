package kernel

import (
	"testing"

	"github.com/biomarker-io/worker/internal/domain"
)

func TestGlobalFeatures_Ok(t *testing.T) {
	fm := domain.FeatureMap{
		"channel.A.baseline_std": domain.Number(1.0),
		"channel.A.snr":          domain.Number(50.0),
		"channel.B.baseline_std": domain.Number(2.0),
		"channel.B.snr":          domain.Number(10.0),
	}

	got := GlobalFeatures([]string{"A", "B"}, fm, DefaultBaselineStdThreshold, DefaultSNRThreshold)

	flag, _ := got["global.signal_quality_flag"].String()
	if flag != "ok" {
		t.Errorf("signal_quality_flag = %q, want ok", flag)
	}

	n, _ := got["global.num_channels"].Float64()
	if n != 2 {
		t.Errorf("num_channels = %v, want 2", n)
	}
}

func TestGlobalFeatures_LowOnBaselineStd(t *testing.T) {
	fm := domain.FeatureMap{
		"channel.A.baseline_std": domain.Number(11.0),
		"channel.A.snr":          domain.Number(50.0),
	}

	got := GlobalFeatures([]string{"A"}, fm, DefaultBaselineStdThreshold, DefaultSNRThreshold)

	flag, _ := got["global.signal_quality_flag"].String()
	if flag != "low" {
		t.Errorf("signal_quality_flag = %q, want low", flag)
	}
}

func TestGlobalFeatures_LowOnSNR(t *testing.T) {
	fm := domain.FeatureMap{
		"channel.A.baseline_std": domain.Number(1.0),
		"channel.A.snr":          domain.Number(2.0),
	}

	got := GlobalFeatures([]string{"A"}, fm, DefaultBaselineStdThreshold, DefaultSNRThreshold)

	flag, _ := got["global.signal_quality_flag"].String()
	if flag != "low" {
		t.Errorf("signal_quality_flag = %q, want low", flag)
	}
}

func TestGlobalFeatures_NullChannelContributesNoEvidence(t *testing.T) {
	fm := domain.FeatureMap{
		"channel.A.baseline_std": domain.Null(),
		"channel.A.snr":          domain.Null(),
	}

	got := GlobalFeatures([]string{"A"}, fm, DefaultBaselineStdThreshold, DefaultSNRThreshold)

	flag, _ := got["global.signal_quality_flag"].String()
	if flag != "ok" {
		t.Errorf("signal_quality_flag = %q, want ok (null channel contributes no evidence)", flag)
	}
}
