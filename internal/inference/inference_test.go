package inference

import (
	"math"
	"testing"

	"github.com/biomarker-io/worker/internal/domain"
)

func TestBuildFeatureVector_MissingAndNullAreNaN(t *testing.T) {
	features := domain.FeatureMap{
		"channel.A.y_max": domain.Number(5.0),
		"channel.A.y_min": domain.Null(),
	}

	vec := BuildFeatureVector(features, []string{"channel.A.y_max", "channel.A.y_min", "channel.B.y_max"})

	if vec[0] != 5.0 {
		t.Errorf("vec[0] = %v, want 5.0", vec[0])
	}

	if !math.IsNaN(vec[1]) {
		t.Errorf("vec[1] (explicit null) = %v, want NaN", vec[1])
	}

	if !math.IsNaN(vec[2]) {
		t.Errorf("vec[2] (missing feature) = %v, want NaN", vec[2])
	}
}

func TestBuildFeatureVector_PreservesOrder(t *testing.T) {
	features := domain.FeatureMap{
		"b": domain.Number(2.0),
		"a": domain.Number(1.0),
	}

	vec := BuildFeatureVector(features, []string{"a", "b"})

	if vec[0] != 1.0 || vec[1] != 2.0 {
		t.Errorf("vec = %v, want [1.0, 2.0]", vec)
	}
}
