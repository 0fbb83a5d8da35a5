// Package inference runs scoring against a loaded model bundle (component
// F): feature-vector alignment, single and batched prediction, and
// leaf-index embedding extraction.
package inference

import (
	"fmt"
	"math"

	"github.com/biomarker-io/worker/internal/domain"
	"github.com/biomarker-io/worker/internal/modelbundle"
)

// Result is the outcome of scoring one sample against one model.
type Result struct {
	SampleID       string
	ModelID        string
	YHat           float64
	Threshold      float64
	PredictedClass int
	LeafIndices    []int
	NumTrees       int
}

// BuildFeatureVector aligns features to featureOrder. A feature absent
// from the map, explicitly null, or non-numeric is encoded as NaN so the
// ensemble's own missing-value routing applies - it is never treated as
// zero.
func BuildFeatureVector(features domain.FeatureMap, featureOrder []string) []float64 {
	vec := make([]float64, len(featureOrder))

	for i, name := range featureOrder {
		fv, ok := features[name]
		if !ok {
			vec[i] = math.NaN()
			continue
		}

		f, ok := fv.Float64()
		if !ok {
			vec[i] = math.NaN()
			continue
		}

		vec[i] = f
	}

	return vec
}

// Predict scores a single sample. threshold, when non-nil, overrides the
// bundle's default_threshold.
func Predict(
	bundle *modelbundle.LoadedModel,
	sampleID, modelID string,
	features domain.FeatureMap,
	threshold *float64,
) (*Result, error) {
	vec := BuildFeatureVector(features, bundle.FeatureNames())

	yHat, err := scoreOne(bundle, vec)
	if err != nil {
		return nil, err
	}

	var leafIndices []int
	if bundle.SupportsLeafIndices() {
		leafIndices = bundle.LeafIndices(vec)
	}

	thr := bundle.Config.DefaultThreshold
	if threshold != nil {
		thr = *threshold
	}

	predictedClass := 0
	if yHat >= thr {
		predictedClass = 1
	}

	return &Result{
		SampleID:       sampleID,
		ModelID:        modelID,
		YHat:           yHat,
		Threshold:      thr,
		PredictedClass: predictedClass,
		LeafIndices:    leafIndices,
		NumTrees:       bundle.NumTrees,
	}, nil
}

// Sample pairs a sample id with its computed feature map, the unit that
// PredictBatch consumes.
type Sample struct {
	SampleID string
	Features domain.FeatureMap
}

// PredictBatch scores a slice of samples against one model, collecting a
// Result per sample in input order. The ensemble is scored one feature
// vector at a time; a failure on any sample fails the whole batch.
func PredictBatch(
	bundle *modelbundle.LoadedModel,
	modelID string,
	samples []Sample,
	threshold *float64,
) ([]*Result, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	results := make([]*Result, len(samples))

	for i, s := range samples {
		r, err := Predict(bundle, s.SampleID, modelID, s.Features, threshold)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", s.SampleID, err)
		}

		results[i] = r
	}

	return results, nil
}

func scoreOne(bundle *modelbundle.LoadedModel, vec []float64) (float64, error) {
	nGroups := bundle.Ensemble.NRawOutputGroups()
	if nGroups < 1 {
		nGroups = 1
	}

	preds := make([]float64, nGroups)
	if err := bundle.Ensemble.Predict(vec, 0, preds); err != nil {
		return 0, fmt.Errorf("%w: ensemble scoring failed: %v", domain.ErrInference, err)
	}

	yHat := preds[0]

	if math.IsNaN(yHat) || math.IsInf(yHat, 0) {
		return 0, fmt.Errorf("%w: invalid prediction value %v", domain.ErrInference, yHat)
	}

	return yHat, nil
}
