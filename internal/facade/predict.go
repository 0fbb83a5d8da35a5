// Package facade implements the synchronous prediction entry points
// (component I): the in-process operations behind /v1/predict and
// /v1/predict/batch. Transport-agnostic: internal/api adapts
// these into HTTP handlers.
package facade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/biomarker-io/worker/internal/blob"
	"github.com/biomarker-io/worker/internal/domain"
	"github.com/biomarker-io/worker/internal/inference"
	"github.com/biomarker-io/worker/internal/modelbundle"
)

// PredictionOutcome is the per-sample result of a batch prediction: either
// a filled-in Result or an Error describing why this one sample failed.
type PredictionOutcome struct {
	SampleID string
	Result   *inference.Result
	Error    string
}

// Facade wires the gateway, blob fetcher, and model cache together into
// the prediction operations. It holds no per-request state.
type Facade struct {
	Gateway domain.Gateway
	Fetcher blob.Fetcher
	Cache   *modelbundle.Cache
	Logger  *slog.Logger
}

// New builds a Facade. logger defaults to slog.Default() when nil.
func New(
	gateway domain.Gateway,
	fetcher blob.Fetcher,
	cache *modelbundle.Cache,
	logger *slog.Logger,
) *Facade {
	if logger == nil {
		logger = slog.Default()
	}

	return &Facade{Gateway: gateway, Fetcher: fetcher, Cache: cache, Logger: logger}
}

// Predict runs inference for a single sample against a model, persisting
// the prediction and leaf embedding on success. An audit job is created up
// front (already running) and finalized whatever the outcome.
func (f *Facade) Predict(ctx context.Context, orgID, sampleID, modelID string) (*inference.Result, error) {
	auditJob, jobErr := f.Gateway.CreatePredictJob(ctx, orgID, sampleID, modelID)

	result, err := f.predict(ctx, orgID, sampleID, modelID)
	if jobErr == nil {
		f.recordJobOutcome(ctx, auditJob.ID, result, err)
	}

	return result, err
}

func (f *Facade) predict(ctx context.Context, orgID, sampleID, modelID string) (*inference.Result, error) {
	model, err := f.Gateway.GetModel(ctx, modelID, orgID)
	if err != nil {
		return nil, fmt.Errorf("model not found or access denied: %w", err)
	}

	sample, err := f.Gateway.GetSample(ctx, sampleID, orgID)
	if err != nil {
		return nil, fmt.Errorf("sample not found or access denied: %w", err)
	}

	features, err := f.Gateway.GetSampleFeaturesByFeatureSet(ctx, sample.ID, model.FeatureSetID, orgID)
	if err != nil {
		return nil, fmt.Errorf("sample features not found for required feature set: %w", err)
	}

	bundle, err := f.Cache.GetOrLoad(model.ID, func() ([]byte, error) { return f.Fetcher.Fetch(ctx, model.StorageKey) })
	if err != nil {
		return nil, fmt.Errorf("failed to load model bundle: %w", err)
	}

	result, err := inference.Predict(bundle, sampleID, modelID, features.Features, nil)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	if err := f.Gateway.UpsertPrediction(ctx, orgID, sampleID, modelID, result.YHat, result.Threshold, result.PredictedClass); err != nil {
		return nil, fmt.Errorf("failed to save prediction: %w", err)
	}

	if err := f.Gateway.UpsertLeafEmbedding(ctx, orgID, sampleID, modelID, result.LeafIndices); err != nil {
		return nil, fmt.Errorf("failed to save leaf embedding: %w", err)
	}

	return result, nil
}

func (f *Facade) recordJobOutcome(ctx context.Context, jobID string, result *inference.Result, predictErr error) {
	if predictErr != nil {
		if err := f.Gateway.UpdateJobStatus(ctx, jobID, domain.JobFailed, nil, predictErr.Error()); err != nil {
			f.Logger.Error("failed to record predict job failure", "job_id", jobID, "error", err)
		}

		return
	}

	output := map[string]any{
		"y_hat":           result.YHat,
		"threshold":       result.Threshold,
		"predicted_class": result.PredictedClass,
		"num_trees":       result.NumTrees,
	}

	if err := f.Gateway.UpdateJobStatus(ctx, jobID, domain.JobSucceeded, output, ""); err != nil {
		f.Logger.Error("failed to record predict job success", "job_id", jobID, "error", err)
	}
}

// PredictBatch runs inference for a set of samples against one model.
// Per-sample failures (missing sample, missing features, save failure)
// are collected as outcomes rather than aborting the batch; a
// model-lookup, model-load or batch-scoring failure aborts the whole call.
func (f *Facade) PredictBatch(ctx context.Context, orgID, modelID string, sampleIDs []string) ([]PredictionOutcome, error) {
	model, err := f.Gateway.GetModel(ctx, modelID, orgID)
	if err != nil {
		return nil, fmt.Errorf("model not found or access denied: %w", err)
	}

	var samples []inference.Sample

	outcomes := make(map[string]*PredictionOutcome, len(sampleIDs))

	for _, sampleID := range sampleIDs {
		sample, err := f.Gateway.GetSample(ctx, sampleID, orgID)
		if err != nil {
			outcomes[sampleID] = &PredictionOutcome{SampleID: sampleID, Error: "sample not found or access denied"}
			continue
		}

		features, err := f.Gateway.GetSampleFeaturesByFeatureSet(ctx, sample.ID, model.FeatureSetID, orgID)
		if err != nil {
			outcomes[sampleID] = &PredictionOutcome{SampleID: sampleID, Error: "features not found for required feature set"}
			continue
		}

		samples = append(samples, inference.Sample{SampleID: sampleID, Features: features.Features})
	}

	if len(samples) > 0 {
		bundle, err := f.Cache.GetOrLoad(model.ID, func() ([]byte, error) { return f.Fetcher.Fetch(ctx, model.StorageKey) })
		if err != nil {
			return nil, fmt.Errorf("failed to load model bundle: %w", err)
		}

		results, err := inference.PredictBatch(bundle, modelID, samples, nil)
		if err != nil {
			return nil, fmt.Errorf("batch inference failed: %w", err)
		}

		for _, result := range results {
			if err := f.Gateway.UpsertPrediction(ctx, orgID, result.SampleID, modelID, result.YHat, result.Threshold, result.PredictedClass); err != nil {
				outcomes[result.SampleID] = &PredictionOutcome{SampleID: result.SampleID, Error: fmt.Sprintf("failed to save prediction: %v", err)}
				continue
			}

			if err := f.Gateway.UpsertLeafEmbedding(ctx, orgID, result.SampleID, modelID, result.LeafIndices); err != nil {
				outcomes[result.SampleID] = &PredictionOutcome{SampleID: result.SampleID, Error: fmt.Sprintf("failed to save leaf embedding: %v", err)}
				continue
			}

			outcomes[result.SampleID] = &PredictionOutcome{SampleID: result.SampleID, Result: result}
		}
	}

	ordered := make([]PredictionOutcome, 0, len(sampleIDs))
	for _, sampleID := range sampleIDs {
		if o, ok := outcomes[sampleID]; ok {
			ordered = append(ordered, *o)
		}
	}

	return ordered, nil
}
