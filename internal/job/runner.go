// Package job implements the feature-extraction job protocol (component
// G): the work a queued "extract_features" job performs once popped from
// the queue.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/biomarker-io/worker/internal/blob"
	"github.com/biomarker-io/worker/internal/domain"
	"github.com/biomarker-io/worker/internal/extractor"
)

// maxErrorTraceLen bounds the failure text stored on the job row.
const maxErrorTraceLen = 500

// Payload is the decoded job message popped from the queue.
type Payload struct {
	JobID      string `json:"job_id"`
	OrgID      string `json:"org_id"`
	ArtifactID string `json:"artifact_id"`
	FeatureSet string `json:"feature_set"`
	Type       string `json:"type"`
	MaxRetries int    `json:"max_retries"`
}

// Runner executes extract_features jobs against a Gateway, a blob
// Fetcher, and a schema-extractor Registry.
type Runner struct {
	Gateway  domain.Gateway
	Fetcher  blob.Fetcher
	Registry *extractor.Registry
	Logger   *slog.Logger
}

// NewRunner builds a Runner. logger defaults to slog.Default() when nil.
func NewRunner(gateway domain.Gateway, fetcher blob.Fetcher, registry *extractor.Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{Gateway: gateway, Fetcher: fetcher, Registry: registry, Logger: logger}
}

// Run executes one job end to end: mark running, fetch + validate the
// artifact, download its content, extract features, persist them, and
// mark the job succeeded or failed. It never returns an error - every
// failure is recorded on the job row itself so the poller always moves on
// to the next message.
func (r *Runner) Run(ctx context.Context, p Payload) {
	log := r.Logger.With("job_id", p.JobID, "artifact_id", p.ArtifactID)
	log.Info("processing job")

	featureSetName := p.FeatureSet
	if featureSetName == "" {
		featureSetName = domain.DefaultFeatureSetName
	}

	if err := r.run(ctx, p, featureSetName, log); err != nil {
		log.Error("job failed", "error", err)

		if updErr := r.Gateway.UpdateJobStatus(ctx, p.JobID, domain.JobFailed, nil, truncate(err.Error(), maxErrorTraceLen)); updErr != nil {
			log.Error("failed to record job failure", "error", updErr)
		}
	}
}

func (r *Runner) run(ctx context.Context, p Payload, featureSetName string, log *slog.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during job execution: %v\n%s", rec, truncate(string(debug.Stack()), maxErrorTraceLen))
		}
	}()

	if err := r.Gateway.UpdateJobStatus(ctx, p.JobID, domain.JobRunning, nil, ""); err != nil {
		return fmt.Errorf("%w: set job running: %v", domain.ErrGateway, err)
	}

	artifact, err := r.Gateway.GetArtifact(ctx, p.ArtifactID, p.OrgID)
	if err != nil {
		return fmt.Errorf("artifact %s not found or org mismatch: %w", p.ArtifactID, err)
	}

	if artifact.SampleID == nil || *artifact.SampleID == "" {
		return fmt.Errorf("%w: artifact is not attached to a sample", domain.ErrValidation)
	}

	sampleID := *artifact.SampleID

	log.Info("artifact schema version", "schema_version", artifact.SchemaVersion)

	featureSet, err := r.Gateway.GetOrCreateFeatureSet(ctx, p.OrgID, featureSetName, "", domain.FeatureList{})
	if err != nil {
		return fmt.Errorf("%w: get or create feature set %q: %v", domain.ErrGateway, featureSetName, err)
	}

	log.Info("downloading artifact content", "storage_key", artifact.StorageKey)

	content, err := r.Fetcher.Fetch(ctx, artifact.StorageKey)
	if err != nil {
		return fmt.Errorf("download %s: %w", artifact.StorageKey, err)
	}

	ex, ok := r.Registry.Lookup(artifact.SchemaVersion)
	if !ok {
		return fmt.Errorf("%w: %s. Supported versions: %v", domain.ErrUnsupported, artifact.SchemaVersion, r.Registry.Known())
	}

	log.Info("extracting features", "schema_version", ex.SchemaVersion())

	result := ex.Extract(content)
	if !result.Success {
		return fmt.Errorf("%w: feature extraction failed: %s", domain.ErrValidation, result.Error)
	}

	log.Info("storing features", "num_features", result.NumFeatures, "sample_id", sampleID)

	featureRecordID, err := r.Gateway.UpsertSampleFeatures(ctx, p.OrgID, sampleID, featureSet.ID, p.ArtifactID, result.Features)
	if err != nil {
		return fmt.Errorf("%w: store sample features: %v", domain.ErrGateway, err)
	}

	output := map[string]any{
		"sample_id":         sampleID,
		"feature_set":       featureSetName,
		"num_features":      result.NumFeatures,
		"feature_record_id": featureRecordID,
	}

	if err := r.Gateway.UpdateJobStatus(ctx, p.JobID, domain.JobSucceeded, output, ""); err != nil {
		return fmt.Errorf("%w: mark job succeeded: %v", domain.ErrGateway, err)
	}

	log.Info("job completed successfully")

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
