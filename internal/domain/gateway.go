package domain

import "context"

// Gateway is the persistence gateway (component B). Every entity lookup
// and write accepts the tenant tag explicitly and includes it in the
// underlying query predicate; GetJob and UpdateJobStatus are keyed by job
// id alone. Callers never see a row belonging to a different tenant - a
// mismatched tenant looks identical to a missing row (ErrNotFound).
//
// Gateway never inspects or transforms a SampleFeatures feature map: it is
// an opaque payload at this layer.
type Gateway interface {
	// GetArtifact returns the artifact row or ErrNotFound.
	GetArtifact(ctx context.Context, id, orgID string) (*Artifact, error)

	// GetSample returns the sample row or ErrNotFound.
	GetSample(ctx context.Context, id, orgID string) (*Sample, error)

	// GetSamplesForExperiment returns samples ordered by creation time ascending.
	GetSamplesForExperiment(ctx context.Context, experimentID, orgID string) ([]*Sample, error)

	// GetOrCreateFeatureSet performs a race-free upsert keyed by
	// (org_id, name): INSERT ... ON CONFLICT DO NOTHING RETURNING id,
	// falling back to a SELECT when the insert is skipped. On create,
	// it writes the declared feature list.
	GetOrCreateFeatureSet(ctx context.Context, orgID, name, version string, declared FeatureList) (*FeatureSet, error)

	// UpsertSampleFeatures overwrites the row for (sample, feature_set) if
	// one exists, bumping computed_at; otherwise inserts. Returns the row id.
	UpsertSampleFeatures(ctx context.Context, orgID, sampleID, featureSetID, artifactID string, features FeatureMap) (string, error)

	// GetSampleFeaturesByFeatureSet returns the row for (sample,
	// feature_set) or ErrNotFound.
	GetSampleFeaturesByFeatureSet(ctx context.Context, sampleID, featureSetID, orgID string) (*SampleFeatures, error)

	// UpdateJobStatus writes status, optional output/error, and updated_at.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, output map[string]any, errText string) error

	// GetJob returns the job row or ErrNotFound.
	GetJob(ctx context.Context, id string) (*Job, error)

	// CreatePredictJob creates an audit job already in JobRunning.
	CreatePredictJob(ctx context.Context, orgID, sampleID, modelID string) (*Job, error)

	// GetModel returns the model row or ErrNotFound.
	GetModel(ctx context.Context, id, orgID string) (*Model, error)

	// UpsertPrediction upserts on the (sample, model) uniqueness key.
	UpsertPrediction(ctx context.Context, orgID, sampleID, modelID string, yHat, threshold float64, predictedClass int) error

	// UpsertLeafEmbedding upserts on the (sample, model) uniqueness key.
	UpsertLeafEmbedding(ctx context.Context, orgID, sampleID, modelID string, leafIndices []int) error

	// HealthCheck verifies the storage backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
