package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lib/pq"

	"github.com/biomarker-io/worker/internal/domain"
)

// ErrNoDatabaseConnection is returned when a nil *Connection is passed to
// NewGateway.
var ErrNoDatabaseConnection = errors.New("no database connection provided")

// Gateway implements domain.Gateway against PostgreSQL. Every entity
// lookup and write accepts the tenant tag and includes it in the query
// predicate (GetJob and UpdateJobStatus are keyed by job id alone); a row
// belonging to a different org_id is indistinguishable from a missing row.
type Gateway struct {
	conn   *Connection
	logger *slog.Logger
}

var _ domain.Gateway = (*Gateway)(nil)

// NewGateway builds a Gateway over an already-opened Connection.
func NewGateway(conn *Connection) (*Gateway, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &Gateway{
		conn: conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: getEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}, nil
}

// HealthCheck delegates to the underlying connection.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	return g.conn.HealthCheck(ctx)
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() error {
	return g.conn.Close()
}

// GetArtifact returns the artifact row or ErrNotFound.
func (g *Gateway) GetArtifact(ctx context.Context, id, orgID string) (*domain.Artifact, error) {
	const query = `
		SELECT id, org_id, experiment_id, sample_id, storage_key, file_name,
		       file_type, sha256, schema_version, created_at
		FROM raw_artifacts
		WHERE id = $1 AND org_id = $2
	`

	a := &domain.Artifact{}

	var sampleID sql.NullString

	err := g.conn.QueryRowContext(ctx, query, id, orgID).Scan(
		&a.ID, &a.OrgID, &a.ExperimentID, &sampleID, &a.StorageKey,
		&a.FileName, &a.FileType, &a.SHA256, &a.SchemaVersion, &a.CreatedAt,
	)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("%w: get_artifact: %w", domain.ErrGateway, err)
	}

	if sampleID.Valid {
		a.SampleID = &sampleID.String
	}

	return a, nil
}

// GetSample returns the sample row or ErrNotFound.
func (g *Gateway) GetSample(ctx context.Context, id, orgID string) (*domain.Sample, error) {
	const query = `
		SELECT id, org_id, experiment_id, sample_label, patient_pseudonym,
		       matrix_type, collected_at, created_at
		FROM samples
		WHERE id = $1 AND org_id = $2
	`

	s := &domain.Sample{}

	err := g.conn.QueryRowContext(ctx, query, id, orgID).Scan(
		&s.ID, &s.OrgID, &s.ExperimentID, &s.SampleLabel, &s.Pseudonym,
		&s.MatrixType, &s.CollectedAt, &s.CreatedAt,
	)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("%w: get_sample: %w", domain.ErrGateway, err)
	}

	return s, nil
}

// GetSamplesForExperiment returns samples ordered by creation time ascending.
func (g *Gateway) GetSamplesForExperiment(ctx context.Context, experimentID, orgID string) ([]*domain.Sample, error) {
	const query = `
		SELECT id, org_id, experiment_id, sample_label, patient_pseudonym,
		       matrix_type, collected_at, created_at
		FROM samples
		WHERE experiment_id = $1 AND org_id = $2
		ORDER BY created_at ASC
	`

	rows, err := g.conn.QueryContext(ctx, query, experimentID, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: get_samples_for_experiment: %w", domain.ErrGateway, err)
	}
	defer rows.Close()

	var samples []*domain.Sample

	for rows.Next() {
		s := &domain.Sample{}
		if err := rows.Scan(
			&s.ID, &s.OrgID, &s.ExperimentID, &s.SampleLabel, &s.Pseudonym,
			&s.MatrixType, &s.CollectedAt, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: get_samples_for_experiment: %w", domain.ErrGateway, err)
		}

		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: get_samples_for_experiment: %w", domain.ErrGateway, err)
	}

	return samples, nil
}

// GetOrCreateFeatureSet performs a race-free upsert keyed by (org_id, name):
// INSERT ... ON CONFLICT DO NOTHING RETURNING id, falling back to a SELECT
// when the insert is skipped because a concurrent caller won the race.
func (g *Gateway) GetOrCreateFeatureSet(
	ctx context.Context,
	orgID, name, version string,
	declared domain.FeatureList,
) (*domain.FeatureSet, error) {
	featureListJSON, err := json.Marshal(declared)
	if err != nil {
		return nil, fmt.Errorf("%w: get_or_create_feature_set: marshal feature list: %w", domain.ErrGateway, err)
	}

	const insertQuery = `
		INSERT INTO feature_sets (org_id, name, version, feature_list)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, name) DO NOTHING
		RETURNING id
	`

	var id string

	err = g.conn.QueryRowContext(ctx, insertQuery, orgID, name, version, featureListJSON).Scan(&id)

	switch {
	case err == nil:
		return &domain.FeatureSet{ID: id, OrgID: orgID, Name: name, Version: version, FeatureList: declared}, nil
	case errors.Is(err, sql.ErrNoRows):
		// Lost the race; another caller already created this row.
		return g.getFeatureSetByName(ctx, orgID, name)
	default:
		return nil, fmt.Errorf("%w: get_or_create_feature_set: %w", domain.ErrGateway, err)
	}
}

func (g *Gateway) getFeatureSetByName(ctx context.Context, orgID, name string) (*domain.FeatureSet, error) {
	const query = `
		SELECT id, org_id, name, version, feature_list
		FROM feature_sets
		WHERE org_id = $1 AND name = $2
	`

	fs := &domain.FeatureSet{}

	var featureListJSON []byte

	err := g.conn.QueryRowContext(ctx, query, orgID, name).Scan(&fs.ID, &fs.OrgID, &fs.Name, &fs.Version, &featureListJSON)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("%w: get_or_create_feature_set: %w", domain.ErrGateway, err)
	}

	if err := json.Unmarshal(featureListJSON, &fs.FeatureList); err != nil {
		return nil, fmt.Errorf("%w: get_or_create_feature_set: unmarshal feature list: %w", domain.ErrGateway, err)
	}

	return fs, nil
}

// UpsertSampleFeatures overwrites the row for (sample, feature_set) if one
// exists, bumping computed_at; otherwise inserts. Returns the row id.
func (g *Gateway) UpsertSampleFeatures(
	ctx context.Context,
	orgID, sampleID, featureSetID, artifactID string,
	features domain.FeatureMap,
) (string, error) {
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return "", fmt.Errorf("%w: upsert_sample_features: marshal features: %w", domain.ErrGateway, err)
	}

	const query = `
		INSERT INTO sample_features (org_id, sample_id, feature_set_id, artifact_id, features, computed_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (sample_id, feature_set_id) DO UPDATE
		SET features = EXCLUDED.features,
		    artifact_id = EXCLUDED.artifact_id,
		    computed_at = NOW()
		RETURNING id
	`

	var id string

	err = g.conn.QueryRowContext(ctx, query, orgID, sampleID, featureSetID, artifactID, featuresJSON).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%w: upsert_sample_features: %w", domain.ErrGateway, err)
	}

	return id, nil
}

// GetSampleFeaturesByFeatureSet returns the row for (sample, feature_set)
// or ErrNotFound.
func (g *Gateway) GetSampleFeaturesByFeatureSet(
	ctx context.Context,
	sampleID, featureSetID, orgID string,
) (*domain.SampleFeatures, error) {
	const query = `
		SELECT id, org_id, sample_id, feature_set_id, artifact_id, features, computed_at
		FROM sample_features
		WHERE sample_id = $1 AND feature_set_id = $2 AND org_id = $3
	`

	sf := &domain.SampleFeatures{}

	var featuresJSON []byte

	err := g.conn.QueryRowContext(ctx, query, sampleID, featureSetID, orgID).Scan(
		&sf.ID, &sf.OrgID, &sf.SampleID, &sf.FeatureSetID, &sf.ArtifactID, &featuresJSON, &sf.ComputedAt,
	)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("%w: get_sample_features_by_feature_set: %w", domain.ErrGateway, err)
	}

	if err := json.Unmarshal(featuresJSON, &sf.Features); err != nil {
		return nil, fmt.Errorf("%w: get_sample_features_by_feature_set: unmarshal features: %w", domain.ErrGateway, err)
	}

	return sf, nil
}

// UpdateJobStatus writes status, optional output/error, and updated_at.
func (g *Gateway) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status domain.JobStatus,
	output map[string]any,
	errText string,
) error {
	var outputJSON []byte

	if output != nil {
		var err error

		outputJSON, err = json.Marshal(output)
		if err != nil {
			return fmt.Errorf("%w: update_job_status: marshal output: %w", domain.ErrGateway, err)
		}
	}

	const query = `
		UPDATE jobs
		SET status = $1, output = COALESCE($2, output), error = $3, updated_at = NOW()
		WHERE id = $4
	`

	res, err := g.conn.ExecContext(ctx, query, string(status), outputJSON, errText, jobID)
	if err != nil {
		return fmt.Errorf("%w: update_job_status: %w", domain.ErrGateway, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update_job_status: %w", domain.ErrGateway, err)
	}

	if n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// GetJob returns the job row or ErrNotFound.
func (g *Gateway) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	const query = `
		SELECT id, org_id, type, status, input, output, error, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`

	j := &domain.Job{}

	var inputJSON, outputJSON []byte

	var errText sql.NullString

	err := g.conn.QueryRowContext(ctx, query, id).Scan(
		&j.ID, &j.OrgID, &j.Type, &j.Status, &inputJSON, &outputJSON, &errText, &j.CreatedAt, &j.UpdatedAt,
	)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("%w: get_job: %w", domain.ErrGateway, err)
	}

	j.Error = errText.String

	if len(inputJSON) > 0 {
		if err := json.Unmarshal(inputJSON, &j.Input); err != nil {
			return nil, fmt.Errorf("%w: get_job: unmarshal input: %w", domain.ErrGateway, err)
		}
	}

	if len(outputJSON) > 0 {
		if err := json.Unmarshal(outputJSON, &j.Output); err != nil {
			return nil, fmt.Errorf("%w: get_job: unmarshal output: %w", domain.ErrGateway, err)
		}
	}

	return j, nil
}

// CreatePredictJob creates an audit job already in JobRunning, carrying
// enough input to re-execute (sample, model) if ever replayed.
func (g *Gateway) CreatePredictJob(ctx context.Context, orgID, sampleID, modelID string) (*domain.Job, error) {
	input := map[string]any{"sample_id": sampleID, "model_id": modelID}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("%w: create_predict_job: marshal input: %w", domain.ErrGateway, err)
	}

	const query = `
		INSERT INTO jobs (org_id, type, status, input, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	j := &domain.Job{OrgID: orgID, Type: domain.JobType("predict"), Status: domain.JobRunning, Input: input}

	err = g.conn.QueryRowContext(ctx, query, orgID, string(j.Type), string(domain.JobRunning), inputJSON).
		Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: create_predict_job: %w", domain.ErrGateway, err)
	}

	return j, nil
}

// GetModel returns the model row or ErrNotFound.
func (g *Gateway) GetModel(ctx context.Context, id, orgID string) (*domain.Model, error) {
	const query = `
		SELECT id, org_id, name, version, task, feature_set_id, storage_key,
		       model_format, metrics, is_active, created_at
		FROM model_registry
		WHERE id = $1 AND org_id = $2
	`

	m := &domain.Model{}

	var metricsJSON []byte

	err := g.conn.QueryRowContext(ctx, query, id, orgID).Scan(
		&m.ID, &m.OrgID, &m.Name, &m.Version, &m.Task, &m.FeatureSetID, &m.StorageKey,
		&m.ModelFormat, &metricsJSON, &m.IsActive, &m.CreatedAt,
	)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("%w: get_model: %w", domain.ErrGateway, err)
	}

	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &m.Metrics); err != nil {
			return nil, fmt.Errorf("%w: get_model: unmarshal metrics: %w", domain.ErrGateway, err)
		}
	}

	return m, nil
}

// UpsertPrediction upserts on the (sample, model) uniqueness key.
func (g *Gateway) UpsertPrediction(
	ctx context.Context,
	orgID, sampleID, modelID string,
	yHat, threshold float64,
	predictedClass int,
) error {
	const query = `
		INSERT INTO predictions (org_id, sample_id, model_id, y_hat, threshold, predicted_class, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (sample_id, model_id) DO UPDATE
		SET y_hat = EXCLUDED.y_hat,
		    threshold = EXCLUDED.threshold,
		    predicted_class = EXCLUDED.predicted_class,
		    created_at = NOW()
	`

	if _, err := g.conn.ExecContext(ctx, query, orgID, sampleID, modelID, yHat, threshold, predictedClass); err != nil {
		return fmt.Errorf("%w: upsert_prediction: %w", domain.ErrGateway, err)
	}

	return nil
}

// UpsertLeafEmbedding upserts on the (sample, model) uniqueness key.
func (g *Gateway) UpsertLeafEmbedding(ctx context.Context, orgID, sampleID, modelID string, leafIndices []int) error {
	const query = `
		INSERT INTO leaf_embeddings (org_id, sample_id, model_id, leaf_indices, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (sample_id, model_id) DO UPDATE
		SET leaf_indices = EXCLUDED.leaf_indices,
		    created_at = NOW()
	`

	if _, err := g.conn.ExecContext(ctx, query, orgID, sampleID, modelID, pq.Array(leafIndices)); err != nil {
		return fmt.Errorf("%w: upsert_leaf_embedding: %w", domain.ErrGateway, err)
	}

	return nil
}
