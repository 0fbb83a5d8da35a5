package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/biomarker-io/worker/internal/domain"
)

func newMockGateway(t *testing.T) (*Gateway, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(true),
	)
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	gw := &Gateway{
		conn:   &Connection{db},
		logger: slog.New(slog.DiscardHandler),
	}

	return gw, mock
}

func TestGateway_GetArtifact_Found(t *testing.T) {
	gw, mock := newMockGateway(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "org_id", "experiment_id", "sample_id", "storage_key",
		"file_name", "file_type", "sha256", "schema_version", "created_at",
	}).AddRow("art-1", "org-1", "exp-1", "sample-1", "s3://bucket/key", "f.csv", "csv", "deadbeef", "v1", now)

	mock.ExpectQuery("SELECT id, org_id, experiment_id, sample_id").
		WithArgs("art-1", "org-1").
		WillReturnRows(rows)

	a, err := gw.GetArtifact(context.Background(), "art-1", "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.ID != "art-1" || a.SampleID == nil || *a.SampleID != "sample-1" {
		t.Errorf("unexpected artifact: %+v", a)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGateway_GetArtifact_NotFound(t *testing.T) {
	gw, mock := newMockGateway(t)

	mock.ExpectQuery("SELECT id, org_id, experiment_id, sample_id").
		WithArgs("missing", "org-1").
		WillReturnError(sql.ErrNoRows)

	_, err := gw.GetArtifact(context.Background(), "missing", "org-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGateway_GetSample_WrongTenant(t *testing.T) {
	gw, mock := newMockGateway(t)

	mock.ExpectQuery("SELECT id, org_id, experiment_id, sample_label").
		WithArgs("sample-1", "org-2").
		WillReturnError(sql.ErrNoRows)

	_, err := gw.GetSample(context.Background(), "sample-1", "org-2")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for mismatched tenant, got %v", err)
	}
}

func TestGateway_GetOrCreateFeatureSet_Created(t *testing.T) {
	gw, mock := newMockGateway(t)

	mock.ExpectQuery("INSERT INTO feature_sets").
		WithArgs("org-1", "core_v1", "v1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("fs-1"))

	fs, err := gw.GetOrCreateFeatureSet(context.Background(), "org-1", "core_v1", "v1", domain.FeatureList{
		Global: []string{"age"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fs.ID != "fs-1" {
		t.Errorf("expected fs-1, got %s", fs.ID)
	}
}

func TestGateway_GetOrCreateFeatureSet_RaceFallback(t *testing.T) {
	gw, mock := newMockGateway(t)

	mock.ExpectQuery("INSERT INTO feature_sets").
		WithArgs("org-1", "core_v1", "v1", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery("SELECT id, org_id, name, version, feature_list").
		WithArgs("org-1", "core_v1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "name", "version", "feature_list"}).
			AddRow("fs-existing", "org-1", "core_v1", "v1", []byte(`{"timeseries":[],"endpoint":[],"global":["age"]}`)))

	fs, err := gw.GetOrCreateFeatureSet(context.Background(), "org-1", "core_v1", "v1", domain.FeatureList{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fs.ID != "fs-existing" {
		t.Errorf("expected fs-existing, got %s", fs.ID)
	}
}

func TestGateway_UpdateJobStatus_NotFound(t *testing.T) {
	gw, mock := newMockGateway(t)

	mock.ExpectExec("UPDATE jobs").
		WithArgs(string(domain.JobFailed), sqlmock.AnyArg(), "boom", "missing-job").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := gw.UpdateJobStatus(context.Background(), "missing-job", domain.JobFailed, nil, "boom")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGateway_UpdateJobStatus_Success(t *testing.T) {
	gw, mock := newMockGateway(t)

	mock.ExpectExec("UPDATE jobs").
		WithArgs(string(domain.JobSucceeded), sqlmock.AnyArg(), "", "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := gw.UpdateJobStatus(context.Background(), "job-1", domain.JobSucceeded, map[string]any{"ok": true}, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGateway_GetJob_NotFound(t *testing.T) {
	gw, mock := newMockGateway(t)

	mock.ExpectQuery("SELECT id, org_id, type, status").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := gw.GetJob(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGateway_CreatePredictJob(t *testing.T) {
	gw, mock := newMockGateway(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO jobs").
		WithArgs("org-1", "predict", string(domain.JobRunning), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("job-1", now, now))

	j, err := gw.CreatePredictJob(context.Background(), "org-1", "sample-1", "model-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if j.ID != "job-1" || j.Status != domain.JobRunning {
		t.Errorf("unexpected job: %+v", j)
	}
}

func TestGateway_GetModel_Found(t *testing.T) {
	gw, mock := newMockGateway(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "org_id", "name", "version", "task", "feature_set_id", "storage_key",
		"model_format", "metrics", "is_active", "created_at",
	}).AddRow("model-1", "org-1", "rf-classifier", "v1", "classification", "fs-1",
		"s3://bucket/model.json", "leaves", []byte(`{"auc":0.9}`), true, now)

	mock.ExpectQuery("SELECT id, org_id, name, version, task").
		WithArgs("model-1", "org-1").
		WillReturnRows(rows)

	m, err := gw.GetModel(context.Background(), "model-1", "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Metrics["auc"] != 0.9 {
		t.Errorf("expected metrics to decode, got %+v", m.Metrics)
	}
}

func TestGateway_UpsertPrediction(t *testing.T) {
	gw, mock := newMockGateway(t)

	mock.ExpectExec("INSERT INTO predictions").
		WithArgs("org-1", "sample-1", "model-1", 0.87, 0.5, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := gw.UpsertPrediction(context.Background(), "org-1", "sample-1", "model-1", 0.87, 0.5, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGateway_UpsertLeafEmbedding(t *testing.T) {
	gw, mock := newMockGateway(t)

	mock.ExpectExec("INSERT INTO leaf_embeddings").
		WithArgs("org-1", "sample-1", "model-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := gw.UpsertLeafEmbedding(context.Background(), "org-1", "sample-1", "model-1", []int{1, 4, 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGateway_HealthCheck(t *testing.T) {
	gw, mock := newMockGateway(t)
	mock.ExpectPing()

	if err := gw.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewGateway_NilConnection(t *testing.T) {
	_, err := NewGateway(nil)
	if !errors.Is(err, ErrNoDatabaseConnection) {
		t.Errorf("expected ErrNoDatabaseConnection, got %v", err)
	}
}
