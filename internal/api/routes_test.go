package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/biomarker-io/worker/internal/domain"
	"github.com/biomarker-io/worker/internal/extractor"
	"github.com/biomarker-io/worker/internal/facade"
	"github.com/biomarker-io/worker/internal/job"
	"github.com/biomarker-io/worker/internal/modelbundle"
)

// fakeGateway implements domain.Gateway with in-memory maps, enough to
// exercise the HTTP handlers without a database.
type fakeGateway struct {
	models     map[string]*domain.Model
	healthErr  error
	createdJob *domain.Job
	jobs       map[string]*domain.Job
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		models: map[string]*domain.Model{},
		jobs:   map[string]*domain.Job{},
	}
}

func (g *fakeGateway) GetArtifact(context.Context, string, string) (*domain.Artifact, error) {
	return nil, domain.ErrNotFound
}

func (g *fakeGateway) GetSample(context.Context, string, string) (*domain.Sample, error) {
	return nil, domain.ErrNotFound
}

func (g *fakeGateway) GetSamplesForExperiment(context.Context, string, string) ([]*domain.Sample, error) {
	return nil, nil
}

func (g *fakeGateway) GetOrCreateFeatureSet(
	context.Context, string, string, string, domain.FeatureList,
) (*domain.FeatureSet, error) {
	return nil, domain.ErrNotFound
}

func (g *fakeGateway) UpsertSampleFeatures(
	context.Context, string, string, string, string, domain.FeatureMap,
) (string, error) {
	return "", nil
}

func (g *fakeGateway) GetSampleFeaturesByFeatureSet(
	context.Context, string, string, string,
) (*domain.SampleFeatures, error) {
	return nil, domain.ErrNotFound
}

func (g *fakeGateway) UpdateJobStatus(_ context.Context, jobID string, status domain.JobStatus, output map[string]any, errText string) error {
	j, ok := g.jobs[jobID]
	if !ok {
		j = &domain.Job{ID: jobID}
		g.jobs[jobID] = j
	}

	j.Status = status
	j.Output = output
	j.Error = errText

	return nil
}

func (g *fakeGateway) GetJob(_ context.Context, id string) (*domain.Job, error) {
	j, ok := g.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return j, nil
}

func (g *fakeGateway) CreatePredictJob(_ context.Context, orgID, sampleID, modelID string) (*domain.Job, error) {
	j := &domain.Job{ID: fmt.Sprintf("job-%s-%s", sampleID, modelID), OrgID: orgID, Status: domain.JobRunning}
	g.jobs[j.ID] = j
	g.createdJob = j

	return j, nil
}

func (g *fakeGateway) GetModel(_ context.Context, id, orgID string) (*domain.Model, error) {
	m, ok := g.models[id]
	if !ok || m.OrgID != orgID {
		return nil, domain.ErrNotFound
	}

	return m, nil
}

func (g *fakeGateway) UpsertPrediction(context.Context, string, string, string, float64, float64, int) error {
	return nil
}

func (g *fakeGateway) UpsertLeafEmbedding(context.Context, string, string, string, []int) error {
	return nil
}

func (g *fakeGateway) HealthCheck(context.Context) error {
	return g.healthErr
}

func (g *fakeGateway) Close() error {
	return nil
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("fetch not implemented in test fixture")
}

func newTestServer(t *testing.T, gw *fakeGateway) *Server {
	t.Helper()

	cfg := LoadServerConfig()

	svc := facade.New(gw, fakeFetcher{}, modelbundle.NewCache(), nil)
	runner := job.NewRunner(gw, fakeFetcher{}, extractor.NewRegistry(), nil)

	return NewServer(&cfg, gw, svc, runner)
}

func (s *Server) testHandler() http.Handler {
	return s.httpServer.Handler
}

func TestHandleHealth(t *testing.T) {
	gw := newFakeGateway()
	s := newTestServer(t, gw)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.testHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var health HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if health.Status != "healthy" {
		t.Errorf("expected status healthy, got %q", health.Status)
	}
}

func TestHandleReady_Healthy(t *testing.T) {
	gw := newFakeGateway()
	s := newTestServer(t, gw)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()

	s.testHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleReady_Unhealthy(t *testing.T) {
	gw := newFakeGateway()
	gw.healthErr = fmt.Errorf("connection refused")
	s := newTestServer(t, gw)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()

	s.testHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandlePredict_ModelNotFound(t *testing.T) {
	gw := newFakeGateway()
	s := newTestServer(t, gw)

	body := `{"org_id":"org-1","sample_id":"sample-1","model_id":"missing-model"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/predict", strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.testHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePredict_MissingFields(t *testing.T) {
	gw := newFakeGateway()
	s := newTestServer(t, gw)

	req := httptest.NewRequest(http.MethodPost, "/v1/predict", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	s.testHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleRunOnce_ArtifactNotFound(t *testing.T) {
	gw := newFakeGateway()
	gw.jobs["job-1"] = &domain.Job{ID: "job-1", Status: domain.JobQueued}
	s := newTestServer(t, gw)

	body := `{"job_id":"job-1","org_id":"org-1","artifact_id":"artifact-1","type":"extract_features"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/run-once", strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.testHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 (job recorded failed, not an HTTP error), got %d: %s", rec.Code, rec.Body.String())
	}

	var resp RunOnceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != string(domain.JobFailed) {
		t.Errorf("expected job status failed (artifact lookup fails in the fixture), got %q", resp.Status)
	}
}

func TestHandleNotFound(t *testing.T) {
	gw := newFakeGateway()
	s := newTestServer(t, gw)

	req := httptest.NewRequest(http.MethodGet, "/no-such-route", nil)
	rec := httptest.NewRecorder()

	s.testHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
