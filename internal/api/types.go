package api

import "github.com/biomarker-io/worker/internal/job"

// HealthStatus represents the health check response structure.
type HealthStatus struct {
	Status      string `json:"status"`
	ServiceName string `json:"serviceName"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime,omitempty"`
}

// PredictRequest is the body of POST /v1/predict.
type PredictRequest struct {
	OrgID    string `json:"org_id"`
	SampleID string `json:"sample_id"`
	ModelID  string `json:"model_id"`
}

// PredictResponse mirrors inference.Result for a single prediction.
type PredictResponse struct {
	SampleID       string  `json:"sample_id"`
	ModelID        string  `json:"model_id"`
	YHat           float64 `json:"y_hat"`
	Threshold      float64 `json:"threshold"`
	PredictedClass int     `json:"predicted_class"`
	NumTrees       int     `json:"num_trees"`
}

// PredictBatchRequest is the body of POST /v1/predict/batch.
type PredictBatchRequest struct {
	OrgID     string   `json:"org_id"`
	ModelID   string   `json:"model_id"`
	SampleIDs []string `json:"sample_ids"`
}

// PredictBatchResult is the per-sample outcome in a batch response.
type PredictBatchResult struct {
	SampleID       string  `json:"sample_id"`
	YHat           float64 `json:"y_hat,omitempty"`
	Threshold      float64 `json:"threshold,omitempty"`
	PredictedClass int     `json:"predicted_class,omitempty"`
	NumTrees       int     `json:"num_trees,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// PredictBatchResponse is the body of the POST /v1/predict/batch response.
type PredictBatchResponse struct {
	TotalSamples int                  `json:"total_samples"`
	Successful   int                  `json:"successful"`
	Failed       int                  `json:"failed"`
	Results      []PredictBatchResult `json:"results"`
}

// RunOnceRequest is the body of POST /internal/run-once: a single queue
// job payload processed synchronously instead of via the poller.
type RunOnceRequest struct {
	job.Payload
}

// RunOnceResponse reports the terminal state of the job after running it.
type RunOnceResponse struct {
	JobID  string         `json:"job_id"`
	Status string         `json:"status"`
	Output map[string]any `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}
