// Package domain defines the core entities, the tagged feature value, and
// the Gateway interface that the rest of the worker depends on. Concrete
// persistence lives in internal/storage; this package only describes what
// the domain needs.
package domain

import "time"

// JobStatus is the job status state machine: queued -> running -> {succeeded, failed}.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// JobType identifies which handler processes a dequeued job.
type JobType string

const (
	JobExtractFeatures JobType = "extract_features"
)

// DefaultFeatureSetName is used when a job or request omits feature_set.
const DefaultFeatureSetName = "core_v1"

type (
	// Artifact is a raw measurement file attached to an experiment and,
	// usually, a sample. Created externally; immutable.
	Artifact struct {
		ID            string
		OrgID         string
		ExperimentID  string
		SampleID      *string
		StorageKey    string
		FileName      string
		FileType      string
		SHA256        string
		SchemaVersion string
		CreatedAt     time.Time
	}

	// Sample is a biological sample. Created externally; immutable here.
	Sample struct {
		ID           string
		OrgID        string
		ExperimentID string
		SampleLabel  string
		Pseudonym    string
		MatrixType   string
		CollectedAt  time.Time
		CreatedAt    time.Time
	}

	// FeatureList groups the declared feature names of a FeatureSet by kind.
	FeatureList struct {
		Timeseries []string `json:"timeseries"`
		Endpoint   []string `json:"endpoint"`
		Global     []string `json:"global"`
	}

	// FeatureSet is a named, versioned schema of feature keys. Created on
	// first reference via get-or-create; thereafter immutable.
	FeatureSet struct {
		ID          string
		OrgID       string
		Name        string
		Version     string
		FeatureList FeatureList
	}

	// FeatureMap is a mapping from feature key to tagged value. Persisted
	// as structured JSON at the storage layer; the gateway never inspects
	// or transforms it.
	FeatureMap map[string]FeatureValue

	// SampleFeatures is the computed feature map for one (sample,
	// feature_set) pair. Upserted on that uniqueness key.
	SampleFeatures struct {
		ID           string
		OrgID        string
		SampleID     string
		FeatureSetID string
		ArtifactID   string
		Features     FeatureMap
		ComputedAt   time.Time
	}

	// Job tracks the lifecycle of a unit of asynchronous or audited work.
	Job struct {
		ID        string
		OrgID     string
		Type      JobType
		Status    JobStatus
		Input     map[string]any
		Output    map[string]any
		Error     string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Model is a registered, versioned tree-ensemble model bundle.
	Model struct {
		ID           string
		OrgID        string
		Name         string
		Version      string
		Task         string
		FeatureSetID string
		StorageKey   string
		ModelFormat  string
		Metrics      map[string]float64
		IsActive     bool
		CreatedAt    time.Time
	}

	// Prediction is a single scored outcome for (sample, model). Upserted
	// on that uniqueness key.
	Prediction struct {
		ID             string
		OrgID          string
		SampleID       string
		ModelID        string
		YHat           float64
		Threshold      float64
		PredictedClass int
		CreatedAt      time.Time
	}

	// LeafEmbedding is the ordered leaf-index vector for (sample, model).
	// Upserted on that uniqueness key.
	LeafEmbedding struct {
		ID          string
		OrgID       string
		SampleID    string
		ModelID     string
		LeafIndices []int
		CreatedAt   time.Time
	}
)
