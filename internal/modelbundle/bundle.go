// Package modelbundle loads and caches XGBoost model bundles (component E).
// A bundle is a zip archive containing an xgb_model.{json,ubj} file and a
// model_config.json sidecar.
package modelbundle

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dmitryikh/leaves"

	"github.com/biomarker-io/worker/internal/domain"
)

// ModelConfig mirrors model_config.json: the feature ordering and task
// metadata a bundle was trained against.
type ModelConfig struct {
	FeatureSet       string
	FeatureOrder     []string
	Task             string
	DefaultThreshold float64
	Notes            string
}

// LoadedModel is an opened bundle: a scoring ensemble plus its
// configuration and the raw tree structure used for leaf-index embeddings.
type LoadedModel struct {
	Ensemble    *leaves.Ensemble
	Config      ModelConfig
	NumTrees    int
	ModelFormat string

	// trees holds the parsed node arrays for leaf-index extraction. Only
	// populated when the bundle ships xgb_model.json; a .ubj-only bundle
	// still scores through Ensemble but cannot produce leaf embeddings.
	trees []xgbTree
}

// FeatureNames returns the ordered feature names this model expects.
func (m *LoadedModel) FeatureNames() []string { return m.Config.FeatureOrder }

// SupportsLeafIndices reports whether this bundle can produce leaf-index
// embeddings (requires the JSON tree dump, not just the ubj binary form).
func (m *LoadedModel) SupportsLeafIndices() bool { return len(m.trees) > 0 }

const (
	modelFileJSON  = "xgb_model.json"
	modelFileUBJ   = "xgb_model.ubj"
	configFileName = "model_config.json"
)

// BundleInfo is the metadata InspectBundle reports without the cost of
// parsing the tree ensemble.
type BundleInfo struct {
	Config      ModelConfig
	ModelFormat string
}

// InspectBundle validates bundleBytes' archive structure and config and
// returns its metadata. The ensemble itself is not parsed, so this is
// cheap enough to run at registration time.
func InspectBundle(bundleBytes []byte) (*BundleInfo, error) {
	_, modelFormat, config, err := checkBundleMembers(bundleBytes)
	if err != nil {
		return nil, err
	}

	return &BundleInfo{Config: *config, ModelFormat: modelFormat}, nil
}

// OpenBundle parses bundleBytes (a zip archive) into a LoadedModel. It
// prefers the JSON model file over the UBJ one because the JSON form is
// also what the leaf-index walker needs.
func OpenBundle(bundleBytes []byte) (*LoadedModel, error) {
	files, modelFormat, config, err := checkBundleMembers(bundleBytes)
	if err != nil {
		return nil, err
	}

	modelFile := modelFileJSON
	if modelFormat == "ubj" {
		modelFile = modelFileUBJ
	}

	modelBytes, err := readZipFile(files[modelFile])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", domain.ErrBundle, modelFile, err)
	}

	ensemble, err := leaves.XGEnsembleFromReader(bufio.NewReader(bytes.NewReader(modelBytes)), true)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load XGBoost model: %v", domain.ErrBundle, err)
	}

	loaded := &LoadedModel{
		Ensemble:    ensemble,
		Config:      *config,
		NumTrees:    ensemble.NEstimators(),
		ModelFormat: modelFormat,
	}

	if modelFormat == "json" {
		trees, err := parseXGBTrees(modelBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse tree structure for leaf embeddings: %v", domain.ErrBundle, err)
		}

		loaded.trees = trees
	}

	return loaded, nil
}

// checkBundleMembers opens the archive, enforces the required-member
// rules (a model file, JSON preferred when both are present, and a
// config sidecar), and parses the
// config. Shared by InspectBundle and OpenBundle.
func checkBundleMembers(bundleBytes []byte) (map[string]*zip.File, string, *ModelConfig, error) {
	zr, err := zip.NewReader(bytes.NewReader(bundleBytes), int64(len(bundleBytes)))
	if err != nil {
		return nil, "", nil, fmt.Errorf("%w: invalid model bundle: not a valid zip file", domain.ErrBundle)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	modelFormat := ""

	switch {
	case files[modelFileJSON] != nil:
		modelFormat = "json"
	case files[modelFileUBJ] != nil:
		modelFormat = "ubj"
	default:
		return nil, "", nil, fmt.Errorf("%w: model bundle must contain %s or %s", domain.ErrBundle, modelFileJSON, modelFileUBJ)
	}

	configZF, ok := files[configFileName]
	if !ok {
		return nil, "", nil, fmt.Errorf("%w: model bundle must contain %s", domain.ErrBundle, configFileName)
	}

	config, err := readModelConfig(configZF)
	if err != nil {
		return nil, "", nil, err
	}

	return files, modelFormat, config, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

func readModelConfig(f *zip.File) (*ModelConfig, error) {
	raw, err := readZipFile(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", domain.ErrBundle, configFileName, err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: invalid %s: %v", domain.ErrBundle, configFileName, err)
	}

	required := []string{"feature_set", "feature_order", "task"}

	var missing []string

	for _, field := range required {
		if _, ok := data[field]; !ok {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s missing required fields: %v", domain.ErrBundle, configFileName, missing)
	}

	featureSet, ok := data["feature_set"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s: feature_set must be a string", domain.ErrBundle, configFileName)
	}

	task, ok := data["task"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s: task must be a string", domain.ErrBundle, configFileName)
	}

	order, ok := data["feature_order"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s: feature_order must be an array of strings", domain.ErrBundle, configFileName)
	}

	cfg := &ModelConfig{
		FeatureSet:       featureSet,
		Task:             task,
		DefaultThreshold: 0.5,
	}

	for i, v := range order {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: feature_order[%d] must be a string", domain.ErrBundle, configFileName, i)
		}

		cfg.FeatureOrder = append(cfg.FeatureOrder, name)
	}

	if th, ok := data["default_threshold"].(float64); ok {
		cfg.DefaultThreshold = th
	}

	if notes, ok := data["notes"].(string); ok {
		cfg.Notes = notes
	}

	return cfg, nil
}
