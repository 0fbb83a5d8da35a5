package modelbundle

import (
	"encoding/json"
	"math"
)

// xgbTree is the per-tree node arrays from an XGBoost JSON model dump
// (learner.gradient_booster.model.trees[i]). Node i's children are
// left_children[i]/right_children[i]; a value of -1 marks a leaf. This is
// parsed independently of the leaves scoring ensemble because leaves
// exposes tree scores, not per-sample leaf node ids - the domain needs
// the latter for leaf-index embeddings.
type xgbTree struct {
	SplitIndices    []int32   `json:"split_indices"`
	SplitConditions []float64 `json:"split_conditions"`
	LeftChildren    []int32   `json:"left_children"`
	RightChildren   []int32   `json:"right_children"`
	DefaultLeft     []bool    `json:"default_left"`
}

type xgbModelDump struct {
	Learner struct {
		GradientBooster struct {
			Model struct {
				Trees []xgbTree `json:"trees"`
			} `json:"model"`
		} `json:"gradient_booster"`
	} `json:"learner"`
}

func parseXGBTrees(modelJSON []byte) ([]xgbTree, error) {
	var dump xgbModelDump
	if err := json.Unmarshal(modelJSON, &dump); err != nil {
		return nil, err
	}

	return dump.Learner.GradientBooster.Model.Trees, nil
}

// LeafIndices walks each tree in m with fvals, returning the leaf node id
// reached per tree. Missing features are represented as NaN in fvals,
// which takes the default_left branch at any split on that feature,
// matching XGBoost's own missing-value routing.
func (m *LoadedModel) LeafIndices(fvals []float64) []int {
	indices := make([]int, len(m.trees))

	for i, tree := range m.trees {
		indices[i] = walkTree(tree, fvals)
	}

	return indices
}

func walkTree(tree xgbTree, fvals []float64) int {
	node := int32(0)

	for {
		left := tree.LeftChildren[node]
		if left == -1 {
			return int(node)
		}

		right := tree.RightChildren[node]
		splitFeature := tree.SplitIndices[node]
		splitCond := tree.SplitConditions[node]

		var value float64
		if int(splitFeature) < len(fvals) {
			value = fvals[splitFeature]
		} else {
			value = math.NaN()
		}

		if math.IsNaN(value) {
			if tree.DefaultLeft[node] {
				node = left
			} else {
				node = right
			}

			continue
		}

		if value < splitCond {
			node = left
		} else {
			node = right
		}
	}
}
