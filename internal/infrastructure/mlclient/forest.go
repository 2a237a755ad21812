package mlclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gaze_service/internal/domain/model"
)

// ForestFile is the file name of the exported model inside the model directory.
const ForestFile = "forest.json"

// Forest is a decision forest exported from the training pipeline. Each tree
// is a flat node list rooted at index 0. Split nodes send a row left when its
// numeric feature is <= Threshold, or, for the title feature, when the title
// is one of Categories. The score is the mean of the reached leaf values.
type Forest struct {
	Trees []Tree `json:"trees"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

type Node struct {
	Feature    string   `json:"feature,omitempty"`
	Threshold  float64  `json:"threshold,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Left       int      `json:"left,omitempty"`
	Right      int      `json:"right,omitempty"`
	Value      *float64 `json:"value,omitempty"`
}

func (n Node) isLeaf() bool { return n.Value != nil }

// LoadForest reads and validates forest.json from modelDir.
func LoadForest(modelDir string) (*Forest, error) {
	path := filepath.Join(modelDir, ForestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks the structure so that scoring never indexes out of range
// and every walk terminates: children always point forward.
func (f *Forest) Validate() error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for t, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", t)
		}
		for i, n := range tree.Nodes {
			if n.isLeaf() {
				if *n.Value < 0 || *n.Value > 1 {
					return fmt.Errorf("tree %d node %d: leaf value %g outside [0,1]", t, i, *n.Value)
				}
				continue
			}
			if !knownFeature(n.Feature) {
				return fmt.Errorf("tree %d node %d: unknown feature %q", t, i, n.Feature)
			}
			for _, child := range []int{n.Left, n.Right} {
				if child <= i || child >= len(tree.Nodes) {
					return fmt.Errorf("tree %d node %d: child index %d out of range", t, i, child)
				}
			}
		}
	}
	return nil
}

func knownFeature(name string) bool {
	if name == "title" {
		return true
	}
	_, ok := model.FeatureVector{}.Numeric(name)
	return ok
}

func (f *Forest) Score(ctx context.Context, inputs []model.ClassifierInput) ([]float64, error) {
	scores := make([]float64, len(inputs))
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sum := 0.0
		for _, tree := range f.Trees {
			sum += tree.leaf(in.FeatureVector)
		}
		scores[i] = sum / float64(len(f.Trees))
	}
	return scores, nil
}

func (t Tree) leaf(fv model.FeatureVector) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.isLeaf() {
			return *n.Value
		}
		if n.goesLeft(fv) {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (n Node) goesLeft(fv model.FeatureVector) bool {
	if n.Feature == "title" {
		for _, c := range n.Categories {
			if model.ParseTitle(c) == fv.Title {
				return true
			}
		}
		return false
	}
	v, _ := fv.Numeric(n.Feature)
	return v <= n.Threshold
}
