package mlclient

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gaze_service/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testForest = `{
  "trees": [
    {"nodes": [
      {"feature": "perimeter_focus_ratio", "threshold": 0.5, "left": 1, "right": 2},
      {"value": 0.9},
      {"value": 0.2}
    ]},
    {"nodes": [
      {"feature": "title", "categories": ["Doctor", "Nurse"], "left": 1, "right": 2},
      {"value": 1.0},
      {"feature": "years_of_experience", "threshold": 5, "left": 3, "right": 4},
      {"value": 0.0},
      {"value": 0.6}
    ]}
  ]
}`

func writeForest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ForestFile), []byte(content), 0o644))
	return dir
}

func TestForest_Score(t *testing.T) {
	f, err := LoadForest(writeForest(t, testForest))
	require.NoError(t, err)

	tests := []struct {
		name string
		fv   model.FeatureVector
		want float64
	}{
		{
			name: "centre focused doctor",
			fv:   model.FeatureVector{PerimeterFocusRatio: 0.3, Title: model.TitleDoctor},
			want: (0.9 + 1.0) / 2,
		},
		{
			name: "perimeter focused junior student",
			fv:   model.FeatureVector{PerimeterFocusRatio: 0.8, Title: model.TitleMedicalStudent, YearsOfExperience: 1},
			want: (0.2 + 0.0) / 2,
		},
		{
			name: "threshold goes left",
			fv:   model.FeatureVector{PerimeterFocusRatio: 0.5, Title: model.TitleOther, YearsOfExperience: 10},
			want: (0.9 + 0.6) / 2,
		},
	}

	inputs := make([]model.ClassifierInput, len(tests))
	for i, tt := range tests {
		inputs[i] = model.ClassifierInput{FeatureVector: tt.fv}
	}
	scores, err := f.Score(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, scores, len(tests))

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scores[i], 1e-12)
		})
	}
}

func TestForest_ScoreCancelled(t *testing.T) {
	f, err := LoadForest(writeForest(t, testForest))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Score(ctx, []model.ClassifierInput{{}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadForest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: `{`},
		{name: "no trees", content: `{"trees": []}`},
		{name: "empty tree", content: `{"trees": [{"nodes": []}]}`},
		{name: "unknown feature", content: `{"trees": [{"nodes": [{"feature": "pupil", "left": 1, "right": 2}, {"value": 0}, {"value": 1}]}]}`},
		{name: "backward child", content: `{"trees": [{"nodes": [{"value": 0}, {"feature": "avg_gaze_x", "left": 0, "right": 2}, {"value": 1}]}]}`},
		{name: "child out of range", content: `{"trees": [{"nodes": [{"feature": "avg_gaze_x", "left": 1, "right": 5}, {"value": 1}]}]}`},
		{name: "leaf above one", content: `{"trees": [{"nodes": [{"value": 1.5}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadForest(writeForest(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadForest_MissingFile(t *testing.T) {
	_, err := LoadForest(t.TempDir())
	assert.Error(t, err)
}
