package core

import (
	"testing"

	"gaze_service/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchAggregator_RatiosAndBounds(t *testing.T) {
	demo := model.Demographics{YearsOfExperience: 5, Title: model.TitleNurse}
	for _, pattern := range Patterns {
		for seed := uint64(1); seed <= 5; seed++ {
			points, err := NewSynthesizer(NewSeededRand(seed)).Generate(pattern, 750)
			require.NoError(t, err)

			fv := BatchAggregator{}.Aggregate(model.Normalize(points, model.ImageWidth, model.ImageHeight), 75, demo)

			assert.Equal(t, 750, fv.NumGazePoints)
			assert.Equal(t, 1.0, fv.CenterFocusRatio+fv.PerimeterFocusRatio)
			assert.GreaterOrEqual(t, fv.UniqueAreaCoverage, 0.0)
			assert.LessOrEqual(t, fv.UniqueAreaCoverage, 1.0)
			assert.Equal(t, 75.0, fv.TotalViewTime)
			assert.Equal(t, 5, fv.YearsOfExperience)
			assert.Equal(t, model.TitleNurse, fv.Title)
		}
	}
}

func TestBatchAggregator_KnownValues(t *testing.T) {
	points := []model.NormalizedPoint{
		{X: 0.0, Y: 0.0},
		{X: 0.5, Y: 0.5},
		{X: 0.25, Y: 0.75},
		{X: 0.99, Y: 0.05},
	}
	fv := BatchAggregator{}.Aggregate(points, 12.5, model.Demographics{})

	assert.Equal(t, 4, fv.NumGazePoints)
	assert.InDelta(t, 0.435, fv.AvgGazeX, 1e-12)
	assert.InDelta(t, 0.325, fv.AvgGazeY, 1e-12)
	assert.InDelta(t, 0.3659576478, fv.GazeStdX, 1e-9)
	assert.InDelta(t, 0.3132491022, fv.GazeStdY, 1e-9)
	// (0.5,0.5) and the closed-bound (0.25,0.75) are central
	assert.Equal(t, 0.5, fv.CenterFocusRatio)
	assert.Equal(t, 0.5, fv.PerimeterFocusRatio)
	assert.Equal(t, 0.04, fv.UniqueAreaCoverage)
	assert.Equal(t, 12.5, fv.TotalViewTime)
}

func TestBatchAggregator_SinglePoint(t *testing.T) {
	fv := BatchAggregator{}.Aggregate([]model.NormalizedPoint{{X: 0.3, Y: 0.9}}, 0, model.Demographics{})

	assert.Equal(t, 1, fv.NumGazePoints)
	assert.Equal(t, 0.3, fv.AvgGazeX)
	assert.Equal(t, 0.9, fv.AvgGazeY)
	assert.Zero(t, fv.GazeStdX)
	assert.Zero(t, fv.GazeStdY)
	assert.Equal(t, 0.0, fv.CenterFocusRatio)
	assert.Equal(t, 1.0, fv.PerimeterFocusRatio)
	assert.Equal(t, 0.01, fv.UniqueAreaCoverage)
}

func TestBatchAggregator_Empty(t *testing.T) {
	fv := BatchAggregator{}.Aggregate(nil, 0, model.Demographics{Title: model.TitleOther})

	assert.Equal(t, model.FeatureVector{PerimeterFocusRatio: 1, Title: model.TitleOther}, fv)
}

func TestBatchAggregator_CoverageCountsDistinctCells(t *testing.T) {
	var points []model.NormalizedPoint
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			p := model.NormalizedPoint{X: float64(i)/10 + 0.05, Y: float64(j)/10 + 0.05}
			points = append(points, p, p)
		}
	}
	fv := BatchAggregator{}.Aggregate(points, 0, model.Demographics{})
	assert.Equal(t, 1.0, fv.UniqueAreaCoverage)

	fv = BatchAggregator{}.Aggregate(points[:20], 0, model.Demographics{})
	assert.Equal(t, 0.1, fv.UniqueAreaCoverage)
}
