package core

import (
	"math"

	"gaze_service/internal/domain/model"

	"gonum.org/v1/gonum/stat"
)

// BatchAggregator computes feature vectors from in-memory point sequences.
// It is the reference realization the SQL aggregation is tested against.
type BatchAggregator struct{}

// Aggregate reduces normalized points, a known view time and demographics into
// a feature vector.
func (BatchAggregator) Aggregate(points []model.NormalizedPoint, totalViewTime float64, demo model.Demographics) model.FeatureVector {
	fv := model.FeatureVector{
		NumGazePoints:       len(points),
		PerimeterFocusRatio: 1,
		TotalViewTime:       totalViewTime,
		YearsOfExperience:   demo.YearsOfExperience,
		Title:               demo.Title,
	}
	if len(points) == 0 {
		return fv
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	inCenter := 0
	cells := make(map[[2]int]struct{})
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
		if model.InCenter(p.X, p.Y) {
			inCenter++
		}
		cells[gridCell(p)] = struct{}{}
	}

	var varX, varY float64
	fv.AvgGazeX, varX = stat.PopMeanVariance(xs, nil)
	fv.AvgGazeY, varY = stat.PopMeanVariance(ys, nil)
	if len(points) > 1 {
		fv.GazeStdX = math.Sqrt(math.Max(varX, 0))
		fv.GazeStdY = math.Sqrt(math.Max(varY, 0))
	}
	fv.CenterFocusRatio = float64(inCenter) / float64(len(points))
	fv.PerimeterFocusRatio = 1 - fv.CenterFocusRatio
	fv.UniqueAreaCoverage = model.Coverage(len(cells))

	return fv
}

func gridCell(p model.NormalizedPoint) [2]int {
	return [2]int{
		int(math.Floor(p.X * model.GridSize)),
		int(math.Floor(p.Y * model.GridSize)),
	}
}
