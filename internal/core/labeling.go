package core

import (
	"strings"

	"gaze_service/internal/domain/model"
)

// ThresholdViewTime is the longest synthetic session duration in seconds.
const ThresholdViewTime = 135

// AssignLabel is the ground-truth rule used to label synthetic sessions.
//
// Clinical roles default to Expert and only fall back to Novice for long,
// perimeter-heavy sessions by junior staff; "Other" defaults to Novice. The
// asymmetry is part of the labelling the shipped model was fit against and
// must not be changed without retraining.
func AssignLabel(title string, yearsOfExperience int, totalViewTime, perimeterFocusRatio float64) model.Label {
	t := strings.ToLower(title)

	switch {
	case strings.Contains(t, "doctor"), strings.Contains(t, "nurse"):
		if totalViewTime == ThresholdViewTime && yearsOfExperience < 3 && perimeterFocusRatio > 0.5 {
			return model.Novice
		}
		return model.Expert

	case strings.Contains(t, "student"):
		if (yearsOfExperience < 3 && perimeterFocusRatio > 0.5) || yearsOfExperience == 0 {
			return model.Novice
		}
		return model.Expert

	default:
		if totalViewTime < ThresholdViewTime && yearsOfExperience > 5 {
			return model.Expert
		}
		return model.Novice
	}
}

// LabelFeatures applies AssignLabel to a feature vector.
func LabelFeatures(fv model.FeatureVector) model.Label {
	return AssignLabel(string(fv.Title), fv.YearsOfExperience, fv.TotalViewTime, fv.PerimeterFocusRatio)
}
