package model

import (
	"fmt"
	"strings"
)

// Image geometry used by the synthetic survey images.
const (
	ImageWidth  = 256
	ImageHeight = 128

	// GazeFrequency is the eye-tracker sampling rate in samples per second.
	GazeFrequency = 10
)

// Aggregation constants shared by the batch and query feature aggregators.
// Both realizations must read these values, never their own copies.
const (
	CenterLow  = 0.25
	CenterHigh = 0.75

	// GridSize is the number of cells per axis of the coverage grid.
	GridSize  = 10
	GridCells = GridSize * GridSize
)

// InCenter reports whether a normalized point lies in the closed central region.
func InCenter(nx, ny float64) bool {
	return nx >= CenterLow && nx <= CenterHigh && ny >= CenterLow && ny <= CenterHigh
}

// Coverage converts a distinct grid-cell count into the coverage ratio.
func Coverage(distinctCells int) float64 {
	if distinctCells > GridCells {
		distinctCells = GridCells
	}
	return float64(distinctCells) / GridCells
}

// Title is the respondent's position as answered in the survey.
type Title string

const (
	TitleOther          Title = "Other"
	TitleMedicalStudent Title = "Medical Student"
	TitleDoctor         Title = "Doctor"
	TitleNurse          Title = "Nurse"
)

// Titles lists every title in the order the training grid enumerates them.
var Titles = []Title{TitleOther, TitleMedicalStudent, TitleDoctor, TitleNurse}

// ParseTitle maps a free-text survey answer onto a Title, case-insensitively.
// Unrecognized answers map to TitleOther.
func ParseTitle(s string) Title {
	s = strings.TrimSpace(s)
	for _, t := range Titles {
		if strings.EqualFold(s, string(t)) {
			return t
		}
	}
	return TitleOther
}

// Label is the expertise class.
type Label int

const (
	Novice Label = 0
	Expert Label = 1
)

func (l Label) String() string {
	switch l {
	case Novice:
		return "Novice"
	case Expert:
		return "Expert"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// SessionKey identifies one user's pass through one survey.
type SessionKey struct {
	UserID   int64 `json:"user_id" db:"user_id"`
	SurveyID int64 `json:"survey_id" db:"survey_id"`
}

func (k SessionKey) String() string {
	return fmt.Sprintf("user=%d survey=%d", k.UserID, k.SurveyID)
}

// Demographics are the survey answers merged into the feature vector.
type Demographics struct {
	YearsOfExperience int
	Title             Title
}

// FeatureVector is the fixed feature schema consumed by the classifier.
type FeatureVector struct {
	NumGazePoints       int     `json:"num_gaze_points" db:"num_gaze_points"`
	AvgGazeX            float64 `json:"avg_gaze_x" db:"avg_gaze_x"`
	AvgGazeY            float64 `json:"avg_gaze_y" db:"avg_gaze_y"`
	GazeStdX            float64 `json:"gaze_std_x" db:"gaze_std_x"`
	GazeStdY            float64 `json:"gaze_std_y" db:"gaze_std_y"`
	CenterFocusRatio    float64 `json:"center_focus_ratio" db:"center_focus_ratio"`
	PerimeterFocusRatio float64 `json:"perimeter_focus_ratio" db:"perimeter_focus_ratio"`
	UniqueAreaCoverage  float64 `json:"unique_area_coverage" db:"unique_area_coverage"`
	TotalViewTime       float64 `json:"total_view_time" db:"total_view_time"`
	YearsOfExperience   int     `json:"years_of_experience" db:"years_of_experience"`
	Title               Title   `json:"title" db:"title"`
}

// Numeric returns the value of a numeric feature by its column name.
func (f FeatureVector) Numeric(name string) (float64, bool) {
	switch name {
	case "num_gaze_points":
		return float64(f.NumGazePoints), true
	case "avg_gaze_x":
		return f.AvgGazeX, true
	case "avg_gaze_y":
		return f.AvgGazeY, true
	case "gaze_std_x":
		return f.GazeStdX, true
	case "gaze_std_y":
		return f.GazeStdY, true
	case "center_focus_ratio":
		return f.CenterFocusRatio, true
	case "perimeter_focus_ratio":
		return f.PerimeterFocusRatio, true
	case "unique_area_coverage":
		return f.UniqueAreaCoverage, true
	case "total_view_time":
		return f.TotalViewTime, true
	case "years_of_experience":
		return float64(f.YearsOfExperience), true
	}
	return 0, false
}

// FeatureColumns is the column order of the training artifact, label excluded.
var FeatureColumns = []string{
	"num_gaze_points",
	"avg_gaze_x",
	"avg_gaze_y",
	"gaze_std_x",
	"gaze_std_y",
	"center_focus_ratio",
	"perimeter_focus_ratio",
	"unique_area_coverage",
	"total_view_time",
	"years_of_experience",
	"title",
}

// TrainingRow is one labelled synthetic session.
type TrainingRow struct {
	FeatureVector
	Label Label `json:"label" db:"label"`
}
