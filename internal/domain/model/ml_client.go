package model

import "context"

// DecisionThreshold separates Expert from Novice scores.
const DecisionThreshold = 0.5

// Classifier scores feature rows with the probability of the Expert class.
// Implementations are built once at startup and must be safe for concurrent use.
type Classifier interface {
	Score(ctx context.Context, inputs []ClassifierInput) ([]float64, error)
}

// ResultNotifier forwards a classification to the results service.
type ResultNotifier interface {
	Notify(ctx context.Context, key SessionKey, label Label) error
}

// ClassifierInput is one row in the shape the trained model expects. The
// identifier columns are only sent when the model was trained with them.
type ClassifierInput struct {
	FeatureVector
	UserID   *int64 `json:"user_id,omitempty"`
	SurveyID *int64 `json:"survey_id,omitempty"`
}

// NewClassifierInput assembles a model row from a feature vector.
func NewClassifierInput(key SessionKey, fv FeatureVector, withIdentifiers bool) ClassifierInput {
	in := ClassifierInput{FeatureVector: fv}
	if withIdentifiers {
		userID, surveyID := key.UserID, key.SurveyID
		in.UserID = &userID
		in.SurveyID = &surveyID
	}
	return in
}

// Decide thresholds an Expert probability.
func Decide(score float64) Label {
	if score >= DecisionThreshold {
		return Expert
	}
	return Novice
}
