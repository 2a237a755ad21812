package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gaze_service/internal/domain/model"
	"gaze_service/internal/domain/repository"
)

// Stage is a state of one inference run.
type Stage string

const (
	StageFetching    Stage = "fetching"
	StageAggregating Stage = "aggregating"
	StagePredicting  Stage = "predicting"
	StageReporting   Stage = "reporting"
	StageDone        Stage = "done"
	StageError       Stage = "error"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusWarning Status = "warning"
)

const (
	MessageNoData     = "No data found for this user/survey"
	MessageNoFeatures = "No features available for prediction"
)

// FeatureStore is the read side of the relational aggregation.
type FeatureStore interface {
	GazeAggregates(ctx context.Context, key model.SessionKey) ([]repository.GazeAggregate, error)
	Demographics(ctx context.Context, key model.SessionKey) ([]repository.DemographicAnswers, error)
}

// Result is the payload returned for every prediction request.
type Result struct {
	Status      Status `json:"status"`
	Prediction  string `json:"prediction,omitempty"`
	Message     string `json:"message,omitempty"`
	DBPostError string `json:"db_post_error,omitempty"`

	// Stage is the last stage entered: StageDone on success, otherwise the
	// stage that failed.
	Stage Stage `json:"-"`
	Err   error `json:"-"`
}

type InferenceOptions struct {
	QueryTimeout       time.Duration
	ReportTimeout      time.Duration
	IncludeIdentifiers bool
}

// InferenceService classifies one (user, survey) session from the store.
// It holds no per-request state; concurrent Predict calls are safe as long as
// the injected classifier is.
type InferenceService struct {
	store      FeatureStore
	classifier model.Classifier
	notifier   model.ResultNotifier
	opts       InferenceOptions
}

// NewInferenceService wires the service. A nil notifier skips reporting.
func NewInferenceService(
	store FeatureStore,
	classifier model.Classifier,
	notifier model.ResultNotifier,
	opts InferenceOptions,
) *InferenceService {
	return &InferenceService{
		store:      store,
		classifier: classifier,
		notifier:   notifier,
		opts:       opts,
	}
}

// inferenceRun carries the values produced by each stage.
type inferenceRun struct {
	key      model.SessionKey
	aggs     []repository.GazeAggregate
	demos    []repository.DemographicAnswers
	features model.FeatureVector
	label    model.Label
	failed   Stage
	result   Result
}

// Predict runs Fetching -> Aggregating -> Predicting -> Reporting -> Done.
// Every failure is translated into the returned Result.
func (s *InferenceService) Predict(ctx context.Context, key model.SessionKey) Result {
	run := &inferenceRun{key: key}
	stage := StageFetching
	for {
		slog.Debug("inference stage", "stage", stage, "user_id", key.UserID, "survey_id", key.SurveyID)
		switch stage {
		case StageFetching:
			stage = s.fetch(ctx, run)
		case StageAggregating:
			stage = s.aggregate(run)
		case StagePredicting:
			stage = s.predict(ctx, run)
		case StageReporting:
			stage = s.report(ctx, run)
		case StageDone:
			run.result.Stage = StageDone
			return run.result
		case StageError:
			run.result.Stage = run.failed
			return run.result
		}
	}
}

func (r *inferenceRun) fail(stage Stage, message string, err error) Stage {
	r.failed = stage
	r.result = Result{Status: StatusError, Message: message, Err: err}
	return StageError
}

func (s *InferenceService) fetch(ctx context.Context, run *inferenceRun) Stage {
	if s.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
	}

	aggs, err := s.store.GazeAggregates(ctx, run.key)
	if err != nil {
		slog.Error("failed to fetch gaze aggregate", "error", err, "user_id", run.key.UserID, "survey_id", run.key.SurveyID)
		return run.fail(StageFetching, fmt.Sprintf("Failed to fetch data: %v", err), err)
	}
	if !hasGazePoints(aggs) {
		return run.fail(StageFetching, MessageNoData, &model.NoDataError{Key: run.key})
	}

	demos, err := s.store.Demographics(ctx, run.key)
	if err != nil {
		slog.Error("failed to fetch demographics", "error", err, "user_id", run.key.UserID, "survey_id", run.key.SurveyID)
		return run.fail(StageFetching, fmt.Sprintf("Failed to fetch data: %v", err), err)
	}

	run.aggs, run.demos = aggs, demos
	return StageAggregating
}

// hasGazePoints reports whether any aggregate holds a usable gaze point. Rows
// without image dimensions still produce an aggregate carrying only timing.
func hasGazePoints(aggs []repository.GazeAggregate) bool {
	for _, agg := range aggs {
		if agg.NumGazePoints > 0 {
			return true
		}
	}
	return false
}

func (s *InferenceService) aggregate(run *inferenceRun) Stage {
	fv, err := repository.MergeFeatures(run.key, run.aggs, run.demos)
	if err != nil {
		slog.Warn("no features for session", "error", err, "user_id", run.key.UserID, "survey_id", run.key.SurveyID)
		return run.fail(StageAggregating, MessageNoFeatures, err)
	}
	run.features = fv
	return StagePredicting
}

func (s *InferenceService) predict(ctx context.Context, run *inferenceRun) Stage {
	in := model.NewClassifierInput(run.key, run.features, s.opts.IncludeIdentifiers)
	score, err := s.score(ctx, in)
	if err != nil {
		perr := &model.PredictionError{Key: run.key, Err: err}
		slog.Error("prediction failed", "error", perr)
		return run.fail(StagePredicting, fmt.Sprintf("Prediction failed: %v", err), perr)
	}

	run.label = model.Decide(score)
	run.result = Result{Status: StatusSuccess, Prediction: run.label.String()}
	slog.Info("session classified",
		"user_id", run.key.UserID,
		"survey_id", run.key.SurveyID,
		"score", score,
		"prediction", run.result.Prediction,
	)
	if s.notifier == nil {
		return StageDone
	}
	return StageReporting
}

// score calls the classifier for a single row, turning a panic into an error.
func (s *InferenceService) score(ctx context.Context, in model.ClassifierInput) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()

	scores, err := s.classifier.Score(ctx, []model.ClassifierInput{in})
	if err != nil {
		return 0, err
	}
	if len(scores) != 1 {
		return 0, fmt.Errorf("classifier returned %d scores for 1 row", len(scores))
	}
	if math.IsNaN(scores[0]) {
		return 0, errors.New("classifier returned NaN")
	}
	return scores[0], nil
}

func (s *InferenceService) report(ctx context.Context, run *inferenceRun) Stage {
	if s.opts.ReportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ReportTimeout)
		defer cancel()
	}

	if err := s.notifier.Notify(ctx, run.key, run.label); err != nil {
		rerr := &model.ReportingError{Key: run.key, Err: err}
		slog.Warn("failed to report classification", "error", rerr)
		run.result = Result{
			Status:      StatusWarning,
			Prediction:  run.label.String(),
			DBPostError: err.Error(),
			Err:         rerr,
		}
	}
	return StageDone
}
