package core

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gaze_service/internal/domain/model"
	"gaze_service/internal/domain/repository"
	"gaze_service/internal/infrastructure/mlclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	aggs     []repository.GazeAggregate
	demos    []repository.DemographicAnswers
	aggErr   error
	demoErr  error
	deadline bool
}

func (f *fakeStore) GazeAggregates(ctx context.Context, key model.SessionKey) ([]repository.GazeAggregate, error) {
	_, f.deadline = ctx.Deadline()
	return f.aggs, f.aggErr
}

func (f *fakeStore) Demographics(ctx context.Context, key model.SessionKey) ([]repository.DemographicAnswers, error) {
	return f.demos, f.demoErr
}

type fakeClassifier struct {
	score  float64
	err    error
	panics bool
	got    []model.ClassifierInput
}

func (f *fakeClassifier) Score(ctx context.Context, inputs []model.ClassifierInput) ([]float64, error) {
	if f.panics {
		panic("tensor shape mismatch")
	}
	f.got = inputs
	if f.err != nil {
		return nil, f.err
	}
	return []float64{f.score}, nil
}

type fakeNotifier struct {
	err   error
	key   model.SessionKey
	label model.Label
	calls int
}

func (f *fakeNotifier) Notify(ctx context.Context, key model.SessionKey, label model.Label) error {
	f.calls++
	f.key, f.label = key, label
	return f.err
}

var testKey = model.SessionKey{UserID: 12, SurveyID: 4}

func storeWithSession() *fakeStore {
	return &fakeStore{
		aggs: []repository.GazeAggregate{{
			Key:                 testKey,
			NumGazePoints:       750,
			AvgGazeX:            0.5,
			AvgGazeY:            0.5,
			CenterFocusRatio:    0.7,
			PerimeterFocusRatio: 0.3,
			UniqueAreaCoverage:  0.25,
			TotalViewTime:       75,
		}},
		demos: []repository.DemographicAnswers{{
			UserID:            testKey.UserID,
			SurveyID:          testKey.SurveyID,
			YearsOfExperience: sql.NullString{String: "12", Valid: true},
			Title:             sql.NullString{String: "doctor", Valid: true},
		}},
	}
}

func TestInferenceService_Success(t *testing.T) {
	store := storeWithSession()
	clf := &fakeClassifier{score: 0.81}
	notifier := &fakeNotifier{}
	svc := NewInferenceService(store, clf, notifier, InferenceOptions{QueryTimeout: time.Second, ReportTimeout: time.Second})

	res := svc.Predict(context.Background(), testKey)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Expert", res.Prediction)
	assert.Equal(t, StageDone, res.Stage)
	assert.NoError(t, res.Err)
	assert.True(t, store.deadline)

	require.Len(t, clf.got, 1)
	assert.Equal(t, 750, clf.got[0].NumGazePoints)
	assert.Equal(t, 12, clf.got[0].YearsOfExperience)
	assert.Equal(t, model.TitleDoctor, clf.got[0].Title)
	assert.Nil(t, clf.got[0].UserID)

	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, testKey, notifier.key)
	assert.Equal(t, model.Expert, notifier.label)
}

func TestInferenceService_ThresholdAndIdentifiers(t *testing.T) {
	clf := &fakeClassifier{score: 0.5}
	svc := NewInferenceService(storeWithSession(), clf, nil, InferenceOptions{IncludeIdentifiers: true})

	res := svc.Predict(context.Background(), testKey)
	assert.Equal(t, "Expert", res.Prediction)
	require.NotNil(t, clf.got[0].UserID)
	assert.Equal(t, testKey.UserID, *clf.got[0].UserID)
	assert.Equal(t, testKey.SurveyID, *clf.got[0].SurveyID)

	clf.score = 0.4999
	res = svc.Predict(context.Background(), testKey)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Novice", res.Prediction)
}

func TestInferenceService_NoData(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := NewInferenceService(&fakeStore{}, &fakeClassifier{}, notifier, InferenceOptions{})

	res := svc.Predict(context.Background(), testKey)

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, MessageNoData, res.Message)
	assert.Equal(t, StageFetching, res.Stage)
	assert.ErrorIs(t, res.Err, model.ErrNoData)
	assert.Zero(t, notifier.calls)
}

func TestInferenceService_StoreFailure(t *testing.T) {
	store := &fakeStore{aggErr: errors.New("connection refused")}
	svc := NewInferenceService(store, &fakeClassifier{}, nil, InferenceOptions{})

	res := svc.Predict(context.Background(), testKey)

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, StageFetching, res.Stage)
	assert.Contains(t, res.Message, "connection refused")
}

func TestInferenceService_NoFeatures(t *testing.T) {
	tests := []struct {
		name  string
		demos []repository.DemographicAnswers
	}{
		{name: "no demographic row"},
		{
			name: "missing title",
			demos: []repository.DemographicAnswers{{
				UserID: testKey.UserID, SurveyID: testKey.SurveyID,
				YearsOfExperience: sql.NullString{String: "3", Valid: true},
			}},
		},
		{
			name: "unparsable years",
			demos: []repository.DemographicAnswers{{
				UserID: testKey.UserID, SurveyID: testKey.SurveyID,
				YearsOfExperience: sql.NullString{String: "a few", Valid: true},
				Title:             sql.NullString{String: "Nurse", Valid: true},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storeWithSession()
			store.demos = tt.demos
			clf := &fakeClassifier{}
			svc := NewInferenceService(store, clf, nil, InferenceOptions{})

			res := svc.Predict(context.Background(), testKey)

			assert.Equal(t, StatusError, res.Status)
			assert.Equal(t, MessageNoFeatures, res.Message)
			assert.Equal(t, StageAggregating, res.Stage)
			assert.ErrorIs(t, res.Err, model.ErrNoFeatures)
			assert.Nil(t, clf.got)
		})
	}
}

func TestInferenceService_PredictionError(t *testing.T) {
	tests := []struct {
		name string
		clf  *fakeClassifier
		want string
	}{
		{name: "scorer error", clf: &fakeClassifier{err: errors.New("model not loaded")}, want: "Prediction failed: model not loaded"},
		{name: "scorer panic", clf: &fakeClassifier{panics: true}, want: "Prediction failed: classifier panic: tensor shape mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			svc := NewInferenceService(storeWithSession(), tt.clf, notifier, InferenceOptions{})

			res := svc.Predict(context.Background(), testKey)

			assert.Equal(t, StatusError, res.Status)
			assert.Equal(t, tt.want, res.Message)
			assert.Equal(t, StagePredicting, res.Stage)
			var perr *model.PredictionError
			assert.ErrorAs(t, res.Err, &perr)
			assert.Zero(t, notifier.calls)
		})
	}
}

func TestInferenceService_ReportingFailureIsWarning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	notifier := mlclient.NewHTTPResultNotifier(url, time.Second)
	svc := NewInferenceService(storeWithSession(), &fakeClassifier{score: 0.1}, notifier, InferenceOptions{ReportTimeout: time.Second})

	res := svc.Predict(context.Background(), testKey)

	assert.Equal(t, StatusWarning, res.Status)
	assert.Equal(t, "Novice", res.Prediction)
	assert.NotEmpty(t, res.DBPostError)
	assert.Equal(t, StageDone, res.Stage)
	var rerr *model.ReportingError
	assert.ErrorAs(t, res.Err, &rerr)
}
