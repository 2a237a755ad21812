package mlclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gaze_service/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput() model.ClassifierInput {
	return model.NewClassifierInput(
		model.SessionKey{UserID: 7, SurveyID: 3},
		model.FeatureVector{NumGazePoints: 150, PerimeterFocusRatio: 1, Title: model.TitleDoctor},
		false,
	)
}

func TestRemoteClassifier_Score(t *testing.T) {
	tests := []struct {
		name        string
		predictions string
		want        float64
	}{
		{name: "bare probability", predictions: `[0.8]`, want: 0.8},
		{name: "single output vector", predictions: `[[0.3]]`, want: 0.3},
		{name: "class pair", predictions: `[[0.1, 0.9]]`, want: 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got PredictRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.Write([]byte(`{"predictions": ` + tt.predictions + `}`))
			}))
			defer srv.Close()

			c := NewRemoteClassifier(srv.URL, time.Second)
			scores, err := c.Score(context.Background(), []model.ClassifierInput{sampleInput()})
			require.NoError(t, err)
			require.Len(t, scores, 1)
			assert.InDelta(t, tt.want, scores[0], 1e-12)

			require.Len(t, got.Instances, 1)
			assert.Equal(t, 150, got.Instances[0].NumGazePoints)
			assert.Equal(t, model.TitleDoctor, got.Instances[0].Title)
			assert.Nil(t, got.Instances[0].UserID)
		})
	}
}

func TestRemoteClassifier_OmitsIdentifiersByDefault(t *testing.T) {
	var raw map[string][]map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Write([]byte(`{"predictions": [0.5]}`))
	}))
	defer srv.Close()

	_, err := NewRemoteClassifier(srv.URL, time.Second).Score(context.Background(), []model.ClassifierInput{sampleInput()})
	require.NoError(t, err)

	instance := raw["instances"][0]
	assert.NotContains(t, instance, "user_id")
	assert.NotContains(t, instance, "survey_id")
	for _, col := range model.FeatureColumns {
		assert.Contains(t, instance, col)
	}
}

func TestRemoteClassifier_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`},
		{name: "malformed body", status: http.StatusOK, body: `not json`},
		{name: "missing predictions", status: http.StatusOK, body: `{"predictions": []}`},
		{name: "unsupported width", status: http.StatusOK, body: `{"predictions": [[0.1, 0.2, 0.7]]}`},
		{name: "string prediction", status: http.StatusOK, body: `{"predictions": ["Expert"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRemoteClassifier(srv.URL, time.Second).Score(context.Background(), []model.ClassifierInput{sampleInput()})
			assert.Error(t, err)
		})
	}
}
