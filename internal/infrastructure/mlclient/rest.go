package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gaze_service/internal/domain/model"
)

// RemoteClassifier scores rows against a model server speaking the
// TF-Serving REST predict protocol.
type RemoteClassifier struct {
	endpoint string
	client   *http.Client
}

func NewRemoteClassifier(endpoint string, timeout time.Duration) *RemoteClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteClassifier{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type PredictRequest struct {
	Instances []model.ClassifierInput `json:"instances"`
}

type PredictResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
}

func (c *RemoteClassifier) Score(ctx context.Context, inputs []model.ClassifierInput) ([]float64, error) {
	body, err := json.Marshal(PredictRequest{Instances: inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ML request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create ML request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ML service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ML service returned status: %d", resp.StatusCode)
	}

	var mlResp PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&mlResp); err != nil {
		return nil, fmt.Errorf("failed to decode ML response: %w", err)
	}
	if len(mlResp.Predictions) != len(inputs) {
		return nil, fmt.Errorf("ML service returned %d predictions for %d instances", len(mlResp.Predictions), len(inputs))
	}

	scores := make([]float64, len(mlResp.Predictions))
	for i, raw := range mlResp.Predictions {
		score, err := parsePrediction(raw)
		if err != nil {
			return nil, fmt.Errorf("prediction %d: %w", i, err)
		}
		scores[i] = score
	}
	return scores, nil
}

// parsePrediction accepts a bare probability, a single-output vector or a
// two-class [novice, expert] probability pair.
func parsePrediction(raw json.RawMessage) (float64, error) {
	var score float64
	if err := json.Unmarshal(raw, &score); err == nil {
		return score, nil
	}

	var vec []float64
	if err := json.Unmarshal(raw, &vec); err != nil {
		return 0, fmt.Errorf("unsupported prediction shape %s", string(raw))
	}
	switch len(vec) {
	case 1:
		return vec[0], nil
	case 2:
		return vec[1], nil
	}
	return 0, fmt.Errorf("unsupported prediction width %d", len(vec))
}
