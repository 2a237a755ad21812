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

// HTTPResultNotifier posts classifications to the survey backend.
type HTTPResultNotifier struct {
	url    string
	client *http.Client
}

func NewHTTPResultNotifier(url string, timeout time.Duration) *HTTPResultNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPResultNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type ClassificationPayload struct {
	UserID   int64  `json:"user_id"`
	SurveyID int64  `json:"survey_id"`
	Result   string `json:"result"`
}

func (n *HTTPResultNotifier) Notify(ctx context.Context, key model.SessionKey, label model.Label) error {
	body, err := json.Marshal(ClassificationPayload{
		UserID:   key.UserID,
		SurveyID: key.SurveyID,
		Result:   label.String(),
	})
	if err != nil {
		return fmt.Errorf("error marshaling classification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending classification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
