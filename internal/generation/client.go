package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ecom-studio/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backend status values reported for a generation job.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// SubmitRequest is the payload sent to the generation backend. Settings are
// carried in a separate array aligned with SelectedImages by index.
type SubmitRequest struct {
	UserID         string          `json:"userId"`
	RefNo          string          `json:"refNo"`
	SelectedImages []string        `json:"selectedImages"`
	ImageCount     int             `json:"imageCount"`
	Settings       []ImageSettings `json:"settings"`
}

// SubmitResult is the backend's answer to a submission. Exactly one of the
// two fields is set: VideoURL for synchronous completion, StatusURL for
// asynchronous jobs that need polling.
type SubmitResult struct {
	VideoURL  string `json:"video_url,omitempty"`
	StatusURL string `json:"status_url,omitempty"`
}

// StatusResult is one polling answer.
type StatusResult struct {
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Message  string `json:"message,omitempty"`
}

// BackendClient talks to the external video generation service.
type BackendClient interface {
	SubmitGeneration(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	CheckStatus(ctx context.Context, statusURL, refNo string, userID uuid.UUID) (*StatusResult, error)
}

// Compile-time check to ensure backendClient implements BackendClient
var _ BackendClient = (*backendClient)(nil)

type backendClient struct {
	generateURL string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewBackendClient creates a client for the generation backend.
func NewBackendClient(generateURL string, timeout time.Duration, logger *zap.Logger) BackendClient {
	return &backendClient{
		generateURL: generateURL,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.Named("BackendClient"),
	}
}

// SubmitGeneration posts the job to the backend.
func (c *backendClient) SubmitGeneration(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Info("Submitting generation job",
		zap.String("refNo", req.RefNo),
		zap.Int("images", req.ImageCount),
	)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Generation submit request failed", zap.Error(err), zap.String("refNo", req.RefNo))
		return nil, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("Generation backend rejected submission",
			zap.Int("status", resp.StatusCode),
			zap.String("refNo", req.RefNo),
			zap.String("body", string(respBody)),
		)
		return nil, fmt.Errorf("%w: backend status %d", models.ErrGenerationFailed, resp.StatusCode)
	}

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode submit response: %w", err)
	}
	if result.VideoURL == "" && result.StatusURL == "" {
		return nil, fmt.Errorf("%w: backend returned neither video_url nor status_url", models.ErrGenerationFailed)
	}
	return &result, nil
}

// statusRequest is the body of one polling call.
type statusRequest struct {
	RefNo  string `json:"refNo"`
	UserID string `json:"userId"`
}

// CheckStatus polls the backend's status endpoint for one job.
func (c *backendClient) CheckStatus(ctx context.Context, statusURL, refNo string, userID uuid.UUID) (*StatusResult, error) {
	body, err := json.Marshal(statusRequest{RefNo: refNo, UserID: userID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, statusURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Транспортная ошибка: поллер сам решает, когда она становится фатальной
		return nil, fmt.Errorf("%w: %v", models.ErrStatusCheckFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: backend status %d", models.ErrStatusCheckFailed, resp.StatusCode)
	}

	var result StatusResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStatusCheckFailed, err)
	}
	return &result, nil
}
