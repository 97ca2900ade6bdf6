// Package remote delivers saved plans to the shared spreadsheet's save endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nutriplan/internal/plan"

	"go.uber.org/zap"
)

// Saver posts plans to a save endpoint.
type Saver struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSaver creates a Saver. A nil client gets a 30 second timeout.
func NewSaver(httpClient *http.Client, logger *zap.Logger) *Saver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{httpClient: httpClient, logger: logger}
}

// Save posts p as JSON to endpoint and reports whether delivery succeeded.
// An empty endpoint is a failed delivery that makes no request.
func (s *Saver) Save(ctx context.Context, endpoint string, p plan.Plan) bool {
	if endpoint == "" {
		return false
	}

	if err := s.post(ctx, endpoint, p); err != nil {
		s.logger.Warn("Remote plan save failed",
			zap.String("plan_id", p.ID),
			zap.Error(err))
		return false
	}

	s.logger.Info("Plan saved remotely", zap.String("plan_id", p.ID))
	return true
}

func (s *Saver) post(ctx context.Context, endpoint string, p plan.Plan) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("save endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
