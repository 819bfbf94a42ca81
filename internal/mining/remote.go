package mining

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RemoteConfig configures the HTTP extraction client.
type RemoteConfig struct {
	Endpoint  string
	APIKey    string
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
}

// RemoteExtractor posts chunk text to an extraction service.
//
// Request:  POST {endpoint} {"text": "..."}
// Response: {"rule_type": "...", "conditions": [...], "description": "..."}
//
// Transport errors and 5xx responses are retried by the client; anything
// still failing is returned to the caller, which falls back.
type RemoteExtractor struct {
	httpClient *resty.Client
	endpoint   string
	logger     *zap.Logger
}

var _ Extractor = (*RemoteExtractor)(nil)

type extractRequest struct {
	Text string `json:"text"`
}

// NewRemoteExtractor creates an extraction client.
func NewRemoteExtractor(cfg RemoteConfig, logger *zap.Logger) (*RemoteExtractor, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("extraction endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(5*cfg.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &RemoteExtractor{
		httpClient: client,
		endpoint:   cfg.Endpoint,
		logger:     logger,
	}, nil
}

func (e *RemoteExtractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	var result Extraction
	resp, err := e.httpClient.R().
		SetContext(ctx).
		SetBody(extractRequest{Text: text}).
		SetResult(&result).
		Post(e.endpoint)

	if err != nil {
		e.logger.Error("extraction call failed",
			zap.String("endpoint", e.endpoint),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to call extraction endpoint: %w", err)
	}

	if resp.IsError() {
		e.logger.Error("extraction endpoint returned error",
			zap.String("endpoint", e.endpoint),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("extraction endpoint returned %s", resp.Status())
	}

	e.logger.Debug("extraction succeeded",
		zap.Int("conditions", len(result.Conditions)),
		zap.Duration("elapsed", resp.Time()),
	)
	return &result, nil
}
