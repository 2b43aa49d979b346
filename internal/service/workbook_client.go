package service

import (
	"context"
	"fmt"
	"time"

	"garage-layout/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// MaxWorkbookBytes largest download accepted.
const MaxWorkbookBytes = 64 << 20

// WorkbookClient downloads site workbooks from a file server or a shared
// drive export link.
type WorkbookClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewWorkbookClient creates the client. Zero timeout means 30s.
func NewWorkbookClient(timeout time.Duration, logger *zap.Logger) *WorkbookClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet, application/octet-stream")

	return &WorkbookClient{httpClient: client, logger: logger}
}

// Fetch downloads url. Non-2xx answers and oversized bodies are errors.
func (c *WorkbookClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	c.logger.Info("Downloading workbook", zap.String("url", url))

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		c.logger.Error("Workbook download failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("failed to download workbook: %w", err)
	}
	if resp.IsError() {
		c.logger.Error("Workbook download returned error status",
			zap.String("url", url),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("failed to download workbook: status %d", resp.StatusCode())
	}
	body := resp.Body()
	if len(body) > MaxWorkbookBytes {
		return nil, &domain.LimitError{Scope: "workbook download", Cap: MaxWorkbookBytes, Observed: len(body)}
	}

	c.logger.Info("Workbook downloaded", zap.String("url", url), zap.Int("bytes", len(body)))
	return body, nil
}
