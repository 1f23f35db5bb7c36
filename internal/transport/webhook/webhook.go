// Package webhook JSON POST на внешние вебхуки (n8n).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"integrations/internal/application/common"
	"integrations/pkg/httpclient"

	"go.uber.org/zap"
)

const (
	requestTimeout = 30 * time.Second
	maxErrorBody   = 300
	SecretHeader   = "X-Webhook-Secret"
)

type Sender interface {
	Post(ctx context.Context, url string, headers map[string]string, body any) (int, error)
}

type Client struct {
	http   httpclient.HTTPClient
	logger *zap.SugaredLogger
}

func NewClient(http httpclient.HTTPClient, logger *zap.SugaredLogger) *Client {
	return &Client{http: http, logger: logger}
}

// Post не-2xx возвращается ошибкой с началом тела ответа
func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal webhook body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("webhook returned HTTP %d: %s", resp.StatusCode, common.Truncate(string(text), maxErrorBody, ""))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debugf("webhook %s answered %d", req.URL.Host, resp.StatusCode)
	return resp.StatusCode, nil
}
