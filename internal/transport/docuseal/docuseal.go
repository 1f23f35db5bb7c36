// Package docuseal клиент DocuSeal API (self-hosted) для пакетной отправки контрактов.
package docuseal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"integrations/internal/application/common"
	"integrations/pkg/httpclient"

	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

type Config struct {
	URL   string
	Token string
}

type SubmitterField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Submitter struct {
	Role   string           `json:"role"`
	Email  string           `json:"email"`
	Fields []SubmitterField `json:"fields"`
}

type CreateSubmissionRequest struct {
	TemplateID int64       `json:"template_id"`
	SendEmail  bool        `json:"send_email"`
	Submitters []Submitter `json:"submitters"`
}

type SubmissionResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type Creator interface {
	CreateSubmission(ctx context.Context, cfg Config, in CreateSubmissionRequest) (SubmissionResponse, error)
}

type Client struct {
	http   httpclient.HTTPClient
	logger *zap.SugaredLogger
}

func NewClient(http httpclient.HTTPClient, logger *zap.SugaredLogger) *Client {
	return &Client{http: http, logger: logger}
}

// CreateSubmission POST {url}/api/submissions
func (c *Client) CreateSubmission(ctx context.Context, cfg Config, in CreateSubmissionRequest) (SubmissionResponse, error) {
	var out SubmissionResponse

	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := strings.TrimRight(cfg.URL, "/") + "/api/submissions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return out, fmt.Errorf("docuseal build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-Token", cfg.Token)

	c.logger.Debugf("docuseal: creating submission template_id=%d submitters=%d", in.TemplateID, len(in.Submitters))

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return out, fmt.Errorf("docuseal network error: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, fmt.Errorf("docuseal HTTP %d on /submissions: %s", resp.StatusCode, common.Truncate(string(body), 400, ""))
	}

	if err := decodeSubmission(body, &out); err != nil {
		return out, fmt.Errorf("docuseal decode response: %w", err)
	}
	return out, nil
}

// decodeSubmission API отвечает объектом, а в некоторых версиях массивом submitters
func decodeSubmission(body []byte, out *SubmissionResponse) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []struct {
			ID           int64  `json:"id"`
			SubmissionID int64  `json:"submission_id"`
			Status       string `json:"status"`
		}
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		if len(list) == 0 {
			return fmt.Errorf("empty submitters list")
		}
		out.ID = list[0].SubmissionID
		if out.ID == 0 {
			out.ID = list[0].ID
		}
		out.Status = list[0].Status
		return nil
	}
	return json.Unmarshal(trimmed, out)
}
