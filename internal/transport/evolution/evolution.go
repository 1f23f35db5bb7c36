// Package evolution клиент Evolution API v2 (WhatsApp).
package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"integrations/internal/application/common"
	"integrations/pkg/httpclient"

	"go.uber.org/zap"
)

const requestTimeout = 15 * time.Second

type SendTextRequest struct {
	InstanceURL  string
	InstanceName string
	APIKey       string
	Phone        string
	Message      string
}

type Sender interface {
	SendText(ctx context.Context, req SendTextRequest) (externalID string, err error)
}

type Client struct {
	http   httpclient.HTTPClient
	logger *zap.SugaredLogger
}

func NewClient(http httpclient.HTTPClient, logger *zap.SugaredLogger) *Client {
	return &Client{http: http, logger: logger}
}

type sendTextBody struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	ID string `json:"id"`
}

// SendText POST {url}/message/sendText/{instance}, id сообщения из key.id либо id
func (c *Client) SendText(ctx context.Context, in SendTextRequest) (string, error) {
	raw, err := json.Marshal(sendTextBody{Number: SanitizePhone(in.Phone), Text: in.Message})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(in.InstanceURL, "/") + "/message/sendText/" + in.InstanceName

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("evolution build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", in.APIKey)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("evolution API network error: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("evolution API HTTP %d: %s", resp.StatusCode, common.Truncate(string(body), 300, ""))
	}

	var out sendTextResponse
	if err := json.Unmarshal(body, &out); err != nil {
		c.logger.Warnf("evolution: unparsable send response: %v", err)
		return "", nil
	}
	if out.Key.ID != "" {
		return out.Key.ID, nil
	}
	return out.ID, nil
}

// SanitizePhone только цифры, с кодом страны 55
func SanitizePhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if strings.HasPrefix(digits, "55") && len(digits) >= 12 {
		return digits
	}
	return "55" + digits
}
