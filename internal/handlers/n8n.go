package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"integrations/internal/application/entity"
	"integrations/internal/transport/webhook"

	"go.uber.org/zap"
)

type N8nHandler struct {
	sender webhook.Sender
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewN8nHandler(sender webhook.Sender, logger *zap.SugaredLogger) *N8nHandler {
	return &N8nHandler{sender: sender, logger: logger, now: time.Now}
}

func (h *N8nHandler) Type() entity.EventType { return entity.EventN8nWebhook }

// WebhookKey wf-job-approved -> job_approved
func WebhookKey(workflow string) string {
	return strings.ReplaceAll(strings.TrimPrefix(workflow, "wf-"), "-", "_")
}

func (h *N8nHandler) Handle(ctx context.Context, req Request) (entity.Result, error) {
	workflow := req.Payload.String("workflow")
	if workflow == "" {
		return nil, errors.New("n8n_webhook: payload.workflow is required")
	}
	cfg := req.Settings.Integrations.N8n
	if !cfg.Enabled {
		return skipped("n8n integration disabled"), nil
	}
	key := WebhookKey(workflow)
	url := cfg.Webhooks[key]
	if url == "" {
		return nil, fmt.Errorf("n8n_webhook: webhook %q is not configured", key)
	}

	body := req.Payload.Clone()
	body["tenant_id"] = req.TenantID
	body["event_id"] = req.EventID.String()
	body["timestamp"] = h.now().UTC().Format(time.RFC3339Nano)

	status, err := h.sender.Post(ctx, url, secretHeader(cfg.WebhookSecret), body)
	if err != nil {
		return nil, fmt.Errorf("n8n_webhook %s: %w", key, err)
	}
	h.logger.Debugw("n8n webhook delivered", "tenant_id", req.TenantID, "webhook_key", key, "status", status)
	return entity.Result{"webhook_key": key, "http_status": status}, nil
}

func secretHeader(secret string) map[string]string {
	if secret == "" {
		return nil
	}
	return map[string]string{webhook.SecretHeader: secret}
}
