package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"integrations/internal/application/entity"
	"integrations/internal/transport/webhook"

	"go.uber.org/zap"
)

const (
	nfWebhookKey       = "nf_request"
	defaultNfEmailSubj = "Ellah Filmes - Pedido de Nota Fiscal"
)

type NfEmailHandler struct {
	sender webhook.Sender
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewNfEmailHandler(sender webhook.Sender, logger *zap.SugaredLogger) *NfEmailHandler {
	return &NfEmailHandler{sender: sender, logger: logger, now: time.Now}
}

func (h *NfEmailHandler) Type() entity.EventType { return entity.EventNfEmailSend }

func (h *NfEmailHandler) Handle(ctx context.Context, req Request) (entity.Result, error) {
	email := req.Payload.String("supplier_email")
	if email == "" {
		return nil, errors.New("nf_email_send: payload.supplier_email is required")
	}
	cfg := req.Settings.Integrations.N8n
	if !cfg.Enabled {
		return skipped("n8n integration disabled"), nil
	}
	url := cfg.Webhooks[nfWebhookKey]
	if url == "" {
		return nil, fmt.Errorf("nf_email_send: webhook %q is not configured", nfWebhookKey)
	}

	subject := req.Payload.String("email_subject")
	if subject == "" {
		subject = defaultNfEmailSubj
	}
	body := map[string]any{
		"tenant_id":            req.TenantID,
		"event_id":             req.EventID.String(),
		"supplier_email":       email,
		"supplier_name":        req.Payload.String("supplier_name"),
		"email_subject":        subject,
		"email_html":           req.Payload.String("email_html"),
		"email_text":           req.Payload.String("email_text"),
		"reply_to":             req.Payload.String("reply_to"),
		"financial_record_ids": req.Payload.Strings("financial_record_ids"),
		"timestamp":            h.now().UTC().Format(time.RFC3339Nano),
	}

	status, err := h.sender.Post(ctx, url, secretHeader(cfg.WebhookSecret), body)
	if err != nil {
		return nil, fmt.Errorf("nf_email_send: %w", err)
	}
	return entity.Result{"supplier_email": email, "http_status": status}, nil
}
