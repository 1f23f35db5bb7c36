package handlers

import (
	"context"
	"errors"
	"fmt"

	"integrations/internal/application/entity"
	"integrations/internal/transport/evolution"

	"go.uber.org/zap"
)

type WhatsappHandler struct {
	sender  evolution.Sender
	secrets SecretReader
	log     MessageLog
	logger  *zap.SugaredLogger
}

func NewWhatsappHandler(sender evolution.Sender, secrets SecretReader, log MessageLog, logger *zap.SugaredLogger) *WhatsappHandler {
	return &WhatsappHandler{sender: sender, secrets: secrets, log: log, logger: logger}
}

func (h *WhatsappHandler) Type() entity.EventType { return entity.EventWhatsappSend }

func (h *WhatsappHandler) Handle(ctx context.Context, req Request) (entity.Result, error) {
	cfg := req.Settings.Integrations.Whatsapp
	if !cfg.Enabled {
		return skipped("whatsapp integration disabled"), nil
	}
	if cfg.InstanceURL == "" || cfg.InstanceName == "" {
		return nil, errors.New("whatsapp_send: instance_url and instance_name are required")
	}
	apiKey, err := h.secrets.ReadSecret(ctx, req.TenantID+"_whatsapp_api_key")
	if err != nil {
		return nil, fmt.Errorf("whatsapp_send: api key: %w", err)
	}

	phone := req.Payload.String("phone")
	template := req.Payload.String("template")
	if phone == "" || template == "" {
		return nil, errors.New("whatsapp_send: payload.phone and payload.template are required")
	}
	message := BuildMessage(template, req.Payload.Flatten())
	phone = evolution.SanitizePhone(phone)

	externalID, sendErr := h.sender.SendText(ctx, evolution.SendTextRequest{
		InstanceURL:  cfg.InstanceURL,
		InstanceName: cfg.InstanceName,
		APIKey:       apiKey,
		Phone:        phone,
		Message:      message,
	})

	status := "sent"
	if sendErr != nil {
		status = "failed"
	}
	row := entity.WhatsappMessage{
		TenantID: req.TenantID,
		Phone:    phone,
		Message:  message,
		Status:   status,
	}
	if v := req.Payload.String("job_id"); v != "" {
		row.JobID = &v
	}
	if v := req.Payload.String("recipient_name"); v != "" {
		row.RecipientName = &v
	}
	if externalID != "" {
		row.ExternalMessageID = &externalID
	}
	if err := h.log.InsertWhatsappMessage(ctx, row); err != nil {
		h.logger.Warnw("whatsapp message log failed", "tenant_id", req.TenantID, "error", err)
	}

	if sendErr != nil {
		return nil, fmt.Errorf("whatsapp_send: %w", sendErr)
	}
	return entity.Result{
		"phone":               phone,
		"template":            template,
		"external_message_id": externalID,
		"status":              status,
	}, nil
}
