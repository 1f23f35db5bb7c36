package handlers

import (
	"context"
	"errors"
	"fmt"

	"integrations/internal/appers"
	"integrations/internal/application/entity"
	"integrations/internal/transport/docuseal"

	"go.uber.org/zap"
)

const defaultSubmitterRole = "Contratado"

type DocusealHandler struct {
	creator docuseal.Creator
	secrets SecretReader
	store   SubmissionStore
	logger  *zap.SugaredLogger
}

func NewDocusealHandler(creator docuseal.Creator, secrets SecretReader, store SubmissionStore, logger *zap.SugaredLogger) *DocusealHandler {
	return &DocusealHandler{creator: creator, secrets: secrets, store: store, logger: logger}
}

func (h *DocusealHandler) Type() entity.EventType { return entity.EventDocusealCreateBatch }

func (h *DocusealHandler) Handle(ctx context.Context, req Request) (entity.Result, error) {
	jobID := req.Payload.String("job_id")
	if jobID == "" {
		return nil, errors.New("docuseal_create_batch: payload.job_id is required")
	}
	templateID := req.Payload.Int64("template_id")
	if templateID == 0 {
		return nil, errors.New("docuseal_create_batch: payload.template_id is required")
	}
	members := req.Payload.Objects("members")
	if len(members) == 0 {
		return nil, errors.New("docuseal_create_batch: members list is empty")
	}

	cfg, err := h.config(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("docuseal_create_batch: %w", err)
	}

	var created, failed int
	results := make([]map[string]any, 0, len(members))
	for _, m := range members {
		email, name := m.String("email"), m.String("name")
		if email == "" || name == "" {
			failed++
			results = append(results, map[string]any{"email": email, "name": name, "status": "skipped", "reason": "missing email or name"})
			continue
		}

		res, err := h.submit(ctx, req, cfg, jobID, templateID, m)
		if err != nil {
			h.logger.Warnw("docuseal submission failed", "tenant_id", req.TenantID, "job_id", jobID, "error", err)
			failed++
			results = append(results, map[string]any{"email": email, "name": name, "status": "error", "reason": err.Error()})
			continue
		}
		if res["status"] == "created" {
			created++
		}
		results = append(results, res)
	}

	h.logger.Infow("docuseal batch done", "tenant_id", req.TenantID, "job_id", jobID, "created", created, "failed", failed, "total", len(members))
	return entity.Result{
		"job_id":      jobID,
		"template_id": templateID,
		"created":     created,
		"failed":      failed,
		"total":       len(members),
		"results":     results,
	}, nil
}

func (h *DocusealHandler) submit(ctx context.Context, req Request, cfg docuseal.Config, jobID string, templateID int64, m entity.Payload) (map[string]any, error) {
	email, name := m.String("email"), m.String("name")
	exists, err := h.store.HasActiveSubmission(ctx, req.TenantID, jobID, email, templateID)
	if err != nil {
		return nil, err
	}
	if exists {
		return map[string]any{"email": email, "name": name, "status": "skipped", "reason": "active submission exists"}, nil
	}

	role := m.String("role")
	if role == "" {
		role = defaultSubmitterRole
	}
	var fields []docuseal.SubmitterField
	for _, f := range m.Objects("fields") {
		fields = append(fields, docuseal.SubmitterField{Name: f.String("name"), Value: f.String("value")})
	}

	resp, err := h.creator.CreateSubmission(ctx, cfg, docuseal.CreateSubmissionRequest{
		TemplateID: templateID,
		SendEmail:  true,
		Submitters: []docuseal.Submitter{{Role: role, Email: email, Fields: fields}},
	})
	if err != nil {
		return nil, err
	}

	row := entity.SignatureSubmission{
		TenantID:             req.TenantID,
		JobID:                jobID,
		PersonName:           name,
		PersonEmail:          email,
		DocusealSubmissionID: resp.ID,
		DocusealTemplateID:   templateID,
		EventID:              req.EventID,
	}
	if contract, ok := m["contract_data"].(map[string]any); ok {
		row.ContractData = contract
	}
	if v := m.String("person_id"); v != "" {
		row.PersonID = &v
	}
	if v := m.String("cpf"); v != "" {
		row.PersonCPF = &v
	}
	if v := req.Payload.String("created_by"); v != "" {
		row.CreatedBy = &v
	}
	id, err := h.store.InsertSubmission(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}
	return map[string]any{
		"email":                  email,
		"name":                   name,
		"status":                 "created",
		"submission_id":          id.String(),
		"docuseal_submission_id": resp.ID,
	}, nil
}

// config секреты тенанта, затем настройки, затем глобальные
func (h *DocusealHandler) config(ctx context.Context, req Request) (docuseal.Config, error) {
	url, err := h.firstSecret(ctx, req.TenantID+"_DOCUSEAL_URL")
	if err != nil {
		return docuseal.Config{}, err
	}
	if url == "" {
		url = req.Settings.Integrations.Docuseal.URL
	}
	if url == "" {
		if url, err = h.firstSecret(ctx, "DOCUSEAL_URL"); err != nil {
			return docuseal.Config{}, err
		}
	}
	token, err := h.firstSecret(ctx, req.TenantID+"_DOCUSEAL_TOKEN", "DOCUSEAL_TOKEN")
	if err != nil {
		return docuseal.Config{}, err
	}
	if url == "" || token == "" {
		return docuseal.Config{}, fmt.Errorf("docuseal credentials: %w", appers.ErrSecretNotFound)
	}
	return docuseal.Config{URL: url, Token: token}, nil
}

func (h *DocusealHandler) firstSecret(ctx context.Context, names ...string) (string, error) {
	for _, name := range names {
		v, err := h.secrets.ReadSecret(ctx, name)
		if errors.Is(err, appers.ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
	}
	return "", nil
}
