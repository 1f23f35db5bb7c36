package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"integrations/internal/appers"
	"integrations/internal/application/entity"
	"integrations/internal/transport/gdrive"

	"go.uber.org/zap"
)

type DriveCopyHandler struct {
	connector gdrive.Connector
	secrets   SecretReader
	store     JobFileStore
	logger    *zap.SugaredLogger
}

func NewDriveCopyHandler(connector gdrive.Connector, secrets SecretReader, store JobFileStore, logger *zap.SugaredLogger) *DriveCopyHandler {
	return &DriveCopyHandler{connector: connector, secrets: secrets, store: store, logger: logger}
}

func (h *DriveCopyHandler) Type() entity.EventType { return entity.EventDriveCopyTemplates }

func TemplateExternalID(sourceID string) string {
	return "template:" + sourceID
}

func (h *DriveCopyHandler) Handle(ctx context.Context, req Request) (entity.Result, error) {
	jobID := req.Payload.String("job_id")
	if jobID == "" {
		return nil, errors.New("drive_copy_templates: payload.job_id is required")
	}
	cfg := req.Settings.Integrations.GoogleDrive
	if !cfg.Enabled {
		return skipped("google drive disabled"), nil
	}
	if len(cfg.Templates) == 0 {
		return skipped("no templates configured"), nil
	}
	templates := filterTemplates(cfg.Templates, req.Payload.Strings("templates"))
	if len(templates) == 0 {
		return skipped("no templates after filter"), nil
	}

	job, err := h.store.GetJob(ctx, req.TenantID, jobID)
	switch {
	case errors.Is(err, appers.ErrJobNotFound):
		h.logger.Warnw("job not found, copying with empty placeholders", "tenant_id", req.TenantID, "job_id", jobID)
		job = &entity.JobRef{ID: jobID}
	case err != nil:
		return nil, fmt.Errorf("drive_copy_templates: %w", err)
	}

	sa, err := h.secrets.ReadSecret(ctx, req.TenantID+"_gdrive_service_account")
	if err != nil {
		return nil, fmt.Errorf("drive_copy_templates: service account: %w", err)
	}
	drive, err := h.connector.Connect(ctx, sa)
	if err != nil {
		return nil, fmt.Errorf("drive_copy_templates: %w", err)
	}

	copied := 0
	errs := []string{}
	results := make([]map[string]any, 0, len(templates))
	for _, t := range templates {
		res, err := h.copyOne(ctx, req.TenantID, jobID, *job, drive, t)
		if err != nil {
			msg := fmt.Sprintf("template %q: %v", t.Name, err)
			errs = append(errs, msg)
			results = append(results, map[string]any{"source_id": t.SourceID, "name": t.Name, "status": "error", "reason": err.Error()})
			continue
		}
		if res["status"] == "copied" {
			copied++
		}
		results = append(results, res)
	}

	if copied == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("drive_copy_templates: no files copied: %s", strings.Join(errs, "; "))
	}
	return entity.Result{
		"job_id":       jobID,
		"files_copied": copied,
		"errors":       errs,
		"results":      results,
	}, nil
}

func (h *DriveCopyHandler) copyOne(ctx context.Context, tenantID, jobID string, job entity.JobRef, drive gdrive.Drive, t entity.DriveFileTemplate) (map[string]any, error) {
	externalID := TemplateExternalID(t.SourceID)
	exists, err := h.store.JobFileExists(ctx, tenantID, jobID, externalID)
	if err != nil {
		return nil, err
	}
	if exists {
		return map[string]any{"source_id": t.SourceID, "name": t.Name, "status": "skipped", "reason": "already copied"}, nil
	}

	key := t.TargetFolderKey
	if key == "" {
		key = rootFolderKey
	}
	folder, err := h.store.GetDriveFolder(ctx, tenantID, jobID, key)
	if err != nil {
		return nil, err
	}
	if folder == nil || folder.GoogleDriveID == "" {
		return nil, fmt.Errorf("target folder %q not found", key)
	}

	name := templateFileName(t.Name, job)
	file, err := drive.CopyFile(ctx, t.SourceID, name, folder.GoogleDriveID)
	if err != nil {
		return nil, err
	}
	err = h.store.InsertJobFile(ctx, entity.JobFile{
		TenantID:    tenantID,
		JobID:       jobID,
		FileName:    name,
		FileType:    "template",
		DriveFileID: file.ID,
		DriveURL:    file.WebViewLink,
		ExternalID:  externalID,
		Metadata:    map[string]any{"source_id": t.SourceID, "target_folder_key": key},
	})
	if err != nil {
		return nil, fmt.Errorf("record job file: %w", err)
	}
	return map[string]any{"source_id": t.SourceID, "name": name, "status": "copied", "drive_file_id": file.ID, "url": file.WebViewLink}, nil
}

func filterTemplates(all []entity.DriveFileTemplate, only []string) []entity.DriveFileTemplate {
	if len(only) == 0 {
		return all
	}
	want := make(map[string]struct{}, len(only))
	for _, id := range only {
		want[id] = struct{}{}
	}
	out := make([]entity.DriveFileTemplate, 0, len(only))
	for _, t := range all {
		if _, ok := want[t.SourceID]; ok {
			out = append(out, t)
		}
	}
	return out
}
