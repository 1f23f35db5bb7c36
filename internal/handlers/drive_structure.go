package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"integrations/internal/application/entity"
	"integrations/internal/transport/gdrive"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

const rootFolderKey = "root"

type DriveStructureHandler struct {
	connector gdrive.Connector
	secrets   SecretReader
	store     DriveFolderStore
	logger    *zap.SugaredLogger
}

func NewDriveStructureHandler(connector gdrive.Connector, secrets SecretReader, store DriveFolderStore, logger *zap.SugaredLogger) *DriveStructureHandler {
	return &DriveStructureHandler{connector: connector, secrets: secrets, store: store, logger: logger}
}

func (h *DriveStructureHandler) Type() entity.EventType { return entity.EventDriveCreateStructure }

// folderBuild состояние одного прохода по дереву
type folderBuild struct {
	tenantID string
	jobID    string
	shared   bool
	drive    gdrive.Drive
	created  int
	warnings []string
}

func (h *DriveStructureHandler) Handle(ctx context.Context, req Request) (entity.Result, error) {
	jobID := req.Payload.String("job_id")
	if jobID == "" {
		return nil, errors.New("drive_create_structure: payload.job_id is required")
	}
	cfg := req.Settings.Integrations.GoogleDrive
	if !cfg.Enabled {
		return nil, errors.New("drive_create_structure: google drive is not enabled for tenant")
	}
	if cfg.RootFolderID == "" {
		return nil, errors.New("drive_create_structure: root_folder_id is not configured")
	}

	sa, err := h.secrets.ReadSecret(ctx, req.TenantID+"_gdrive_service_account")
	if err != nil {
		return nil, fmt.Errorf("drive_create_structure: service account: %w", err)
	}
	drive, err := h.connector.Connect(ctx, sa)
	if err != nil {
		return nil, fmt.Errorf("drive_create_structure: %w", err)
	}
	job, err := h.store.GetJob(ctx, req.TenantID, jobID)
	if err != nil {
		return nil, fmt.Errorf("drive_create_structure: %w", err)
	}

	template := DefaultFolderTemplate
	if cfg.FolderTemplate != nil {
		template = *cfg.FolderTemplate
	}

	b := &folderBuild{tenantID: req.TenantID, jobID: jobID, shared: cfg.IsSharedDrive(), drive: drive}
	root := h.ensure(ctx, b, rootFolderKey, rootFolderName(template.Name, job), cfg.RootFolderID, nil)
	if root == nil {
		return nil, fmt.Errorf("drive_create_structure: root folder failed: %s", strings.Join(b.warnings, "; "))
	}
	h.build(ctx, b, template.Children, root)

	if err := h.store.SetJobDriveURL(ctx, req.TenantID, jobID, root.URL); err != nil {
		b.warnings = append(b.warnings, "update job drive url: "+err.Error())
	}
	if len(b.warnings) > 0 {
		h.logger.Warnw("drive structure warnings", "tenant_id", req.TenantID, "job_id", jobID, "warnings", b.warnings)
	}
	if b.created == 0 && len(b.warnings) > 0 {
		return nil, fmt.Errorf("drive_create_structure: no folders created: %s", strings.Join(b.warnings, "; "))
	}

	warnings := b.warnings
	if warnings == nil {
		warnings = []string{}
	}
	return entity.Result{
		"folders_created": b.created,
		"root_url":        root.URL,
		"warnings":        warnings,
	}, nil
}

// build дети создаются только под успешно созданным родителем
func (h *DriveStructureHandler) build(ctx context.Context, b *folderBuild, nodes []entity.FolderTemplateNode, parent *entity.DriveFolder) {
	for _, n := range nodes {
		folder := h.ensure(ctx, b, n.Key, n.Name, parent.GoogleDriveID, &parent.ID)
		if folder != nil && len(n.Children) > 0 {
			h.build(ctx, b, n.Children, folder)
		}
	}
}

// ensure существующая запись в drive_folders повторно не создаётся
func (h *DriveStructureHandler) ensure(ctx context.Context, b *folderBuild, key, name, parentDriveID string, parentID *uuid.UUID) *entity.DriveFolder {
	existing, err := h.store.GetDriveFolder(ctx, b.tenantID, b.jobID, key)
	if err != nil {
		b.warnings = append(b.warnings, fmt.Sprintf("folder %q: %v", key, err))
		return nil
	}
	if existing != nil && existing.GoogleDriveID != "" {
		if existing.URL == "" {
			existing.URL = gdrive.FolderURL(existing.GoogleDriveID)
		}
		return existing
	}

	created, err := b.drive.CreateFolder(ctx, gdrive.SanitizeFolderName(name), parentDriveID, b.shared)
	if err != nil {
		b.warnings = append(b.warnings, fmt.Sprintf("folder %q: %v", key, err))
		return nil
	}
	folder := entity.DriveFolder{FolderKey: key, GoogleDriveID: created.ID, URL: created.URL}
	id, err := h.store.UpsertDriveFolder(ctx, b.tenantID, b.jobID, folder, parentID)
	if err != nil {
		b.warnings = append(b.warnings, fmt.Sprintf("folder %q: record: %v", key, err))
		return nil
	}
	folder.ID = id
	b.created++
	return &folder
}
