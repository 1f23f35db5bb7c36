package handlers

import (
	"context"

	"integrations/internal/application/entity"

	"github.com/gofrs/uuid"
)

type JobReader interface {
	GetJob(ctx context.Context, tenantID, jobID string) (*entity.JobRef, error)
}

type DriveFolderStore interface {
	JobReader
	SetJobDriveURL(ctx context.Context, tenantID, jobID, url string) error
	GetDriveFolder(ctx context.Context, tenantID, jobID, folderKey string) (*entity.DriveFolder, error)
	UpsertDriveFolder(ctx context.Context, tenantID, jobID string, f entity.DriveFolder, parentID *uuid.UUID) (uuid.UUID, error)
}

type JobFileStore interface {
	JobReader
	GetDriveFolder(ctx context.Context, tenantID, jobID, folderKey string) (*entity.DriveFolder, error)
	JobFileExists(ctx context.Context, tenantID, jobID, externalID string) (bool, error)
	InsertJobFile(ctx context.Context, f entity.JobFile) error
}

type SubmissionStore interface {
	HasActiveSubmission(ctx context.Context, tenantID, jobID, email string, templateID int64) (bool, error)
	InsertSubmission(ctx context.Context, s entity.SignatureSubmission) (uuid.UUID, error)
}

type MessageLog interface {
	InsertWhatsappMessage(ctx context.Context, m entity.WhatsappMessage) error
}
