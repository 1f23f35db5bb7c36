package repo

import (
	"context"
	"errors"
	"fmt"

	"integrations/internal/appers"
	"integrations/internal/application/entity"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
)

// Состояние обработчиков: по нему они проверяют, что побочный эффект уже был

func (r *RepoImpl) GetJob(ctx context.Context, tenantID, jobID string) (*entity.JobRef, error) {
	var j entity.JobRef
	err := r.db.QueryRow(ctx, getJobSQL, jobID, tenantID).Scan(&j.ID, &j.Code, &j.JobAba, &j.Title, &j.ClientName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", appers.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

func (r *RepoImpl) SetJobDriveURL(ctx context.Context, tenantID, jobID, url string) error {
	if _, err := r.db.Exec(ctx, setJobDriveURLSQL, jobID, tenantID, url); err != nil {
		return fmt.Errorf("set job drive url: %w", err)
	}
	return nil
}

// GetDriveFolder nil без ошибки, если папка ещё не создавалась
func (r *RepoImpl) GetDriveFolder(ctx context.Context, tenantID, jobID, folderKey string) (*entity.DriveFolder, error) {
	var f entity.DriveFolder
	err := r.db.QueryRow(ctx, getDriveFolderSQL, tenantID, jobID, folderKey).Scan(&f.ID, &f.FolderKey, &f.GoogleDriveID, &f.URL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get drive folder: %w", err)
	}
	return &f, nil
}

func (r *RepoImpl) UpsertDriveFolder(ctx context.Context, tenantID, jobID string, f entity.DriveFolder, parentID *uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, upsertDriveFolderSQL, tenantID, jobID, f.FolderKey, f.GoogleDriveID, f.URL, parentID).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert drive folder: %w", err)
	}
	return id, nil
}

func (r *RepoImpl) JobFileExists(ctx context.Context, tenantID, jobID, externalID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, jobFileExistsSQL, tenantID, jobID, externalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("job file exists: %w", err)
	}
	return exists, nil
}

func (r *RepoImpl) InsertJobFile(ctx context.Context, f entity.JobFile) error {
	meta, err := entity.MarshalJSONB(f.Metadata)
	if err != nil {
		return fmt.Errorf("marshal job file metadata: %w", err)
	}
	if _, err := r.db.Exec(ctx, insertJobFileSQL,
		f.TenantID, f.JobID, f.FileName, f.FileType, f.DriveFileID, f.DriveURL, f.ExternalID, meta,
	); err != nil {
		return fmt.Errorf("insert job file: %w", err)
	}
	return nil
}

func (r *RepoImpl) HasActiveSubmission(ctx context.Context, tenantID, jobID, email string, templateID int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, activeSubmissionExistsSQL, tenantID, jobID, email, templateID).Scan(&exists); err != nil {
		return false, fmt.Errorf("active submission exists: %w", err)
	}
	return exists, nil
}

func (r *RepoImpl) InsertSubmission(ctx context.Context, s entity.SignatureSubmission) (uuid.UUID, error) {
	contract, err := entity.MarshalJSONB(s.ContractData)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal contract data: %w", err)
	}
	meta, err := entity.MarshalJSONB(map[string]any{"source": "batch", "event_id": s.EventID.String()})
	if err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	err = r.db.QueryRow(ctx, insertSubmissionSQL,
		s.TenantID, s.JobID, s.PersonID, s.PersonName, s.PersonEmail, s.PersonCPF,
		s.DocusealSubmissionID, s.DocusealTemplateID, contract, s.CreatedBy, meta,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert submission: %w", err)
	}
	return id, nil
}

func (r *RepoImpl) InsertWhatsappMessage(ctx context.Context, m entity.WhatsappMessage) error {
	if _, err := r.db.Exec(ctx, insertWhatsappMessageSQL,
		m.TenantID, m.JobID, m.Phone, m.RecipientName, m.Message, m.Status, m.ExternalMessageID,
	); err != nil {
		return fmt.Errorf("insert whatsapp message: %w", err)
	}
	return nil
}
