package entity

import "github.com/gofrs/uuid"

const (
	NotificationIntegrationFailed = "integration_failed"
	PriorityUrgent                = "urgent"
)

type Notification struct {
	TenantID  string
	UserID    uuid.UUID
	Type      string
	Priority  string
	Title     string
	Body      string
	Metadata  map[string]any
	ActionURL string
	JobID     *string
}

// JobRef данные job для имён папок и шаблонов
type JobRef struct {
	ID         string
	Code       string
	JobAba     string
	Title      string
	ClientName string
}

type DriveFolder struct {
	ID            uuid.UUID
	FolderKey     string
	GoogleDriveID string
	URL           string
}

type JobFile struct {
	TenantID    string
	JobID       string
	FileName    string
	FileType    string
	DriveFileID string
	DriveURL    string
	ExternalID  string
	Metadata    map[string]any
}

type SignatureSubmission struct {
	TenantID             string
	JobID                string
	PersonID             *string
	PersonName           string
	PersonEmail          string
	PersonCPF            *string
	DocusealSubmissionID int64
	DocusealTemplateID   int64
	ContractData         map[string]any
	CreatedBy            *string
	EventID              uuid.UUID
}

type WhatsappMessage struct {
	TenantID          string
	JobID             *string
	Phone             string
	RecipientName     *string
	Message           string
	Status            string
	ExternalMessageID *string
}
