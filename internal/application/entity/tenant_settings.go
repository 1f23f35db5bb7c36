package entity

import "encoding/json"

// TenantSettings снимок настроек интеграций тенанта (tenants.settings -> integrations).
// Обработчики получают его только на чтение.
type TenantSettings struct {
	TenantID     string             `json:"-"`
	Integrations IntegrationsConfig `json:"integrations"`
}

type IntegrationsConfig struct {
	GoogleDrive GoogleDriveConfig `json:"google_drive"`
	Whatsapp    WhatsappConfig    `json:"whatsapp"`
	N8n         N8nConfig         `json:"n8n"`
	Docuseal    DocusealConfig    `json:"docuseal"`
}

type GoogleDriveConfig struct {
	Enabled        bool                `json:"enabled"`
	RootFolderID   string              `json:"root_folder_id"`
	DriveType      string              `json:"drive_type"`
	SharedDriveID  string              `json:"shared_drive_id"`
	FolderTemplate *FolderTemplateNode `json:"folder_template"`
	Templates      []DriveFileTemplate `json:"templates"`
}

// IsSharedDrive drive_type "shared_drive", по умолчанию "my_drive"
func (c GoogleDriveConfig) IsSharedDrive() bool {
	return c.DriveType == "shared_drive"
}

type FolderTemplateNode struct {
	Key      string               `json:"key"`
	Name     string               `json:"name"`
	Children []FolderTemplateNode `json:"children,omitempty"`
}

type DriveFileTemplate struct {
	SourceID        string `json:"source_id"`
	Name            string `json:"name"`
	TargetFolderKey string `json:"target_folder_key"`
}

type WhatsappConfig struct {
	Enabled      bool   `json:"enabled"`
	InstanceURL  string `json:"instance_url"`
	InstanceName string `json:"instance_name"`
}

type N8nConfig struct {
	Enabled       bool              `json:"enabled"`
	Webhooks      map[string]string `json:"webhooks"`
	WebhookSecret string            `json:"webhook_secret"`
}

type DocusealConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// ParseTenantSettings пустой или битый jsonb = всё выключено
func ParseTenantSettings(tenantID string, raw []byte) TenantSettings {
	s := TenantSettings{TenantID: tenantID}
	if len(raw) == 0 {
		return s
	}
	var parsed TenantSettings
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return s
	}
	parsed.TenantID = tenantID
	return parsed
}
