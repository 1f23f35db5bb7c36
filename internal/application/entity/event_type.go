package entity

import "fmt"

// EventType закрытый набор типов событий.
// Новый тип = новая константа + обработчик в handlers.NewRegistry
type EventType string

const (
	EventDriveCreateStructure EventType = "drive_create_structure"
	EventWhatsappSend         EventType = "whatsapp_send"
	EventN8nWebhook           EventType = "n8n_webhook"
	EventDocusealCreateBatch  EventType = "docuseal_create_batch"
	EventDriveCopyTemplates   EventType = "drive_copy_templates"
	EventNfEmailSend          EventType = "nf_email_send"
)

var eventTypes = []EventType{
	EventDriveCreateStructure,
	EventWhatsappSend,
	EventN8nWebhook,
	EventDocusealCreateBatch,
	EventDriveCopyTemplates,
	EventNfEmailSend,
}

// AllEventTypes копия списка известных типов
func AllEventTypes() []EventType {
	out := make([]EventType, len(eventTypes))
	copy(out, eventTypes)
	return out
}

func (t EventType) IsValid() bool {
	for _, known := range eventTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t EventType) String() string {
	return string(t)
}

func ParseEventType(raw string) (EventType, error) {
	t := EventType(raw)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown event type %q", raw)
	}
	return t, nil
}
