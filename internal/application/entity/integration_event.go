package entity

import (
	"time"

	"github.com/gofrs/uuid"
)

type EventStatus string

const (
	StatusPending    EventStatus = "pending"
	StatusProcessing EventStatus = "processing"
	StatusCompleted  EventStatus = "completed"
	StatusFailed     EventStatus = "failed"
)

func (s EventStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal после completed/failed переходов больше нет
func (s EventStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IntegrationEvent строка очереди интеграций
type IntegrationEvent struct {
	ID             uuid.UUID   `json:"id"`
	TenantID       string      `json:"tenant_id"`
	EventType      EventType   `json:"event_type"`
	Payload        Payload     `json:"payload"`
	Status         EventStatus `json:"status"`
	Attempts       int         `json:"attempts"`
	LockedAt       *time.Time  `json:"locked_at"`
	StartedAt      *time.Time  `json:"started_at"`
	ProcessedAt    *time.Time  `json:"processed_at"`
	NextRetryAt    *time.Time  `json:"next_retry_at"`
	ErrorMessage   *string     `json:"error_message"`
	Result         Result      `json:"result"`
	IdempotencyKey *string     `json:"idempotency_key"`
	CreatedAt      time.Time   `json:"created_at"`
}

// EnqueueRequest запрос на постановку события в очередь
type EnqueueRequest struct {
	TenantID       string    `json:"tenant_id" validate:"required,min=1,max=100"`
	EventType      EventType `json:"event_type" validate:"required,event_type"`
	Payload        Payload   `json:"payload"`
	IdempotencyKey string    `json:"idempotency_key,omitempty" validate:"omitempty,max=200"`
}

// EventFilter фильтр для списка событий, пустое значение - без фильтра
type EventFilter struct {
	TenantID  string
	EventType EventType
	Status    EventStatus
	Page      int
	PerPage   int
}

type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

type EventPage struct {
	Data []IntegrationEvent `json:"data"`
	Meta PageMeta           `json:"meta"`
}
