package entity

import (
	"time"

	"github.com/gofrs/uuid"
)

type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeRetryScheduled Outcome = "retry_scheduled"
	OutcomeFailed         Outcome = "failed"
	// OutcomeLockLost строку успел перехватить другой воркер, запись результата не прошла
	OutcomeLockLost Outcome = "lock_lost"
)

type EventOutcome struct {
	EventID     uuid.UUID  `json:"event_id"`
	EventType   EventType  `json:"event_type"`
	Outcome     Outcome    `json:"outcome"`
	Attempts    int        `json:"attempts"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type BatchResult struct {
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Retried   int            `json:"retried"`
	Failed    int            `json:"failed"`
	Outcomes  []EventOutcome `json:"outcomes"`
}

func (r *BatchResult) Add(o EventOutcome) {
	r.Total++
	switch o.Outcome {
	case OutcomeCompleted:
		r.Completed++
	case OutcomeRetryScheduled:
		r.Retried++
	case OutcomeFailed:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// ToProcessResponse failed = retried + failed
func (r BatchResult) ToProcessResponse() ProcessResponse {
	return ProcessResponse{
		Processed: r.Completed,
		Failed:    r.Retried + r.Failed,
		Total:     r.Total,
	}
}

// OutcomeMessage сообщение в kafka о финальном статусе события
type OutcomeMessage struct {
	EventID   uuid.UUID   `json:"event_id"`
	TenantID  string      `json:"tenant_id"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`
	Attempts  int         `json:"attempts"`
	Error     string      `json:"error,omitempty"`
	At        time.Time   `json:"at"`
}
