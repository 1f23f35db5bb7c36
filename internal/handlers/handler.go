// Package handlers обработчики событий интеграций по типам.
//
// Контракт: ошибка = повторить событие целиком, частичные отказы по под-элементам
// кодируются в результате. Доставка at-least-once, поэтому каждый обработчик
// перед побочным эффектом проверяет уже сохранённое состояние.
package handlers

import (
	"context"
	"fmt"
	"sort"

	"integrations/internal/appers"
	"integrations/internal/application/entity"

	"github.com/gofrs/uuid"
)

type Request struct {
	TenantID string
	EventID  uuid.UUID
	Payload  entity.Payload
	Settings entity.TenantSettings
}

type Handler interface {
	Type() entity.EventType
	Handle(ctx context.Context, req Request) (entity.Result, error)
}

// SecretReader хранилище секретов тенанта
type SecretReader interface {
	ReadSecret(ctx context.Context, name string) (string, error)
}

type Registry struct {
	handlers map[entity.EventType]Handler
}

// NewRegistry не принимает дубликаты и неизвестные типы
func NewRegistry(hs ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[entity.EventType]Handler, len(hs))}
	for _, h := range hs {
		t := h.Type()
		if !t.IsValid() {
			return nil, fmt.Errorf("register handler: %w: %q", appers.ErrUnknownEventType, t)
		}
		if _, ok := r.handlers[t]; ok {
			return nil, fmt.Errorf("register handler: %w: %s", appers.ErrDuplicateHandler, t)
		}
		r.handlers[t] = h
	}
	return r, nil
}

func (r *Registry) Resolve(t entity.EventType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

func (r *Registry) Types() []entity.EventType {
	out := make([]entity.EventType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func skipped(reason string) entity.Result {
	return entity.Result{"skipped": true, "reason": reason}
}
