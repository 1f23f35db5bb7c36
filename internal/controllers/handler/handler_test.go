package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"integrations/internal/appers"
	"integrations/internal/application/entity"

	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubUseCase struct {
	enqueued   []entity.EnqueueRequest
	enqueueID  uuid.UUID
	enqueueErr error

	event    *entity.IntegrationEvent
	eventErr error

	filter  entity.EventFilter
	page    entity.EventPage
	listErr error

	batchSizes []int
	batch      entity.BatchResult

	dbOK, kafkaOK bool
}

func (s *stubUseCase) Enqueue(_ context.Context, req entity.EnqueueRequest) (uuid.UUID, error) {
	s.enqueued = append(s.enqueued, req)
	return s.enqueueID, s.enqueueErr
}

func (s *stubUseCase) GetEvent(_ context.Context, _ string) (*entity.IntegrationEvent, error) {
	return s.event, s.eventErr
}

func (s *stubUseCase) ListEvents(_ context.Context, f entity.EventFilter) (entity.EventPage, error) {
	s.filter = f
	return s.page, s.listErr
}

func (s *stubUseCase) ProcessCycle(_ context.Context, batchSize int) entity.BatchResult {
	s.batchSizes = append(s.batchSizes, batchSize)
	return s.batch
}

func (s *stubUseCase) PurgeCompletedEvents(context.Context) {}
func (s *stubUseCase) RunRelay(context.Context)             {}
func (s *stubUseCase) ConsumerMessage(context.Context, []byte, time.Time) error {
	return nil
}

func (s *stubUseCase) HealthCheck(context.Context) (bool, bool, error) {
	return s.dbOK, s.kafkaOK, nil
}

func newTestApp(uc *stubUseCase, secret string) *fiber.App {
	app := fiber.New()
	h := NewEventHandler(uc, zap.NewNop().Sugar(), secret)
	api := app.Group("/integrations/api/v1")
	api.Post("/events", h.Enqueue)
	api.Get("/events", h.ListEvents)
	api.Get("/events/:id", h.GetEvent)
	api.Post("/process", h.Process)
	app.Get("/health", h.HealthCheck)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, url string, body any, headers map[string]string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, url, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestEnqueue(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	t.Run("ok", func(t *testing.T) {
		uc := &stubUseCase{enqueueID: id}
		app := newTestApp(uc, "s")

		status, body := doJSON(t, app, http.MethodPost, "/integrations/api/v1/events", map[string]any{
			"tenant_id":       "t1",
			"event_type":      "whatsapp_send",
			"payload":         map[string]any{"phone": "5511999999999"},
			"idempotency_key": "k1",
		}, nil)

		assert.Equal(t, http.StatusOK, status)
		var resp entity.EnqueueResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, id.String(), resp.ID)
		require.Len(t, uc.enqueued, 1)
		assert.Equal(t, entity.EventWhatsappSend, uc.enqueued[0].EventType)
		assert.Equal(t, "k1", uc.enqueued[0].IdempotencyKey)
	})

	t.Run("unknown type is rejected before the use case", func(t *testing.T) {
		uc := &stubUseCase{}
		app := newTestApp(uc, "s")

		status, body := doJSON(t, app, http.MethodPost, "/integrations/api/v1/events", map[string]any{
			"tenant_id":  "t1",
			"event_type": "fax_send",
		}, nil)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(body), "validation failed")
		assert.Empty(t, uc.enqueued)
	})

	t.Run("missing tenant", func(t *testing.T) {
		uc := &stubUseCase{}
		app := newTestApp(uc, "s")

		status, _ := doJSON(t, app, http.MethodPost, "/integrations/api/v1/events", map[string]any{
			"event_type": "n8n_webhook",
		}, nil)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Empty(t, uc.enqueued)
	})

	t.Run("storage error", func(t *testing.T) {
		uc := &stubUseCase{enqueueErr: errors.New("db down")}
		app := newTestApp(uc, "s")

		status, _ := doJSON(t, app, http.MethodPost, "/integrations/api/v1/events", map[string]any{
			"tenant_id":  "t1",
			"event_type": "n8n_webhook",
		}, nil)

		assert.Equal(t, http.StatusInternalServerError, status)
	})
}

func TestGetEvent(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	t.Run("found", func(t *testing.T) {
		uc := &stubUseCase{event: &entity.IntegrationEvent{ID: id, Status: entity.StatusPending}}
		app := newTestApp(uc, "s")

		status, body := doJSON(t, app, http.MethodGet, "/integrations/api/v1/events/"+id.String(), nil, nil)

		assert.Equal(t, http.StatusOK, status)
		var ev entity.IntegrationEvent
		require.NoError(t, json.Unmarshal(body, &ev))
		assert.Equal(t, id, ev.ID)
	})

	t.Run("not found", func(t *testing.T) {
		uc := &stubUseCase{eventErr: appers.ErrEventNotFound}
		app := newTestApp(uc, "s")

		status, _ := doJSON(t, app, http.MethodGet, "/integrations/api/v1/events/"+id.String(), nil, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("bad id", func(t *testing.T) {
		uc := &stubUseCase{eventErr: appers.ErrInvalidID}
		app := newTestApp(uc, "s")

		status, _ := doJSON(t, app, http.MethodGet, "/integrations/api/v1/events/nope", nil, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestListEvents(t *testing.T) {
	uc := &stubUseCase{page: entity.EventPage{
		Data: []entity.IntegrationEvent{},
		Meta: entity.PageMeta{Total: 0, Page: 2, PerPage: 10},
	}}
	app := newTestApp(uc, "s")

	status, body := doJSON(t, app, http.MethodGet,
		"/integrations/api/v1/events?tenant_id=t1&event_type=drive_copy_templates&status=failed&page=2&per_page=10", nil, nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, entity.EventFilter{
		TenantID:  "t1",
		EventType: entity.EventDriveCopyTemplates,
		Status:    entity.StatusFailed,
		Page:      2,
		PerPage:   10,
	}, uc.filter)

	var page entity.EventPage
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, 2, page.Meta.Page)
	assert.NotNil(t, page.Data)

	uc.listErr = appers.ErrInvalidFilter
	status, _ = doJSON(t, app, http.MethodGet, "/integrations/api/v1/events?status=bogus", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProcess(t *testing.T) {
	result := entity.BatchResult{}
	result.Add(entity.EventOutcome{Outcome: entity.OutcomeCompleted})
	result.Add(entity.EventOutcome{Outcome: entity.OutcomeRetryScheduled})

	t.Run("authorized", func(t *testing.T) {
		uc := &stubUseCase{batch: result}
		app := newTestApp(uc, "cron-secret")

		status, body := doJSON(t, app, http.MethodPost, "/integrations/api/v1/process",
			map[string]any{"batch_size": 7}, map[string]string{CronSecretHeader: "cron-secret"})

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, []int{7}, uc.batchSizes)
		var resp entity.ProcessResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, result.ToProcessResponse(), resp)
	})

	t.Run("empty body", func(t *testing.T) {
		uc := &stubUseCase{batch: result}
		app := newTestApp(uc, "cron-secret")

		status, _ := doJSON(t, app, http.MethodPost, "/integrations/api/v1/process",
			nil, map[string]string{CronSecretHeader: "cron-secret"})

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, []int{0}, uc.batchSizes)
	})

	for name, tc := range map[string]struct {
		configured string
		header     string
	}{
		"wrong secret":          {configured: "cron-secret", header: "guess"},
		"missing header":        {configured: "cron-secret", header: ""},
		"secret not configured": {configured: "", header: ""},
	} {
		t.Run(name, func(t *testing.T) {
			uc := &stubUseCase{}
			app := newTestApp(uc, tc.configured)

			headers := map[string]string{}
			if tc.header != "" {
				headers[CronSecretHeader] = tc.header
			}
			status, _ := doJSON(t, app, http.MethodPost, "/integrations/api/v1/process", nil, headers)

			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Empty(t, uc.batchSizes)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	uc := &stubUseCase{dbOK: true, kafkaOK: false}
	app := newTestApp(uc, "s")

	status, body := doJSON(t, app, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	var health entity.HealthCheckResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.False(t, health.Status)
	assert.True(t, health.Checks.Database.Status)
	assert.Equal(t, "Kafka connection failed", health.Checks.Kafka.Error)

	uc.kafkaOK = true
	status, _ = doJSON(t, app, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
}
