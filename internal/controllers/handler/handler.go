package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"integrations/internal/appers"
	"integrations/internal/application/common"
	"integrations/internal/application/entity"
	use_cases "integrations/internal/application/use-cases"
	"integrations/pkg/validator"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const CronSecretHeader = "X-Cron-Secret"

type Handler interface {
	Enqueue(c *fiber.Ctx) error
	GetEvent(c *fiber.Ctx) error
	ListEvents(c *fiber.Ctx) error
	Process(c *fiber.Ctx) error
	HealthCheck(c *fiber.Ctx) error
}

type HandlerImpl struct {
	usecase    use_cases.UseCaser
	logger     *zap.SugaredLogger
	cronSecret string
}

func NewEventHandler(usecase use_cases.UseCaser, logger *zap.SugaredLogger, cronSecret string) *HandlerImpl {
	return &HandlerImpl{
		usecase:    usecase,
		logger:     logger,
		cronSecret: cronSecret,
	}
}

// formatValidationErrors форматирует ошибки валидации в понятный формат для клиента
func formatValidationErrors(err error) fiber.Map {
	var errs []string
	var validationErrors playgroundvalidator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			field := e.Field()
			var message string
			switch e.Tag() {
			case "required":
				message = fmt.Sprintf("поле '%s' обязательно для заполнения", field)
			case "min":
				message = fmt.Sprintf("поле '%s' должно содержать минимум %s символов", field, e.Param())
			case "max":
				message = fmt.Sprintf("поле '%s' должно содержать максимум %s символов", field, e.Param())
			case "event_type":
				message = fmt.Sprintf("поле '%s': неизвестный тип события %q", field, e.Value())
			default:
				message = fmt.Sprintf("поле '%s' не прошло валидацию: %s", field, e.Tag())
			}
			errs = append(errs, message)
		}
	} else {
		errs = append(errs, err.Error())
	}
	return fiber.Map{
		"error":   "validation failed",
		"details": errs,
	}
}

// HealthCheck godoc
// @Summary     Проверка состояния сервиса
// @Description Проверяет доступность базы данных PostgreSQL и Kafka. Возвращает детальную информацию о состоянии каждого компонента.
// @Produce     json
// @Success     200   {object} entity.HealthCheckResponse "Все сервисы доступны"
// @Failure     503   {object} entity.HealthCheckResponse "Один или несколько сервисов недоступны"
// @tags        Health
// @Router      /health [get]
func (h *HandlerImpl) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	dbHealthy, kafkaHealthy, _ := h.usecase.HealthCheck(ctx)

	health := entity.HealthCheckResponse{
		Status:  dbHealthy && kafkaHealthy,
		Message: "success",
		Version: common.Version,
		Checks: entity.HealthCheckResponseData{
			Database: entity.HealthCheckItem{Status: dbHealthy, Type: "postgresql"},
			Kafka:    entity.HealthCheckItem{Status: kafkaHealthy, Type: "kafka"},
		},
	}
	if !dbHealthy {
		health.Checks.Database.Error = "Database connection failed"
		health.Message = "Some services are unavailable"
	}
	if !kafkaHealthy {
		health.Checks.Kafka.Error = "Kafka connection failed"
		health.Message = "Some services are unavailable"
	}

	if !health.Status {
		return c.Status(fiber.StatusServiceUnavailable).JSON(health)
	}
	return c.Status(fiber.StatusOK).JSON(health)
}

// Enqueue godoc
// @Summary     Постановка события в очередь
// @Description Сохраняет событие интеграции со статусом pending. Повтор с тем же idempotency_key возвращает id существующего события.
// @Accept      json
// @Produce     json
// @Param       body  body     entity.EnqueueRequest  true  "Событие"
// @Success     200   {object} entity.EnqueueResponse
// @Failure     400
// @Failure     500
// @tags        Events
// @Router      /v1/events [post]
func (h *HandlerImpl) Enqueue(c *fiber.Ctx) error {
	var req entity.EnqueueRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Errorf("error parsing body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	// Валидация структуры до обращения к БД
	if err := validator.Validate.Struct(&req); err != nil {
		h.logger.Warnf("validation error: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
	}

	id, err := h.usecase.Enqueue(c.UserContext(), req)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(entity.EnqueueResponse{ID: id.String()})
}

// GetEvent godoc
// @Summary     Событие по id
// @Produce     json
// @Param       id   path     string  true  "ID события"
// @Success     200  {object} entity.IntegrationEvent
// @Failure     400
// @Failure     404
// @Failure     500
// @tags        Events
// @Router      /v1/events/{id} [get]
func (h *HandlerImpl) GetEvent(c *fiber.Ctx) error {
	event, err := h.usecase.GetEvent(c.UserContext(), c.Params("id"))
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(event)
}

// ListEvents godoc
// @Summary     Список событий
// @Description Новые сверху, per_page не больше 100
// @Produce     json
// @Param       tenant_id   query  string false "Тенант"
// @Param       event_type  query  string false "Тип события"
// @Param       status      query  string false "pending|processing|completed|failed"
// @Param       page        query  int    false "Страница, с 1"
// @Param       per_page    query  int    false "Размер страницы"
// @Success     200  {object} entity.EventPage
// @Failure     400
// @Failure     500
// @tags        Events
// @Router      /v1/events [get]
func (h *HandlerImpl) ListEvents(c *fiber.Ctx) error {
	f := entity.EventFilter{
		TenantID:  c.Query("tenant_id"),
		EventType: entity.EventType(c.Query("event_type")),
		Status:    entity.EventStatus(c.Query("status")),
		Page:      c.QueryInt("page", 1),
		PerPage:   c.QueryInt("per_page", 20),
	}

	page, err := h.usecase.ListEvents(c.UserContext(), f)
	if err != nil {
		return appers.SanitizeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(page)
}

// Process godoc
// @Summary     Один цикл обработки очереди
// @Description Захватывает батч и отдаёт его обработчикам. Требует заголовок X-Cron-Secret.
// @Accept      json
// @Produce     json
// @Param       X-Cron-Secret  header  string                 true   "Секрет планировщика"
// @Param       body           body    entity.ProcessRequest  false  "Размер батча, по умолчанию 20, максимум 50"
// @Success     200  {object} entity.ProcessResponse
// @Failure     401
// @tags        Process
// @Router      /v1/process [post]
func (h *HandlerImpl) Process(c *fiber.Ctx) error {
	if !h.authorizedCron(c.Get(CronSecretHeader)) {
		return appers.SanitizeError(c, appers.ErrUnauthorized)
	}

	var req entity.ProcessRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
	}

	res := h.usecase.ProcessCycle(c.UserContext(), req.BatchSize)
	return c.Status(fiber.StatusOK).JSON(res.ToProcessResponse())
}

// authorizedCron пустой настроенный секрет закрывает эндпоинт
func (h *HandlerImpl) authorizedCron(got string) bool {
	if h.cronSecret == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.cronSecret)) == 1
}
