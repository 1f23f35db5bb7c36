package appers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

var (
	// ErrLockLost строку перехватил другой воркер (протухший лок), результат не записан
	ErrLockLost = errors.New("event lock lost")
	// ErrSecretNotFound секрета нет ни в хранилище, ни в окружении
	ErrSecretNotFound = errors.New("secret not found")
	// ErrDuplicateHandler повторная регистрация обработчика одного типа
	ErrDuplicateHandler = errors.New("duplicate handler for event type")
	ErrJobNotFound      = errors.New("job not found")
)

type ErrorResp struct {
	StatusCode int    `json:"statusCode,omitempty"`
	StatusDesc string `json:"statusDesc,omitempty"`
}

func (e ErrorResp) Error() string {
	return e.StatusDesc
}

var (
	ErrEventNotFound = ErrorResp{
		http.StatusNotFound,
		"событие не найдено",
	}
	ErrUnknownEventType = ErrorResp{
		http.StatusBadRequest,
		"неизвестный тип события",
	}
	ErrInvalidEnqueue = ErrorResp{
		StatusCode: http.StatusBadRequest,
		StatusDesc: "некорректный запрос на постановку события",
	}
	ErrInvalidID = ErrorResp{
		StatusCode: http.StatusBadRequest,
		StatusDesc: "некорректный id события",
	}
	ErrInvalidFilter = ErrorResp{
		StatusCode: http.StatusBadRequest,
		StatusDesc: "некорректный фильтр",
	}
	ErrUnauthorized = ErrorResp{
		StatusCode: http.StatusUnauthorized,
		StatusDesc: "unauthorized",
	}
)

func SanitizeError(c *fiber.Ctx, err error) error {
	var errResp ErrorResp

	if ok := errors.As(err, &errResp); ok {
		return c.Status(errResp.StatusCode).JSON(fiber.Map{
			"message": errResp.StatusDesc,
		})
	}
	return NewErr(c, http.StatusInternalServerError, err)
}

func NewErr(ctx *fiber.Ctx, status int, err error) error {
	return ctx.Status(status).JSON(fiber.Map{
		"message": err.Error(),
	})
}
