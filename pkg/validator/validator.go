package validator

import (
	"integrations/internal/application/entity"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate - singleton экземпляр валидатора для переиспользования
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Регистрируем кастомные валидаторы
	_ = Validate.RegisterValidation("event_type", validateEventType)
	_ = Validate.RegisterValidation("event_status", validateEventStatus)
}

// validateEventType тип события из закрытого списка
func validateEventType(fl validator.FieldLevel) bool {
	return entity.EventType(fl.Field().String()).IsValid()
}

// validateEventStatus статус события, пустая строка разрешена (фильтр не задан)
func validateEventStatus(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	return entity.EventStatus(s).IsValid()
}
