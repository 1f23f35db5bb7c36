package entity

// HealthCheckResponse структура ответа для health check
type HealthCheckResponse struct {
	Status  bool                    `json:"status" example:"true"`
	Message string                  `json:"message" example:"success"`
	Version string                  `json:"version" example:"0.1.0"`
	Checks  HealthCheckResponseData `json:"checks"`
}

type HealthCheckResponseData struct {
	Database HealthCheckItem `json:"database"`
	Kafka    HealthCheckItem `json:"kafka"`
}

type HealthCheckItem struct {
	Status bool   `json:"status" example:"true"`
	Type   string `json:"type" example:"postgresql"`
	Error  string `json:"error,omitempty" example:"database connection failed"`
}

// ProcessRequest тело запроса на один цикл обработки
type ProcessRequest struct {
	BatchSize int `json:"batch_size" example:"20"`
}

// ProcessResponse processed = completed, failed = retried + failed
type ProcessResponse struct {
	Processed int `json:"processed" example:"18"`
	Failed    int `json:"failed" example:"2"`
	Total     int `json:"total" example:"20"`
}

type EnqueueResponse struct {
	ID string `json:"id" example:"6f1c2d0e-8a7b-4c1e-9a52-0d2a0f6b9e11"`
}
