package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"integrations/internal/application/entity"
	"integrations/pkg/db"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// EventStore хранилище очереди интеграций
type EventStore interface {
	// InsertEvent inserted=false, если событие с таким ключом идемпотентности уже есть
	InsertEvent(ctx context.Context, req entity.EnqueueRequest, payload []byte) (id uuid.UUID, inserted bool, err error)
	GetEventIDByIdempotencyKey(ctx context.Context, tenantID, key string) (uuid.UUID, error)
	ClaimBatch(ctx context.Context, limit int, staleAfter time.Duration, maxAttempts int) ([]entity.IntegrationEvent, error)
	FailExhausted(ctx context.Context, staleAfter time.Duration, maxAttempts int) (int64, error)

	// Mark* пишут результат только если строка всё ещё processing с тем же attempts,
	// иначе appers.ErrLockLost
	MarkCompleted(ctx context.Context, id uuid.UUID, attempts int, result []byte) error
	MarkRetry(ctx context.Context, id uuid.UUID, attempts int, errMsg string, nextRetryAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, errMsg string) error

	GetEvent(ctx context.Context, id uuid.UUID) (*entity.IntegrationEvent, error)
	ListEvents(ctx context.Context, f entity.EventFilter) ([]entity.IntegrationEvent, int, error)
	PurgeCompleted(ctx context.Context, days int) (int64, error)
}

type TenantStore interface {
	GetTenantSettings(ctx context.Context, tenantID string) (entity.TenantSettings, error)
	ListTenantAdmins(ctx context.Context, tenantID string) ([]uuid.UUID, error)
	InsertNotifications(ctx context.Context, items []entity.Notification) error
	ReadSecret(ctx context.Context, name string) (string, error)
}

type Repo interface {
	EventStore
	TenantStore
	HealthCheck(ctx context.Context) error
}

type RepoImpl struct {
	db     db.DB
	logger *zap.SugaredLogger
}

func NewRepo(db db.DB, logger *zap.SugaredLogger) *RepoImpl {
	return &RepoImpl{db: db, logger: logger}
}

func (r *RepoImpl) HealthCheck(ctx context.Context) error {
	// Проверяем доступность БД через простой запрос
	var result int
	err := r.db.QueryRow(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// isDuplicateKeyError проверяет, является ли ошибка ошибкой дубликата ключа (SQLSTATE 23505)
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
