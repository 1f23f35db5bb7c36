package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"integrations/internal/appers"
	"integrations/internal/application/common"
	"integrations/internal/application/entity"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
)

const staleFailMessage = "lock expired after final attempt"

func (r *RepoImpl) InsertEvent(ctx context.Context, req entity.EnqueueRequest, payload []byte) (uuid.UUID, bool, error) {
	r.logger.Debugf("[tenant: %s] InsertEvent %s started", req.TenantID, req.EventType)

	var id uuid.UUID
	err := r.db.QueryRow(ctx, insertEventSQL,
		req.TenantID, string(req.EventType), payload, nullable(req.IdempotencyKey),
	).Scan(&id)

	switch {
	case err == nil:
		return id, true, nil
	case errors.Is(err, pgx.ErrNoRows), isDuplicateKeyError(err):
		// ON CONFLICT DO NOTHING вернул 0 строк либо гонка на уникальном индексе
		r.logger.Infof("[tenant: %s] idempotent hit, key: %s", req.TenantID, req.IdempotencyKey)
		return uuid.Nil, false, nil
	default:
		r.logger.Errorf("[tenant: %s] error inserting event: %v", req.TenantID, err)
		return uuid.Nil, false, fmt.Errorf("insert integration_event: %w", err)
	}
}

func (r *RepoImpl) GetEventIDByIdempotencyKey(ctx context.Context, tenantID, key string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, getEventIDByKeySQL, tenantID, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, appers.ErrEventNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("get event by idempotency key: %w", err)
	}
	return id, nil
}

func (r *RepoImpl) ClaimBatch(ctx context.Context, limit int, staleAfter time.Duration, maxAttempts int) ([]entity.IntegrationEvent, error) {
	r.logger.Debugf("[limit: %d, staleAfter: %s] ClaimBatch started", limit, staleAfter)

	rows, err := r.db.Query(ctx, claimBatchSQL, limit, common.PgInterval(staleAfter), maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	defer rows.Close()

	var res []entity.IntegrationEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed event: %w", err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim rows err: %w", err)
	}

	// RETURNING порядок не гарантирует
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })

	return res, nil
}

func (r *RepoImpl) FailExhausted(ctx context.Context, staleAfter time.Duration, maxAttempts int) (int64, error) {
	tag, err := r.db.Exec(ctx, failExhaustedSQL, common.PgInterval(staleAfter), maxAttempts, staleFailMessage)
	if err != nil {
		return 0, fmt.Errorf("fail exhausted: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RepoImpl) MarkCompleted(ctx context.Context, id uuid.UUID, attempts int, result []byte) error {
	return r.guardedExec(ctx, "completed", markCompletedSQL, id, attempts, result)
}

func (r *RepoImpl) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, errMsg string, nextRetryAt time.Time) error {
	return r.guardedExec(ctx, "retry", markRetrySQL, id, attempts, errMsg, nextRetryAt)
}

func (r *RepoImpl) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, errMsg string) error {
	return r.guardedExec(ctx, "failed", markFailedSQL, id, attempts, errMsg)
}

func (r *RepoImpl) guardedExec(ctx context.Context, op, query string, id uuid.UUID, attempts int, args ...any) error {
	tag, err := r.db.Exec(ctx, query, append([]any{id, attempts}, args...)...)
	if err != nil {
		return fmt.Errorf("mark %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warnf("[ID %s] mark %s skipped: lock lost (attempts %d)", id, op, attempts)
		return appers.ErrLockLost
	}
	return nil
}

func (r *RepoImpl) GetEvent(ctx context.Context, id uuid.UUID) (*entity.IntegrationEvent, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, getEventSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, appers.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

func (r *RepoImpl) ListEvents(ctx context.Context, f entity.EventFilter) ([]entity.IntegrationEvent, int, error) {
	where, args := buildEventFilter(f)

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM integration_events"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	offset := (f.Page - 1) * f.PerPage
	query := fmt.Sprintf("SELECT %s FROM integration_events%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		eventColumns, where, len(args)+1, len(args)+2)

	rows, err := r.db.Query(ctx, query, append(args, f.PerPage, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]entity.IntegrationEvent, 0, f.PerPage)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list rows err: %w", err)
	}
	return events, total, nil
}

func buildEventFilter(f entity.EventFilter) (string, []any) {
	conds := make([]string, 0, 3)
	args := make([]any, 0, 5)

	add := func(field string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", field, len(args)))
	}

	if f.TenantID != "" {
		add("tenant_id", f.TenantID)
	}
	if f.EventType != "" {
		add("event_type", string(f.EventType))
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *RepoImpl) PurgeCompleted(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		r.logger.Warnf("daysToKeep is %d, skipping purge", days)
		return 0, nil
	}

	r.logger.Infof("start purging completed events older than %d days", days)

	tag, err := r.db.Exec(ctx, purgeCompletedSQL, days)
	if err != nil {
		r.logger.Errorf("error purging completed events: %v", err)
		return 0, fmt.Errorf("purge completed events: %w", err)
	}
	r.logger.Infof("purged %d completed events (older than %d days)", tag.RowsAffected(), days)
	return tag.RowsAffected(), nil
}

func scanEvent(row pgx.Row) (entity.IntegrationEvent, error) {
	var (
		e                 entity.IntegrationEvent
		eventType, status string
		payload, result   []byte
	)
	err := row.Scan(
		&e.ID, &e.TenantID, &eventType, &payload, &status, &e.Attempts, &e.LockedAt, &e.StartedAt,
		&e.ProcessedAt, &e.NextRetryAt, &e.ErrorMessage, &result, &e.IdempotencyKey, &e.CreatedAt,
	)
	if err != nil {
		return e, err
	}
	e.EventType = entity.EventType(eventType)
	e.Status = entity.EventStatus(status)

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return e, fmt.Errorf("decode payload: %w", err)
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &e.Result); err != nil {
			return e, fmt.Errorf("decode result: %w", err)
		}
	}
	return e, nil
}
