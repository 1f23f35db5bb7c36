package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"integrations/internal/appers"
	"integrations/internal/application/entity"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
)

// GetTenantSettings тенанта без строки считаем тенантом со всеми выключенными интеграциями
func (r *RepoImpl) GetTenantSettings(ctx context.Context, tenantID string) (entity.TenantSettings, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, getTenantSettingsSQL, tenantID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.Warnf("[tenant: %s] not found, using empty settings", tenantID)
		return entity.TenantSettings{TenantID: tenantID}, nil
	}
	if err != nil {
		return entity.TenantSettings{}, fmt.Errorf("get tenant settings: %w", err)
	}
	return entity.ParseTenantSettings(tenantID, raw), nil
}

func (r *RepoImpl) ListTenantAdmins(ctx context.Context, tenantID string) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, listTenantAdminsSQL, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list tenant admins: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *RepoImpl) InsertNotifications(ctx context.Context, items []entity.Notification) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, n := range items {
			meta, err := entity.MarshalJSONB(n.Metadata)
			if err != nil {
				return fmt.Errorf("marshal notification metadata: %w", err)
			}
			if _, err := r.db.Exec(ctx, insertNotificationSQL,
				n.TenantID, n.UserID, n.Type, n.Priority, n.Title, n.Body, meta, nullable(n.ActionURL), n.JobID,
			); err != nil {
				return fmt.Errorf("insert notification: %w", err)
			}
		}
		return nil
	})
}

// ReadSecret секрет из хранилища, при отсутствии - переменная окружения с именем в верхнем регистре
func (r *RepoImpl) ReadSecret(ctx context.Context, name string) (string, error) {
	var value *string
	err := r.db.QueryRow(ctx, readSecretSQL, name).Scan(&value)
	if err == nil && value != nil && *value != "" {
		return *value, nil
	}
	if err != nil {
		r.logger.Warnf("[secret: %s] read from store failed, trying env: %v", name, err)
	}

	if env := os.Getenv(strings.ToUpper(name)); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("%w: %s", appers.ErrSecretNotFound, name)
}
