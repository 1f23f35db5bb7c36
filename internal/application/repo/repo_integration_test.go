//go:build integration

package repo

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"integrations/internal/appers"
	"integrations/internal/application/entity"
	"integrations/pkg/config"
	"integrations/pkg/db"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	testStale       = 5 * time.Minute
	testMaxAttempts = 7
)

func setupRepo(t *testing.T) (*RepoImpl, *TransactionsImpl, *db.Postgres) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("integrations"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pg, err := db.NewPostgres(ctx, config.Postgres{
		ConnString:     dsn,
		MaxConnections: 10,
		MigrationsDir:  "../../../resources/migrations",
	})
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	logger := zap.NewNop().Sugar()
	r := NewRepo(pg, logger)
	return r, NewTransactions(r, logger), pg
}

func enqueue(t *testing.T, r *RepoImpl, tenant, key string) uuid.UUID {
	t.Helper()
	id, inserted, err := r.InsertEvent(context.Background(), entity.EnqueueRequest{
		TenantID:       tenant,
		EventType:      entity.EventN8nWebhook,
		IdempotencyKey: key,
	}, []byte(`{"workflow":"wf-test"}`))
	require.NoError(t, err)
	require.True(t, inserted)
	return id
}

func TestIntegration_IdempotentInsert(t *testing.T) {
	r, _, _ := setupRepo(t)
	ctx := context.Background()

	first := enqueue(t, r, "t1", "k1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, inserted, err := r.InsertEvent(ctx, entity.EnqueueRequest{
				TenantID: "t1", EventType: entity.EventN8nWebhook, IdempotencyKey: "k1",
			}, []byte(`{}`))
			assert.NoError(t, err)
			assert.False(t, inserted)
		}()
	}
	wg.Wait()

	id, err := r.GetEventIDByIdempotencyKey(ctx, "t1", "k1")
	require.NoError(t, err)
	assert.Equal(t, first, id)

	// ключ уникален в пределах тенанта
	enqueue(t, r, "t2", "k1")

	_, total, err := r.ListEvents(ctx, entity.EventFilter{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestIntegration_ClaimNoDoubleClaim(t *testing.T) {
	r, tx, _ := setupRepo(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		enqueue(t, r, "t1", "")
	}

	var (
		mu      sync.Mutex
		claimed = map[uuid.UUID]int{}
		wg      sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := tx.ClaimEvents(ctx, 7, testStale, testMaxAttempts)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, e := range events {
				claimed[e.ID]++
				assert.Equal(t, entity.StatusProcessing, e.Status)
				assert.Equal(t, 1, e.Attempts)
				assert.NotNil(t, e.LockedAt)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, 20)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "event %s claimed more than once", id)
	}

	again, err := tx.ClaimEvents(ctx, 50, testStale, testMaxAttempts)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestIntegration_ClaimOrderAndRetryWindow(t *testing.T) {
	r, tx, pg := setupRepo(t)
	ctx := context.Background()

	older := enqueue(t, r, "t1", "")
	newer := enqueue(t, r, "t1", "")
	_, err := pg.Exec(ctx, `UPDATE integration_events SET created_at = now() - interval '1 hour' WHERE id = $1`, older)
	require.NoError(t, err)

	events, err := tx.ClaimEvents(ctx, 1, testStale, testMaxAttempts)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, older, events[0].ID)

	// ретрай в будущем не берётся
	require.NoError(t, r.MarkRetry(ctx, older, 1, "boom", time.Now().Add(time.Hour)))
	events, err = tx.ClaimEvents(ctx, 10, testStale, testMaxAttempts)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, newer, events[0].ID)

	_, err = pg.Exec(ctx, `UPDATE integration_events SET next_retry_at = now() - interval '1 second' WHERE id = $1`, older)
	require.NoError(t, err)
	events, err = tx.ClaimEvents(ctx, 10, testStale, testMaxAttempts)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, older, events[0].ID)
	assert.Equal(t, 2, events[0].Attempts)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Equal(t, "boom", *events[0].ErrorMessage)
}

func TestIntegration_StaleReclaimAndGuardedMarks(t *testing.T) {
	r, tx, pg := setupRepo(t)
	ctx := context.Background()

	id := enqueue(t, r, "t1", "")
	events, err := tx.ClaimEvents(ctx, 1, testStale, testMaxAttempts)
	require.NoError(t, err)
	require.Len(t, events, 1)

	// свежий лок не перехватывается
	events, err = tx.ClaimEvents(ctx, 1, testStale, testMaxAttempts)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = pg.Exec(ctx, `UPDATE integration_events SET locked_at = now() - interval '10 minutes' WHERE id = $1`, id)
	require.NoError(t, err)

	events, err = tx.ClaimEvents(ctx, 1, testStale, testMaxAttempts)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Attempts)

	// первый воркер опоздал
	assert.ErrorIs(t, r.MarkCompleted(ctx, id, 1, []byte(`{}`)), appers.ErrLockLost)
	require.NoError(t, r.MarkCompleted(ctx, id, 2, []byte(`{"ok":true}`)))

	ev, err := r.GetEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, ev.Status)
	assert.Nil(t, ev.LockedAt)
	assert.Nil(t, ev.ErrorMessage)
	assert.NotNil(t, ev.ProcessedAt)
	assert.Equal(t, true, ev.Result["ok"])

	assert.ErrorIs(t, r.MarkFailed(ctx, id, 2, "late"), appers.ErrLockLost)
}

func TestIntegration_FailExhaustedStaleRow(t *testing.T) {
	r, tx, pg := setupRepo(t)
	ctx := context.Background()

	id := enqueue(t, r, "t1", "")
	_, err := pg.Exec(ctx, `UPDATE integration_events
		SET status = 'processing', attempts = $2, locked_at = now() - interval '10 minutes'
		WHERE id = $1`, id, testMaxAttempts)
	require.NoError(t, err)

	events, err := tx.ClaimEvents(ctx, 10, testStale, testMaxAttempts)
	require.NoError(t, err)
	assert.Empty(t, events)

	ev, err := r.GetEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, ev.Status)
	assert.Equal(t, testMaxAttempts, ev.Attempts)
	require.NotNil(t, ev.ErrorMessage)
	assert.Contains(t, *ev.ErrorMessage, staleFailMessage)
}

func TestIntegration_FailExhaustedConcurrentClaimers(t *testing.T) {
	r, tx, pg := setupRepo(t)
	ctx := context.Background()

	ids := make([]uuid.UUID, 0, 10)
	for i := 0; i < 10; i++ {
		ids = append(ids, enqueue(t, r, "t1", ""))
	}
	_, err := pg.Exec(ctx, `UPDATE integration_events
		SET status = 'processing', attempts = $1, locked_at = now() - interval '10 minutes'`, testMaxAttempts)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := tx.ClaimEvents(ctx, 10, testStale, testMaxAttempts)
			assert.NoError(t, err)
			assert.Empty(t, events)
		}()
	}
	wg.Wait()

	for _, id := range ids {
		ev, err := r.GetEvent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusFailed, ev.Status)
		require.NotNil(t, ev.ErrorMessage)
		assert.Equal(t, 1, strings.Count(*ev.ErrorMessage, staleFailMessage))
	}
}

func TestIntegration_PurgeReleasesIdempotencyKey(t *testing.T) {
	r, tx, pg := setupRepo(t)
	ctx := context.Background()

	id := enqueue(t, r, "t1", "k-retained")
	_, err := tx.ClaimEvents(ctx, 1, testStale, testMaxAttempts)
	require.NoError(t, err)
	require.NoError(t, r.MarkCompleted(ctx, id, 1, []byte(`{}`)))

	// внутри окна хранения ключ дедуплицируется
	_, inserted, err := r.InsertEvent(ctx, entity.EnqueueRequest{
		TenantID: "t1", EventType: entity.EventN8nWebhook, IdempotencyKey: "k-retained",
	}, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = pg.Exec(ctx, `UPDATE integration_events SET processed_at = now() - interval '100 days' WHERE id = $1`, id)
	require.NoError(t, err)
	purged, err := r.PurgeCompleted(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	// после очистки тот же ключ - новое событие
	again := enqueue(t, r, "t1", "k-retained")
	assert.NotEqual(t, id, again)
}

func TestIntegration_ListAndPurge(t *testing.T) {
	r, tx, pg := setupRepo(t)
	ctx := context.Background()

	done := enqueue(t, r, "t1", "")
	failed := enqueue(t, r, "t1", "")
	enqueue(t, r, "t2", "")

	_, err := pg.Exec(ctx, `UPDATE integration_events SET created_at = now() - interval '1 minute' WHERE tenant_id = 't1'`)
	require.NoError(t, err)

	events, err := tx.ClaimEvents(ctx, 2, testStale, testMaxAttempts)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.NoError(t, r.MarkCompleted(ctx, done, 1, []byte(`{}`)))
	require.NoError(t, r.MarkFailed(ctx, failed, 1, "nope"))

	list, total, err := r.ListEvents(ctx, entity.EventFilter{TenantID: "t1", Page: 1, PerPage: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 1)

	list, total, err = r.ListEvents(ctx, entity.EventFilter{Status: entity.StatusFailed, Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, failed, list[0].ID)

	_, err = pg.Exec(ctx, `UPDATE integration_events SET processed_at = now() - interval '40 days'`)
	require.NoError(t, err)

	purged, err := r.PurgeCompleted(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = r.GetEvent(ctx, done)
	assert.ErrorIs(t, err, appers.ErrEventNotFound)
	_, err = r.GetEvent(ctx, failed)
	assert.NoError(t, err)
}

func TestIntegration_TenantSettingsAndSecrets(t *testing.T) {
	r, _, pg := setupRepo(t)
	ctx := context.Background()

	_, err := pg.Exec(ctx, `INSERT INTO tenants (id, settings) VALUES ('t1', '{"integrations":{"n8n":{"enabled":true}}}')`)
	require.NoError(t, err)
	_, err = pg.Exec(ctx, `INSERT INTO tenant_secrets (name, value) VALUES ('t1_whatsapp_api_key', 'sekret')`)
	require.NoError(t, err)

	settings, err := r.GetTenantSettings(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, settings.Integrations.N8n.Enabled)

	missing, err := r.GetTenantSettings(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", missing.TenantID)
	assert.False(t, missing.Integrations.N8n.Enabled)

	v, err := r.ReadSecret(ctx, "t1_whatsapp_api_key")
	require.NoError(t, err)
	assert.Equal(t, "sekret", v)

	t.Setenv("T1_FALLBACK_SECRET", "from-env")
	v, err = r.ReadSecret(ctx, "t1_fallback_secret")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	_, err = r.ReadSecret(ctx, "t1_nothing")
	assert.ErrorIs(t, err, appers.ErrSecretNotFound)
}
