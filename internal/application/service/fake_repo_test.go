package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"integrations/internal/appers"
	"integrations/internal/application/entity"

	"github.com/gofrs/uuid"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

// memRepo in-memory очередь с той же семантикой claim и guarded-записи, что и postgres
type memRepo struct {
	mu            sync.Mutex
	clock         *testClock
	events        map[uuid.UUID]*entity.IntegrationEvent
	order         []uuid.UUID
	keys          map[string]uuid.UUID
	settings      map[string]entity.TenantSettings
	admins        map[string][]uuid.UUID
	notifications []entity.Notification
	claimErr      error
	notifyErr     error
	settingsErr   error
	claims        int
}

func newMemRepo(clock *testClock) *memRepo {
	return &memRepo{
		clock:    clock,
		events:   map[uuid.UUID]*entity.IntegrationEvent{},
		keys:     map[string]uuid.UUID{},
		settings: map[string]entity.TenantSettings{},
		admins:   map[string][]uuid.UUID{},
	}
}

func (r *memRepo) HealthCheck(context.Context) error { return nil }

func (r *memRepo) InsertEvent(_ context.Context, req entity.EnqueueRequest, payload []byte) (uuid.UUID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.IdempotencyKey != "" {
		if _, ok := r.keys[req.TenantID+"/"+req.IdempotencyKey]; ok {
			return uuid.Nil, false, nil
		}
	}
	var p entity.Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return uuid.Nil, false, err
	}
	id := uuid.Must(uuid.NewV4())
	e := &entity.IntegrationEvent{
		ID:        id,
		TenantID:  req.TenantID,
		EventType: req.EventType,
		Payload:   p,
		Status:    entity.StatusPending,
		CreatedAt: r.clock.Now().Add(time.Duration(len(r.order)) * time.Microsecond),
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		e.IdempotencyKey = &key
		r.keys[req.TenantID+"/"+key] = id
	}
	r.events[id] = e
	r.order = append(r.order, id)
	return id, true, nil
}

func (r *memRepo) GetEventIDByIdempotencyKey(_ context.Context, tenantID, key string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.keys[tenantID+"/"+key]
	if !ok {
		return uuid.Nil, appers.ErrEventNotFound
	}
	return id, nil
}

func (r *memRepo) ClaimEvents(ctx context.Context, limit int, staleAfter time.Duration, maxAttempts int) ([]entity.IntegrationEvent, error) {
	if _, err := r.FailExhausted(ctx, staleAfter, maxAttempts); err != nil {
		return nil, err
	}
	return r.ClaimBatch(ctx, limit, staleAfter, maxAttempts)
}

func (r *memRepo) ClaimBatch(_ context.Context, limit int, staleAfter time.Duration, maxAttempts int) ([]entity.IntegrationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	r.claims++

	now := r.clock.Now()
	out := make([]entity.IntegrationEvent, 0, limit)
	for _, id := range r.order {
		if len(out) == limit {
			break
		}
		e := r.events[id]
		eligible := false
		switch e.Status {
		case entity.StatusPending:
			eligible = e.NextRetryAt == nil || !e.NextRetryAt.After(now)
		case entity.StatusProcessing:
			eligible = e.LockedAt != nil && e.LockedAt.Before(now.Add(-staleAfter)) && e.Attempts < maxAttempts
		}
		if !eligible {
			continue
		}
		locked := now
		e.Status = entity.StatusProcessing
		e.LockedAt = &locked
		if e.StartedAt == nil {
			e.StartedAt = &locked
		}
		e.Attempts++
		out = append(out, *e)
	}
	return out, nil
}

func (r *memRepo) FailExhausted(_ context.Context, staleAfter time.Duration, maxAttempts int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	var n int64
	for _, e := range r.events {
		if e.Status == entity.StatusProcessing && e.LockedAt != nil && e.LockedAt.Before(now.Add(-staleAfter)) && e.Attempts >= maxAttempts {
			e.Status = entity.StatusFailed
			e.LockedAt = nil
			e.ProcessedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *memRepo) guarded(id uuid.UUID, attempts int, apply func(e *entity.IntegrationEvent, now time.Time)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok || e.Status != entity.StatusProcessing || e.Attempts != attempts {
		return appers.ErrLockLost
	}
	apply(e, r.clock.Now())
	e.LockedAt = nil
	return nil
}

func (r *memRepo) MarkCompleted(_ context.Context, id uuid.UUID, attempts int, result []byte) error {
	var res entity.Result
	if err := json.Unmarshal(result, &res); err != nil {
		return err
	}
	return r.guarded(id, attempts, func(e *entity.IntegrationEvent, now time.Time) {
		e.Status = entity.StatusCompleted
		e.ProcessedAt = &now
		e.Result = res
		e.ErrorMessage = nil
	})
}

func (r *memRepo) MarkRetry(_ context.Context, id uuid.UUID, attempts int, errMsg string, next time.Time) error {
	return r.guarded(id, attempts, func(e *entity.IntegrationEvent, _ time.Time) {
		e.Status = entity.StatusPending
		e.NextRetryAt = &next
		e.ErrorMessage = &errMsg
	})
}

func (r *memRepo) MarkFailed(_ context.Context, id uuid.UUID, attempts int, errMsg string) error {
	return r.guarded(id, attempts, func(e *entity.IntegrationEvent, now time.Time) {
		e.Status = entity.StatusFailed
		e.ProcessedAt = &now
		e.NextRetryAt = nil
		e.ErrorMessage = &errMsg
	})
}

func (r *memRepo) GetEvent(_ context.Context, id uuid.UUID) (*entity.IntegrationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, appers.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memRepo) ListEvents(_ context.Context, f entity.EventFilter) ([]entity.IntegrationEvent, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []entity.IntegrationEvent
	for _, e := range r.events {
		if (f.TenantID == "" || e.TenantID == f.TenantID) &&
			(f.EventType == "" || e.EventType == f.EventType) &&
			(f.Status == "" || e.Status == f.Status) {
			all = append(all, *e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	from := (f.Page - 1) * f.PerPage
	if from > len(all) {
		from = len(all)
	}
	to := from + f.PerPage
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], len(all), nil
}

func (r *memRepo) PurgeCompleted(_ context.Context, days int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if days <= 0 {
		return 0, nil
	}
	cutoff := r.clock.Now().AddDate(0, 0, -days)
	var n int64
	for id, e := range r.events {
		if e.Status == entity.StatusCompleted && e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
			delete(r.events, id)
			n++
		}
	}
	return n, nil
}

func (r *memRepo) GetTenantSettings(_ context.Context, tenantID string) (entity.TenantSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settingsErr != nil {
		return entity.TenantSettings{}, r.settingsErr
	}
	s, ok := r.settings[tenantID]
	if !ok {
		return entity.TenantSettings{TenantID: tenantID}, nil
	}
	return s, nil
}

func (r *memRepo) ListTenantAdmins(_ context.Context, tenantID string) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.admins[tenantID], nil
}

func (r *memRepo) InsertNotifications(_ context.Context, items []entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notifyErr != nil {
		return r.notifyErr
	}
	r.notifications = append(r.notifications, items...)
	return nil
}

func (r *memRepo) ReadSecret(_ context.Context, name string) (string, error) {
	return "", appers.ErrSecretNotFound
}

func (r *memRepo) event(id uuid.UUID) entity.IntegrationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.events[id]
}

type recordingProducer struct {
	mu  sync.Mutex
	out []entity.OutcomeMessage
	err error
}

func (p *recordingProducer) PublishOutcome(_ context.Context, m entity.OutcomeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = append(p.out, m)
	return p.err
}

func (p *recordingProducer) HealthCheck(context.Context) error { return p.err }
