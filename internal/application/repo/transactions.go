package repo

import (
	"context"
	"time"

	"integrations/internal/application/entity"

	"go.uber.org/zap"
)

type Transactions interface {
	// ClaimEvents закрывает исчерпавшие попытки протухшие строки и забирает батч, одной транзакцией
	ClaimEvents(ctx context.Context, limit int, staleAfter time.Duration, maxAttempts int) ([]entity.IntegrationEvent, error)
}

type TransactionsImpl struct {
	repo   *RepoImpl
	logger *zap.SugaredLogger
}

func NewTransactions(repo *RepoImpl, logger *zap.SugaredLogger) *TransactionsImpl {
	return &TransactionsImpl{repo: repo, logger: logger}
}

func (t *TransactionsImpl) ClaimEvents(ctx context.Context, limit int, staleAfter time.Duration, maxAttempts int) ([]entity.IntegrationEvent, error) {
	var events []entity.IntegrationEvent
	err := t.repo.db.WithinTransaction(ctx, func(txCtx context.Context) error {
		failed, err := t.repo.FailExhausted(txCtx, staleAfter, maxAttempts)
		if err != nil {
			return err
		}
		if failed > 0 {
			t.logger.Warnw("stale events failed after final attempt", "count", failed)
		}

		events, err = t.repo.ClaimBatch(txCtx, limit, staleAfter, maxAttempts)
		return err
	})
	if err != nil {
		t.logger.Errorw("claim events failed", "err", err)
		return nil, err
	}
	return events, nil
}
