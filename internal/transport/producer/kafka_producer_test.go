package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"integrations/internal/application/entity"
	"integrations/pkg/metrics"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishOutcome_KeyedByEventID(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()

	id := uuid.Must(uuid.NewV4())
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got entity.OutcomeMessage
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.EventID != id || got.Status != entity.StatusFailed {
			return errors.New("unexpected outcome payload")
		}
		return nil
	})

	p := NewProducer(sp, nil, "outcomes", zap.NewNop().Sugar(), 1, metrics.New(prometheus.NewRegistry()))
	err := p.PublishOutcome(context.Background(), entity.OutcomeMessage{
		EventID: id, TenantID: "t1", EventType: entity.EventN8nWebhook, Status: entity.StatusFailed, At: time.Now(),
	})
	require.NoError(t, err)
}

func TestPublishOutcome_RetriesThenFails(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()

	sp.ExpectSendMessageAndFail(sarama.ErrLeaderNotAvailable)
	sp.ExpectSendMessageAndFail(sarama.ErrLeaderNotAvailable)

	p := NewProducer(sp, nil, "outcomes", zap.NewNop().Sugar(), 2, nil)
	err := p.PublishOutcome(context.Background(), entity.OutcomeMessage{EventID: uuid.Must(uuid.NewV4())})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrLeaderNotAvailable))
}

func TestPublishOutcome_PermanentErrorStops(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer sp.Close()

	sp.ExpectSendMessageAndFail(sarama.ErrTopicAuthorizationFailed)

	p := NewProducer(sp, nil, "outcomes", zap.NewNop().Sugar(), 3, nil)
	err := p.PublishOutcome(context.Background(), entity.OutcomeMessage{EventID: uuid.Must(uuid.NewV4())})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permanent")
}

func TestClassifyRetry(t *testing.T) {
	assert.Equal(t, "leader_not_available", ClassifyRetry(sarama.ErrLeaderNotAvailable))
	assert.Equal(t, "client_deadline", ClassifyRetry(context.DeadlineExceeded))
	assert.Equal(t, "client_deadline", ClassifyRetry(fmt.Errorf("send: %w", context.DeadlineExceeded)))
	assert.Equal(t, "client_deadline", ClassifyRetry(fmt.Errorf("send: %w", context.Canceled)))
	assert.Equal(t, "net_timeout", ClassifyRetry(&net.OpError{Op: "dial", Err: timeoutErr{}}))
	assert.Equal(t, "other", ClassifyRetry(errors.New("boom")))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestHealthCheck_NoBroker(t *testing.T) {
	p := NewProducer(nil, nil, "outcomes", zap.NewNop().Sugar(), 1, nil)
	assert.Error(t, p.HealthCheck(context.Background()))
}
