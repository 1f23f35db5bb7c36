package listener

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"integrations/internal/appers"
	"integrations/internal/application/entity"
	"integrations/pkg/metrics"

	"github.com/IBM/sarama"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubUseCase struct {
	results map[string]error
	seen    []string
}

func (s *stubUseCase) ConsumerMessage(_ context.Context, msg []byte, _ time.Time) error {
	s.seen = append(s.seen, string(msg))
	return s.results[string(msg)]
}

func (s *stubUseCase) Enqueue(context.Context, entity.EnqueueRequest) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (s *stubUseCase) GetEvent(context.Context, string) (*entity.IntegrationEvent, error) {
	return nil, nil
}
func (s *stubUseCase) ListEvents(context.Context, entity.EventFilter) (entity.EventPage, error) {
	return entity.EventPage{}, nil
}
func (s *stubUseCase) ProcessCycle(context.Context, int) entity.BatchResult {
	return entity.BatchResult{}
}
func (s *stubUseCase) PurgeCompletedEvents(context.Context)            {}
func (s *stubUseCase) RunRelay(context.Context)                        {}
func (s *stubUseCase) HealthCheck(context.Context) (bool, bool, error) { return true, true, nil }

type fakeSession struct {
	sarama.ConsumerGroupSession
	marked []int64
}

func (s *fakeSession) Context() context.Context { return context.Background() }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "business-events" }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func claimOf(values ...string) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(values))
	for i, v := range values {
		ch <- &sarama.ConsumerMessage{Topic: "business-events", Offset: int64(i), Value: []byte(v)}
	}
	close(ch)
	return &fakeClaim{ch: ch}
}

func TestConsumeClaim_SkipsInvalidAndMarks(t *testing.T) {
	uc := &stubUseCase{results: map[string]error{
		"bad": fmt.Errorf("%w: decode message", appers.ErrInvalidEnqueue),
	}}
	consumer := NewKafkaBrokerConsumer(uc, zap.NewNop().Sugar(), metrics.New(prometheus.NewRegistry()))
	session := &fakeSession{}

	err := consumer.ConsumeClaim(session, claimOf("a", "bad", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "bad", "b"}, uc.seen)
	assert.Equal(t, []int64{0, 1, 2}, session.marked)
}

func TestConsumeClaim_StorageErrorStopsWithoutMark(t *testing.T) {
	uc := &stubUseCase{results: map[string]error{"b": errors.New("db down")}}
	consumer := NewKafkaBrokerConsumer(uc, zap.NewNop().Sugar(), nil)
	session := &fakeSession{}

	err := consumer.ConsumeClaim(session, claimOf("a", "b", "c"))
	assert.EqualError(t, err, "db down")
	assert.Equal(t, []int64{0}, session.marked)
	assert.Equal(t, []string{"a", "b"}, uc.seen)
}
