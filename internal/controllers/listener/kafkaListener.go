package listener

import (
	"errors"
	"time"

	"integrations/internal/appers"
	use_cases "integrations/internal/application/use-cases"
	"integrations/pkg/metrics"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaBrokerConsumer бизнес-события из топика в очередь интеграций
type KafkaBrokerConsumer struct {
	usecase use_cases.UseCaser
	logger  *zap.SugaredLogger
	m       *metrics.Metrics
}

func NewKafkaBrokerConsumer(usecase use_cases.UseCaser, logger *zap.SugaredLogger, m *metrics.Metrics) *KafkaBrokerConsumer {
	return &KafkaBrokerConsumer{
		logger:  logger,
		usecase: usecase,
		m:       m,
	}
}

func (k *KafkaBrokerConsumer) Setup(session sarama.ConsumerGroupSession) error {
	k.logger.Info("Kafka setup success")
	if k.m != nil {
		k.m.Kafka.ConsumerRebalancesTotal.WithLabelValues("setup").Inc()
	}
	return nil
}

func (k *KafkaBrokerConsumer) Cleanup(session sarama.ConsumerGroupSession) error {
	k.logger.Info("Kafka cleanup success")
	if k.m != nil {
		k.m.Kafka.ConsumerRebalancesTotal.WithLabelValues("cleanup").Inc()
	}
	return nil
}

// ConsumeClaim невалидное сообщение пропускаем, ошибка хранилища завершает сессию без коммита,
// сообщение придёт повторно после перезапуска Consume
func (k *KafkaBrokerConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	topic := claim.Topic()

	for msg := range claim.Messages() {
		if k.m != nil {
			k.m.Kafka.ConsumerInFlight.WithLabelValues(topic).Inc()
		}
		start := time.Now()
		k.logger.Debugf("Message topic:%q partition:%d offset:%d", msg.Topic, msg.Partition, msg.Offset)

		err := k.usecase.ConsumerMessage(session.Context(), msg.Value, msg.Timestamp)
		result := "ok"
		switch {
		case err == nil:
		case errors.Is(err, appers.ErrInvalidEnqueue):
			result = "invalid"
			k.logger.Warnf("skip invalid message topic:%q partition:%d offset:%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
		default:
			result = "error"
		}
		if k.m != nil {
			k.m.Kafka.ConsumerMessagesTotal.WithLabelValues(topic, result).Inc()
			k.m.Kafka.ConsumerProcessDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())
			k.m.Kafka.ConsumerInFlight.WithLabelValues(topic).Dec()
		}

		if result == "error" {
			k.logger.Errorf("enqueue from kafka failed, offset %d: %v", msg.Offset, err)
			return err
		}
		session.MarkMessage(msg, "")
	}

	return nil
}
