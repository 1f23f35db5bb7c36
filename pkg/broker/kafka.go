package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"integrations/pkg/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const (
	_defaultConsumerGroup = "integrations"
	_probeTimeout         = 2 * time.Second
)

// KafkaBroker producer исходов обязателен, consumer group только при заданном readerTopic
type KafkaBroker struct {
	ConsumerTopic string
	ProducerTopic string
	ConsumerGroup sarama.ConsumerGroup
	SyncProducer  sarama.SyncProducer
	Brokers       []string
	conf          config.Kafka
	logger        *zap.SugaredLogger
}

func NewKafkaBroker(conf config.Kafka, logger *zap.SugaredLogger) (*KafkaBroker, error) {
	brokers := splitBrokers(conf.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("broker.kafka.brokers is empty")
	}

	kb := &KafkaBroker{
		ConsumerTopic: conf.ReaderTopic,
		ProducerTopic: conf.WriterTopic,
		Brokers:       brokers,
		conf:          conf,
		logger:        logger,
	}

	if conf.WriterTopic != "" {
		producer, err := sarama.NewSyncProducer(brokers, producerConfig(conf))
		if err != nil {
			return nil, fmt.Errorf("kafka sync producer: %w", err)
		}
		kb.SyncProducer = producer
		logger.Infow("kafka producer created", "topic", conf.WriterTopic)
	}

	if conf.ReaderTopic != "" {
		group := conf.ReaderGroup
		if group == "" {
			group = _defaultConsumerGroup
		}
		consumer, err := sarama.NewConsumerGroup(brokers, group, consumerConfig(conf))
		if err != nil {
			_ = kb.Close()
			return nil, fmt.Errorf("kafka consumer group: %w", err)
		}
		kb.ConsumerGroup = consumer
		logger.Infow("kafka consumer group created", "topic", conf.ReaderTopic, "group", group)
	}

	return kb, nil
}

// HealthCheck только подключение к брокерам: Describe по топикам может быть запрещён ACL
func (kb *KafkaBroker) HealthCheck(ctx context.Context) error {
	if kb.ProducerTopic != "" && kb.SyncProducer == nil {
		return errors.New("kafka producer is not initialized")
	}
	if kb.ConsumerTopic != "" && kb.ConsumerGroup == nil {
		return errors.New("kafka consumer group is not initialized")
	}

	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = _probeTimeout
	cfg.Net.ReadTimeout = _probeTimeout
	cfg.Net.WriteTimeout = _probeTimeout
	cfg.Metadata.Timeout = _probeTimeout
	cfg.Metadata.Retry.Max = 1
	applySASL(cfg, probeCredentials(kb.conf))

	done := make(chan error, 1)
	go func() {
		client, err := sarama.NewClient(kb.Brokers, cfg)
		if err != nil {
			done <- fmt.Errorf("failed to connect to kafka brokers: %w", err)
			return
		}
		defer client.Close()
		if len(client.Brokers()) == 0 {
			done <- errors.New("no kafka brokers available")
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type credentials struct {
	user, password string
}

func readerCredentials(conf config.Kafka) credentials {
	return credentials{conf.ReaderUsr, conf.ReaderUsrPwd}
}

func writerCredentials(conf config.Kafka) credentials {
	return credentials{conf.WriterUsr, conf.WriterUsrPwd}
}

// probeCredentials writer, если задан, иначе reader
func probeCredentials(conf config.Kafka) credentials {
	if w := writerCredentials(conf); w.user != "" && w.password != "" {
		return w
	}
	return readerCredentials(conf)
}

func applySASL(cfg *sarama.Config, c credentials) {
	if c.user == "" || c.password == "" {
		return
	}
	cfg.Net.SASL.Enable = true
	cfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	cfg.Net.SASL.User = c.user
	cfg.Net.SASL.Password = c.password
}

func EnableSaramaZapLogs(base *zap.SugaredLogger) {
	sarama.Logger = &zapSarama{base.Named("sarama")}
}

// Close закрывает producer и consumer group, ошибки собираем обе
func (kb *KafkaBroker) Close() error {
	var errs []error
	if kb.ConsumerGroup != nil {
		if err := kb.ConsumerGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer group: %w", err))
		}
	}
	if kb.SyncProducer != nil {
		if err := kb.SyncProducer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer: %w", err))
		}
	}
	return errors.Join(errs...)
}

type zapSarama struct{ l *zap.SugaredLogger }

func (z *zapSarama) Print(v ...interface{})                 { z.l.Debug(v...) }
func (z *zapSarama) Printf(format string, v ...interface{}) { z.l.Debugf(format, v...) }
func (z *zapSarama) Println(v ...interface{})               { z.l.Debug(v...) }

func consumerConfig(conf config.Kafka) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	applySASL(cfg, readerCredentials(conf))
	return cfg
}

func producerConfig(conf config.Kafka) *sarama.Config {
	cfg := sarama.NewConfig()

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 15 * time.Second
	cfg.Net.WriteTimeout = 15 * time.Second
	cfg.Net.KeepAlive = 30 * time.Second

	cfg.Metadata.Timeout = 10 * time.Second
	cfg.Metadata.Retry.Max = 1
	cfg.Metadata.Retry.Backoff = time.Second
	cfg.Metadata.RefreshFrequency = time.Minute

	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	// ретраи делает KafkaProducer с метриками по попыткам
	cfg.Producer.Retry.Max = 0
	cfg.Producer.Timeout = 10 * time.Second
	// ключ = id события, все исходы одного события в одну партицию
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	applySASL(cfg, writerCredentials(conf))
	return cfg
}

func splitBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
