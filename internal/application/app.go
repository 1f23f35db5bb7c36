package application

import (
	"context"
	"fmt"
	"time"

	"integrations/internal/application/common"
	"integrations/internal/application/repo"
	"integrations/internal/application/retry"
	"integrations/internal/application/service"
	"integrations/internal/application/use-cases"
	"integrations/internal/controllers/cron"
	"integrations/internal/controllers/handler"
	"integrations/internal/controllers/listener"
	"integrations/internal/handlers"
	"integrations/internal/transport/docuseal"
	"integrations/internal/transport/evolution"
	"integrations/internal/transport/gdrive"
	"integrations/internal/transport/producer"
	"integrations/internal/transport/webhook"
	"integrations/pkg/broker"
	"integrations/pkg/config"
	"integrations/pkg/db"
	"integrations/pkg/httpclient"
	"integrations/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const consumerRetryPause = 5 * time.Second

type App struct {
	ctx            context.Context
	conf           *config.Config
	logger         *zap.SugaredLogger
	postgres       *db.Postgres
	httpServer     *fiber.App
	kafka          *broker.KafkaBroker
	httpClient     *httpclient.Client
	cronController *cron.Controller
}

// BuildUseCase собирает репозиторий, обработчики и сервис; kafkaBroker может быть nil
func BuildUseCase(
	conf *config.Config,
	logger *zap.SugaredLogger,
	postgres *db.Postgres,
	kafkaBroker *broker.KafkaBroker,
	base *httpclient.Client,
	m *metrics.Metrics) (*use_cases.UseCase, error) {
	store := repo.NewRepo(postgres, logger)
	tx := repo.NewTransactions(store, logger)

	registry, err := buildRegistry(conf, logger, store, base, m)
	if err != nil {
		return nil, err
	}

	var kafkaProducer producer.Producer = producer.NoopProducer{}
	if kafkaBroker != nil && kafkaBroker.SyncProducer != nil {
		kafkaProducer = producer.NewProducer(kafkaBroker.SyncProducer, kafkaBroker, kafkaBroker.ProducerTopic, logger, conf.Broker.Kafka.MaxAttempts, m)
	}

	scheduler := retry.NewScheduler(conf.Relay.MaxAttempts)
	srv := service.NewService(store, tx, registry, kafkaProducer, scheduler, logger, &conf.Relay, m)
	return use_cases.NewUseCase(srv, logger, conf), nil
}

// buildRegistry у каждого провайдера свой breaker поверх общего пула соединений
func buildRegistry(conf *config.Config, logger *zap.SugaredLogger, store *repo.RepoImpl, base httpclient.HTTPClient, m *metrics.Metrics) (*handlers.Registry, error) {
	provider := func(name string) httpclient.HTTPClient {
		retrying := httpclient.NewRetryClient(base, conf.HTTPClient.MaxRetries, conf.HTTPClient.RetryBase, logger)
		return httpclient.NewBreakerClient(name, retrying, conf.Breaker, m, logger)
	}

	n8n := webhook.NewClient(provider("n8n"), logger)
	connector := gdrive.NewConnector(nil, conf.Integrations.DriveAPIURL)

	return handlers.NewRegistry(
		handlers.NewDriveStructureHandler(connector, store, store, logger),
		handlers.NewDriveCopyHandler(connector, store, store, logger),
		handlers.NewWhatsappHandler(evolution.NewClient(provider("evolution"), logger), store, store, logger),
		handlers.NewN8nHandler(n8n, logger),
		handlers.NewNfEmailHandler(n8n, logger),
		handlers.NewDocusealHandler(docuseal.NewClient(provider("docuseal"), logger), store, store, logger),
	)
}

func NewApp(
	ctx context.Context,
	conf *config.Config,
	logger *zap.SugaredLogger,
	postgres *db.Postgres,
	httpServer *fiber.App,
	kafkaBroker *broker.KafkaBroker,
	m *metrics.Metrics) (*App, error) {
	//Логируем версию приложения
	logger.Infof("Запуск Integrations Service версии: %s", common.Version)

	base := httpclient.NewClient(conf.HTTPClient)
	uc, err := BuildUseCase(conf, logger, postgres, kafkaBroker, base, m)
	if err != nil {
		return nil, fmt.Errorf("build use case: %w", err)
	}

	h := handler.NewEventHandler(uc, logger, conf.Integrations.CronSecret)
	r := handler.NewRouter(h, httpServer, conf, logger)

	// Инициализация cron контроллера
	cronController := cron.NewController(ctx, logger)
	if err := cronController.RegisterPurgeEventsJob(uc, conf.Cron); err != nil {
		return nil, fmt.Errorf("не удалось зарегистрировать cron задачу очистки: %w", err)
	}
	if err := cronController.RegisterProcessEventsJob(uc, conf.Cron, conf.Relay.BatchSize); err != nil {
		return nil, fmt.Errorf("не удалось зарегистрировать cron задачу обработки: %w", err)
	}
	cronController.Start()

	if conf.Relay.Enabled {
		go uc.RunRelay(ctx)
	} else {
		logger.Info("relay выключен, обработка только через cron или /v1/process")
	}

	r.RegisterRouter()

	app := &App{
		ctx:            ctx,
		conf:           conf,
		logger:         logger,
		postgres:       postgres,
		httpServer:     httpServer,
		kafka:          kafkaBroker,
		httpClient:     base,
		cronController: cronController,
	}

	if kafkaBroker != nil && kafkaBroker.ConsumerTopic != "" {
		go app.runConsumer(ctx, uc, kafkaBroker, m)
	}

	return app, nil
}

func (a *App) Run() error {
	return a.httpServer.Listen(fmt.Sprintf(":%s", a.conf.Server.Port))
}

func (a *App) Shutdown() error {
	// Останавливаем cron задачи
	if a.cronController != nil {
		a.cronController.Stop()
	}
	err := a.httpServer.Shutdown()
	if a.httpClient != nil {
		a.httpClient.CloseIdle()
	}
	if a.kafka != nil {
		if kErr := a.kafka.Close(); kErr != nil {
			a.logger.Warnf("kafka close: %v", kErr)
		}
	}
	return err
}

func (a *App) runConsumer(ctx context.Context, usecase use_cases.UseCaser, kafkaBroker *broker.KafkaBroker, m *metrics.Metrics) {
	a.logger.Infof("Запуск consumer для топика: %s", kafkaBroker.ConsumerTopic)

	kafkaBrokerConsumer := listener.NewKafkaBrokerConsumer(usecase, a.logger, m)

	for {
		err := kafkaBroker.ConsumerGroup.Consume(ctx, []string{kafkaBroker.ConsumerTopic}, kafkaBrokerConsumer)
		if err != nil {
			a.logger.Errorf("Ошибка consumer: %v", err)
		}
		if ctx.Err() != nil {
			a.logger.Info("Consumer остановлен по контексту")
			return
		}
		if err := common.SleepCtx(ctx, consumerRetryPause); err != nil {
			return
		}
	}
}
