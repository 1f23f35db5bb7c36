package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"integrations/docs"
	"integrations/internal/application"
	"integrations/pkg/broker"
	"integrations/pkg/config"
	"integrations/pkg/db"
	"integrations/pkg/httpclient"
	"integrations/pkg/httpserver"
	"integrations/pkg/metrics"
	"integrations/pkg/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// @title           Integrations Service API
// @version         1.0
// @description     Очередь интеграционных событий и диспетчер обработчиков

// @BasePath /integrations/api

func main() {
	rootCmd := &cobra.Command{
		Use:   "integrations",
		Short: "Integration event queue and dispatcher",
		// без подкоманды запускаем сервер
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API, relay workers, cron and kafka consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Claim and dispatch one batch, print the summary as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			batchSize, _ := cmd.Flags().GetInt("batch-size")
			return processOnce(cmd.Context(), batchSize)
		},
	}
	processCmd.Flags().Int("batch-size", 0, "batch size, 0 means relay.batchSize")
	rootCmd.AddCommand(processCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.NewConfig()
			if err != nil {
				return err
			}
			return db.Migrate(conf.Postgres)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *zap.SugaredLogger) {
	conf, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := observability.InitLogger(conf.LoggingLevel)

	logger.Infof("LOGGING_LEVEL = %s", conf.LoggingLevel)
	if strings.ToLower(conf.LoggingLevel) == "debug" {
		broker.EnableSaramaZapLogs(logger)
	}
	return conf, logger
}

func newKafka(conf config.Config, logger *zap.SugaredLogger) *broker.KafkaBroker {
	if !conf.Broker.Kafka.Enabled {
		logger.Info("kafka выключена, исходы событий не публикуются")
		return nil
	}
	kafka, err := broker.NewKafkaBroker(conf.Broker.Kafka, logger)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("Kafka broker создан успешно. Consumer topic: %s, Producer topic: %s", kafka.ConsumerTopic, kafka.ProducerTopic)
	return kafka
}

func processOnce(ctx context.Context, batchSize int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conf, logger := loadConfig()
	defer logger.Sync() //nolint:errcheck

	store, err := db.NewPostgres(ctx, conf.Postgres)
	if err != nil {
		return err
	}
	defer store.Close()

	kafka := newKafka(conf, logger)
	if kafka != nil {
		defer kafka.Close() //nolint:errcheck
	}

	m := metrics.New(prometheus.NewRegistry())
	base := httpclient.NewClient(conf.HTTPClient)
	defer base.CloseIdle()
	uc, err := application.BuildUseCase(&conf, logger, store, kafka, base, m)
	if err != nil {
		return err
	}

	res := uc.ProcessCycle(ctx, batchSize)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func serve() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf, logger := loadConfig()

	docs.SwaggerInfo.Host = conf.Server.SwaggerHost
	docs.SwaggerInfo.Schemes = []string{conf.Server.SwaggerSchema}

	m := metrics.New(prometheus.DefaultRegisterer)

	fiberServer := httpserver.NewFiber(conf, m, logger)
	if fiberServer == nil {
		logger.Fatal(errors.New("fiber server is nil"))
	}

	store, err := db.NewPostgres(ctx, conf.Postgres)
	if err != nil {
		logger.Fatal(err)
	}

	kafka := newKafka(conf, logger)

	server, err := application.NewApp(ctx, &conf, logger, store, fiberServer, kafka, m)
	if err != nil {
		logger.Fatal(err)
	}

	logger.Info("Integrations service started successfully")
	logger.Info(fmt.Sprintf("Server config: port=%s swagger_host=%s", conf.Server.Port, conf.Server.SwaggerHost))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Fatalf("error listening for server: %v", err)
				return
			}

			logger.Infof("server %v closed", conf.Server.Port)
		}
	}()

	//graceful shutdown
	osSignal := <-interrupt
	switch osSignal {
	case os.Interrupt:
		logger.Infof("%v Got SIGINT...", conf.Server.Port)
	case syscall.SIGTERM:
		logger.Infof("%v Got SIGTERM...", conf.Server.Port)
	}

	cancel()

	if err := server.Shutdown(); err != nil {
		logger.Errorf("server %v forced to shutdown: %v", conf.Server.Port, err)
	}

	store.Close()
	logger.Infof("postgres db connection closed")

	logger.Infof("server shutdown %v done", conf.Server.Port)
	return nil
}
