package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       Server       `mapstructure:"server"`
	Postgres     Postgres     `mapstructure:"postgres"`
	Broker       Broker       `mapstructure:"broker"`
	Cron         Cron         `mapstructure:"cron"`
	Relay        RelayConfig  `mapstructure:"relay"`
	HTTPClient   HTTPClient   `mapstructure:"httpClient"`
	Breaker      Breaker      `mapstructure:"breaker"`
	Integrations Integrations `mapstructure:"integrations"`
	LoggingLevel string       `mapstructure:"logging-level"`
}

type Server struct {
	Port          string `mapstructure:"port"`
	SwaggerUrl    string `mapstructure:"swagger_json"`
	SwaggerHost   string `mapstructure:"swagger_host"`
	SwaggerSchema string `mapstructure:"swagger_schema"`
	BodyLimit     int    `mapstructure:"body_limit"`
}

type Postgres struct {
	ConnString     string `mapstructure:"conn_string"`
	MaxConnections int32  `mapstructure:"max_connections"`
	MigrationsDir  string `mapstructure:"migrations_dir"`
}

type Broker struct {
	Kafka Kafka `mapstructure:"kafka"`
}

type Kafka struct {
	Enabled      bool   `mapstructure:"enabled"`
	Brokers      string `mapstructure:"brokers"`
	ReaderTopic  string `mapstructure:"readerTopic"`
	ReaderGroup  string `mapstructure:"readerGroup"`
	ReaderUsr    string `mapstructure:"readerUsr"`
	ReaderUsrPwd string `mapstructure:"readerUsrPwd"`
	WriterTopic  string `mapstructure:"writerTopic"`
	WriterUsr    string `mapstructure:"writerUsr"`
	WriterUsrPwd string `mapstructure:"writerUsrPwd"`
	MaxAttempts  int    `mapstructure:"maxAttempts"`
}

type Cron struct {
	DaysToKeep      int    `mapstructure:"daysToKeep"`      // сколько дней хранить completed события, 0 - не чистить
	Schedule        string `mapstructure:"schedule"`        // расписание очистки в формате cron (например, "0 0 3 * * *")
	Interval        string `mapstructure:"interval"`        // интервал очистки "@every 24h"
	ProcessSchedule string `mapstructure:"processSchedule"` // цикл claim+dispatch по cron, пусто - выключено
	// Приоритет: если указан Schedule, используется он, иначе Interval
}

type RelayConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Workers        int           `mapstructure:"workers"`
	BatchSize      int           `mapstructure:"batchSize"`
	MaxBatchSize   int           `mapstructure:"maxBatchSize"`
	Concurrency    int           `mapstructure:"concurrency"`
	PollPeriod     time.Duration `mapstructure:"pollPeriod"`
	StaleLockAfter time.Duration `mapstructure:"staleLockAfter"`
	HandlerTimeout time.Duration `mapstructure:"handlerTimeout"`
	MaxAttempts    int           `mapstructure:"maxAttempts"`
}

const (
	DefaultWorkers        = 1
	DefaultBatchSize      = 20
	DefaultMaxBatchSize   = 50
	DefaultConcurrency    = 4
	DefaultPollPeriod     = 15 * time.Second
	DefaultStaleLockAfter = 5 * time.Minute
	DefaultHandlerTimeout = 60 * time.Second
	DefaultMaxAttempts    = 7
)

// Normalize подставляет значения по умолчанию вместо нулевых
func (c *RelayConfig) Normalize() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchSize > c.MaxBatchSize {
		c.BatchSize = c.MaxBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.PollPeriod <= 0 {
		c.PollPeriod = DefaultPollPeriod
	}
	if c.StaleLockAfter <= 0 {
		c.StaleLockAfter = DefaultStaleLockAfter
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = DefaultHandlerTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
}

// Validate таймаут обработчика должен быть меньше порога протухания лока,
// иначе живое событие может быть перехвачено вторым воркером
func (c RelayConfig) Validate() error {
	if c.HandlerTimeout >= c.StaleLockAfter {
		return fmt.Errorf("relay.handlerTimeout (%s) must be less than relay.staleLockAfter (%s)", c.HandlerTimeout, c.StaleLockAfter)
	}
	return nil
}

// ClampBatch приводит размер батча к [1, MaxBatchSize], 0 - значение по умолчанию
func (c RelayConfig) ClampBatch(n int) int {
	if n <= 0 {
		n = c.BatchSize
	}
	if n < 1 {
		n = 1
	}
	if c.MaxBatchSize > 0 && n > c.MaxBatchSize {
		n = c.MaxBatchSize
	}
	return n
}

type HTTPClient struct {
	//конфиг клиента
	ConnectTimeout        time.Duration `mapstructure:"connectTimeout"`        // TCP коннект
	TLSHandshakeTimeout   time.Duration `mapstructure:"TLSHandshakeTimeout"`   // TLS рукопожатие
	ResponseHeaderTimeout time.Duration `mapstructure:"responseHeaderTimeout"` // ожидание заголовков ответа
	ExpectContinueTimeout time.Duration `mapstructure:"expectContinueTimeout"` // 100-continue

	// Пул соединений
	IdleConnTimeout     time.Duration `mapstructure:"idleConnTimeout"`
	MaxIdleConns        int           `mapstructure:"maxIdleConns"`
	MaxIdleConnsPerHost int           `mapstructure:"maxIdleConnsPerHost"`
	MaxConnsPerHost     int           `mapstructure:"maxConnsPerHost"`
	KeepAlives          bool          `mapstructure:"keepAlives"`

	// Общий таймаут клиента. 0 - контролируем дедлайном через context.
	ClientTimeout time.Duration `mapstructure:"clientTimeout"`

	// Прочее
	UserAgent  string        `mapstructure:"userAgent"`
	MaxRetries int           `mapstructure:"maxRetries"`
	RetryBase  time.Duration `mapstructure:"retryBase"`

	// SSL/TLS настройки
	InsecureSkipVerify bool `mapstructure:"insecureSkipVerify"` // отключить проверку SSL сертификатов
}

// Breaker настройки circuit breaker на каждого внешнего провайдера
type Breaker struct {
	MaxRequests         uint32        `mapstructure:"maxRequests"`         // пропускаем в half-open
	Interval            time.Duration `mapstructure:"interval"`            // сброс счётчиков в closed
	Timeout             time.Duration `mapstructure:"timeout"`             // сколько держим open
	ConsecutiveFailures uint32        `mapstructure:"consecutiveFailures"` // порог открытия
}

type Integrations struct {
	CronSecret  string `mapstructure:"cronSecret"`
	DriveAPIURL string `mapstructure:"driveApiUrl"` // переопределение endpoint Drive API, для стендов
}

var ErrMissingConnString = errors.New("postgres.conn_string is required")

func NewConfig() (Config, error) {
	viper.AutomaticEnv()
	// Настраиваем замену точек и дефисов на подчеркивания для переменных окружения
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	setDefaults(viper.GetViper())

	var conf Config
	err := viper.ReadInConfig()
	// Игнорируем ошибку, если файл не найден - используем только переменные окружения
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return conf, err
		}
	}

	if err = viper.Unmarshal(&conf); err != nil {
		return conf, err
	}

	conf.Relay.Normalize()
	if err = conf.Relay.Validate(); err != nil {
		return conf, err
	}

	return conf, nil
}

// setDefaults без явных ключей AutomaticEnv не находит переменные при Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.body_limit", 4*1024*1024)
	v.SetDefault("postgres.conn_string", "")
	v.SetDefault("postgres.max_connections", 5)
	v.SetDefault("postgres.migrations_dir", "resources/migrations")

	v.SetDefault("broker.kafka.enabled", false)
	v.SetDefault("broker.kafka.brokers", "")
	v.SetDefault("broker.kafka.readerTopic", "")
	v.SetDefault("broker.kafka.readerGroup", "integrations")
	v.SetDefault("broker.kafka.readerUsr", "")
	v.SetDefault("broker.kafka.readerUsrPwd", "")
	v.SetDefault("broker.kafka.writerTopic", "")
	v.SetDefault("broker.kafka.writerUsr", "")
	v.SetDefault("broker.kafka.writerUsrPwd", "")
	v.SetDefault("broker.kafka.maxAttempts", 3)

	v.SetDefault("cron.daysToKeep", 90)
	v.SetDefault("cron.schedule", "")
	v.SetDefault("cron.interval", "@every 24h")
	v.SetDefault("cron.processSchedule", "")

	v.SetDefault("relay.enabled", true)
	v.SetDefault("relay.workers", DefaultWorkers)
	v.SetDefault("relay.batchSize", DefaultBatchSize)
	v.SetDefault("relay.maxBatchSize", DefaultMaxBatchSize)
	v.SetDefault("relay.concurrency", DefaultConcurrency)
	v.SetDefault("relay.pollPeriod", DefaultPollPeriod)
	v.SetDefault("relay.staleLockAfter", DefaultStaleLockAfter)
	v.SetDefault("relay.handlerTimeout", DefaultHandlerTimeout)
	v.SetDefault("relay.maxAttempts", DefaultMaxAttempts)

	v.SetDefault("httpClient.connectTimeout", 5*time.Second)
	v.SetDefault("httpClient.TLSHandshakeTimeout", 5*time.Second)
	v.SetDefault("httpClient.responseHeaderTimeout", 30*time.Second)
	v.SetDefault("httpClient.expectContinueTimeout", time.Second)
	v.SetDefault("httpClient.idleConnTimeout", 90*time.Second)
	v.SetDefault("httpClient.maxIdleConns", 100)
	v.SetDefault("httpClient.maxIdleConnsPerHost", 10)
	v.SetDefault("httpClient.maxConnsPerHost", 0)
	v.SetDefault("httpClient.keepAlives", true)
	v.SetDefault("httpClient.clientTimeout", 0)
	v.SetDefault("httpClient.userAgent", "integrations/1.0")
	v.SetDefault("httpClient.maxRetries", 3)
	v.SetDefault("httpClient.retryBase", time.Second)
	v.SetDefault("httpClient.insecureSkipVerify", false)

	v.SetDefault("breaker.maxRequests", 1)
	v.SetDefault("breaker.interval", time.Minute)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("breaker.consecutiveFailures", 5)

	v.SetDefault("integrations.cronSecret", "")
	v.SetDefault("integrations.driveApiUrl", "")

	v.SetDefault("logging-level", "info")
}
