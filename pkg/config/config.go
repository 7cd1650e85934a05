package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tutorhub/pkg/client"
	"tutorhub/pkg/logger"
)

type Config struct {
	StoreBackend string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	PostgresDSN string
	SQLitePath  string
	SQLMaxConns int

	Port string

	JWTSecret string

	RateLimitRPS   int
	RateLimitBurst int

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SlotLockTTL        time.Duration
	SlotLockBackend    string
	SettlementTimeout  time.Duration
	CancellationNotice time.Duration
	DefaultCurrency    string

	NotifyBackend string
	NotifyTopic   string
	AMQPURL       string
	AMQPExchange  string

	KafkaBrokers      []string
	KafkaDLQTopic     string
	KafkaMaxAttempts  int
	KafkaWriteTimeout time.Duration
	KafkaRequireAcks  int
	KafkaCompression  string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		StoreBackend: getEnvStr(EnvStoreBackend, DefaultStoreBackend),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		PostgresDSN: getEnvStr(EnvPostgresDSN, ""),
		SQLitePath:  getEnvStr(EnvSQLitePath, DefaultSQLitePath),
		SQLMaxConns: getEnvNum(EnvSQLMaxConns, DefaultSQLMaxConns),

		Port: getEnvStr(EnvPort, DefaultPort),

		JWTSecret: getEnvStr(EnvJWTSecret, ""),

		RateLimitRPS:   getEnvNum(EnvRateLimitRPS, DefaultRateLimitRPS),
		RateLimitBurst: getEnvNum(EnvRateLimitBurst, DefaultRateLimitBurst),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		SlotLockTTL:        getEnvDuration(EnvSlotLockTTL, DefaultSlotLockTTL),
		SlotLockBackend:    getEnvStr(EnvSlotLockBackend, DefaultSlotLockBackend),
		SettlementTimeout:  getEnvDuration(EnvSettlementTimeout, DefaultSettlementTimeout),
		CancellationNotice: getEnvDuration(EnvCancellationNotice, DefaultCancellationNotice),
		DefaultCurrency:    getEnvStr(EnvDefaultCurrency, DefaultCurrency),

		NotifyBackend: getEnvStr(EnvNotifyBackend, DefaultNotifyBackend),
		NotifyTopic:   getEnvStr(EnvNotifyTopic, DefaultNotifyTopic),
		AMQPURL:       getEnvStr(EnvAMQPURL, DefaultAMQPURL),
		AMQPExchange:  getEnvStr(EnvAMQPExchange, DefaultAMQPExchange),

		KafkaBrokers:      getEnvList(EnvKafkaBrokers, DefaultKafkaBrokers),
		KafkaDLQTopic:     getEnvStr(EnvKafkaDLQTopic, ""),
		KafkaMaxAttempts:  getEnvNum(EnvKafkaMaxAttempts, DefaultKafkaMaxAttempts),
		KafkaWriteTimeout: getEnvDuration(EnvKafkaWriteTimeout, DefaultKafkaWriteTimeout),
		KafkaRequireAcks:  getEnvNum(EnvKafkaRequireAcks, DefaultKafkaRequireAcks),
		KafkaCompression:  getEnvStr(EnvKafkaCompression, DefaultKafkaCompression),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, logger.INFO),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
			File:      getEnvStr(EnvLogFile, ""),
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// Connect opens the store selected by StoreBackend. Failures are fatal.
func (cfg *Config) Connect() {
	switch cfg.StoreBackend {
	case BackendMongo:
		cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
	case BackendPostgres:
		cfg.Client.SetPostgres(cfg.Log, cfg.PostgresDSN, cfg.SQLMaxConns)
	case BackendSQLite:
		cfg.Client.SetSQLite(cfg.Log, cfg.SQLitePath)
	}
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreBackend {
	case BackendMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			errors = append(errors, "PostgresDSN cannot be empty when STORE_BACKEND=postgres")
		}
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			errors = append(errors, "SQLitePath cannot be empty when STORE_BACKEND=sqlite")
		}
	default:
		errors = append(errors, fmt.Sprintf("StoreBackend must be one of [mongo, postgres, sqlite], got: %s", cfg.StoreBackend))
	}

	switch cfg.SlotLockBackend {
	case BackendMemory:
	case BackendMongo:
		if cfg.StoreBackend != BackendMongo {
			errors = append(errors, "SlotLockBackend=mongo requires STORE_BACKEND=mongo")
		}
	case BackendSQL:
		if cfg.StoreBackend == BackendMongo {
			errors = append(errors, "SlotLockBackend=sql requires a SQL STORE_BACKEND")
		}
	default:
		errors = append(errors, fmt.Sprintf("SlotLockBackend must be one of [memory, mongo, sql], got: %s", cfg.SlotLockBackend))
	}

	switch cfg.NotifyBackend {
	case NotifyLog:
	case NotifyKafka:
		if len(cfg.KafkaBrokers) == 0 {
			errors = append(errors, "KafkaBrokers cannot be empty when NOTIFY_BACKEND=kafka")
		}
		if cfg.NotifyTopic == "" {
			errors = append(errors, "NotifyTopic cannot be empty when NOTIFY_BACKEND=kafka")
		}
		if cfg.KafkaDLQTopic != "" && cfg.KafkaDLQTopic == cfg.NotifyTopic {
			errors = append(errors, "KafkaDLQTopic must differ from NotifyTopic")
		}
		if cfg.KafkaMaxAttempts <= 0 {
			errors = append(errors, fmt.Sprintf("KafkaMaxAttempts must be positive, got: %d", cfg.KafkaMaxAttempts))
		}
		if cfg.KafkaRequireAcks < -1 || cfg.KafkaRequireAcks > 1 {
			errors = append(errors, fmt.Sprintf("KafkaRequireAcks must be -1, 0, or 1, got: %d", cfg.KafkaRequireAcks))
		}
		switch cfg.KafkaCompression {
		case "none", "gzip", "snappy", "lz4", "zstd":
		default:
			errors = append(errors, fmt.Sprintf("KafkaCompression must be one of [none, gzip, snappy, lz4, zstd], got: %s", cfg.KafkaCompression))
		}
	case NotifyAMQP:
		if cfg.AMQPURL == "" {
			errors = append(errors, "AMQPURL cannot be empty when NOTIFY_BACKEND=amqp")
		}
	default:
		errors = append(errors, fmt.Sprintf("NotifyBackend must be one of [kafka, amqp, log], got: %s", cfg.NotifyBackend))
	}

	if cfg.JWTSecret == "" {
		errors = append(errors, "JWTSecret cannot be empty")
	}

	if cfg.SlotLockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("SlotLockTTL must be positive, got: %s", cfg.SlotLockTTL))
	}
	if cfg.SettlementTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("SettlementTimeout must be positive, got: %s", cfg.SettlementTimeout))
	}
	if cfg.CancellationNotice < 0 {
		errors = append(errors, fmt.Sprintf("CancellationNotice cannot be negative, got: %s", cfg.CancellationNotice))
	}
	if len(cfg.DefaultCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("DefaultCurrency must be a 3-letter code, got: %s", cfg.DefaultCurrency))
	}

	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRPS must be positive, got: %d", cfg.RateLimitRPS))
	}
	if cfg.RateLimitBurst <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitBurst must be positive, got: %d", cfg.RateLimitBurst))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_backend", cfg.StoreBackend,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"postgres_dsn_set", cfg.PostgresDSN != "",
		"sqlite_path", cfg.SQLitePath,
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"rate_limit_rps", cfg.RateLimitRPS,
		"rate_limit_burst", cfg.RateLimitBurst,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"slot_lock_ttl", cfg.SlotLockTTL,
		"slot_lock_backend", cfg.SlotLockBackend,
		"settlement_timeout", cfg.SettlementTimeout,
		"cancellation_notice", cfg.CancellationNotice,
		"default_currency", cfg.DefaultCurrency,
		"notify_backend", cfg.NotifyBackend,
		"notify_topic", cfg.NotifyTopic,
		"kafka_brokers", cfg.KafkaBrokers,
		"kafka_dlq_topic", cfg.KafkaDLQTopic,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping blank entries.
func getEnvList(key, fallback string) []string {
	var out []string
	for _, item := range strings.Split(getEnvStr(key, fallback), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
