package config

const (
	EnvStoreBackend = "STORE_BACKEND"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPostgresDSN = "POSTGRES_DSN"
	EnvSQLitePath  = "SQLITE_PATH"
	EnvSQLMaxConns = "SQL_MAX_OPEN_CONNS"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"
	EnvLogFile  = "LOG_FILE"

	EnvJWTSecret = "JWT_SECRET"

	EnvRateLimitRPS   = "RATE_LIMIT_RPS"
	EnvRateLimitBurst = "RATE_LIMIT_BURST"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvSlotLockTTL        = "SLOT_LOCK_TTL"
	EnvSlotLockBackend    = "SLOT_LOCK_BACKEND"
	EnvSettlementTimeout  = "SETTLEMENT_TIMEOUT"
	EnvCancellationNotice = "CANCELLATION_NOTICE"
	EnvDefaultCurrency    = "DEFAULT_CURRENCY"

	EnvNotifyBackend = "NOTIFY_BACKEND"
	EnvNotifyTopic   = "NOTIFY_TOPIC"
	EnvAMQPURL       = "AMQP_URL"
	EnvAMQPExchange  = "AMQP_EXCHANGE"

	EnvKafkaBrokers      = "KAFKA_BROKERS"
	EnvKafkaDLQTopic     = "KAFKA_DLQ_TOPIC"
	EnvKafkaMaxAttempts  = "KAFKA_MAX_ATTEMPTS"
	EnvKafkaWriteTimeout = "KAFKA_WRITE_TIMEOUT"
	EnvKafkaRequireAcks  = "KAFKA_REQUIRE_ACKS"
	EnvKafkaCompression  = "KAFKA_COMPRESSION"
)
