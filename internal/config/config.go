// Package config собирает настройки всех пакетов из флагов и переменных окружения.
// Переменная окружения имеет приоритет над флагом.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	auditConfig "github.com/iurnickita/topuprouter/internal/audit/config"
	authConfig "github.com/iurnickita/topuprouter/internal/auth/config"
	eliteConfig "github.com/iurnickita/topuprouter/internal/eliteclient/config"
	g2gConfig "github.com/iurnickita/topuprouter/internal/g2gclient/config"
	handlerConfig "github.com/iurnickita/topuprouter/internal/handler/config"
	lapakConfig "github.com/iurnickita/topuprouter/internal/lapakclient/config"
	loggerConfig "github.com/iurnickita/topuprouter/internal/logger/config"
	mappingConfig "github.com/iurnickita/topuprouter/internal/mapping/config"
	storeConfig "github.com/iurnickita/topuprouter/internal/store/config"
	trackerConfig "github.com/iurnickita/topuprouter/internal/tracker/config"
	upstreamConfig "github.com/iurnickita/topuprouter/internal/upstream/config"
)

type Config struct {
	Handler  handlerConfig.Config
	Logger   loggerConfig.Config
	Store    storeConfig.Config
	Audit    auditConfig.Config
	Mapping  mappingConfig.Config
	Upstream upstreamConfig.Config
	G2G      g2gConfig.Config
	Lapak    lapakConfig.Config
	Elite    eliteConfig.Config
	Tracker  trackerConfig.Config
	Auth     authConfig.Config
}

func GetConfig() (Config, error) {
	return parse(os.Args[1:], os.Getenv)
}

func parse(args []string, getenv func(string) string) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("topuprouter", flag.ContinueOnError)

	// http
	fs.StringVar(&cfg.Handler.ServerAddr, "a", ":8080", "server address")
	fs.StringVar(&cfg.Handler.WebhookURL, "webhook-url", "", "g2g webhook url used in signature")
	fs.StringVar(&cfg.Handler.WebhookSecret, "webhook-secret", "", "g2g webhook secret token")
	fs.DurationVar(&cfg.Handler.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")

	// логи
	fs.StringVar(&cfg.Logger.LogLevel, "l", "info", "log level")
	fs.StringVar(&cfg.Logger.Encoding, "log-encoding", "json", "log encoding: json | console")

	// хранилище заказов
	fs.StringVar(&cfg.Store.Backend, "store", storeConfig.BackendPostgres, "store backend: postgres | redis | memory")
	fs.StringVar(&cfg.Store.DBDsn, "d", "", "database dsn")
	fs.StringVar(&cfg.Store.RedisAddr, "redis-addr", "localhost:6379", "redis address")
	fs.StringVar(&cfg.Store.RedisPassword, "redis-password", "", "redis password")
	fs.IntVar(&cfg.Store.RedisDB, "redis-db", 0, "redis database")
	fs.StringVar(&cfg.Store.RedisPrefix, "redis-prefix", "topuprouter:", "redis key prefix")

	// журнал
	fs.StringVar(&cfg.Audit.Backend, "audit", auditConfig.BackendPostgres, "audit backend: postgres | memory")
	kafkaBrokers := fs.String("kafka-brokers", "", "comma separated kafka brokers for audit stream")
	fs.StringVar(&cfg.Audit.KafkaTopic, "kafka-topic", "topuprouter.audit", "kafka topic for audit stream")

	// маппинг
	fs.StringVar(&cfg.Mapping.Source, "mapping-source", mappingConfig.SourceFile, "mapping source: file | s3")
	fs.StringVar(&cfg.Mapping.Path, "mapping-path", "mapping.yaml", "mapping file path")
	fs.StringVar(&cfg.Mapping.S3Bucket, "mapping-bucket", "", "mapping s3 bucket")
	fs.StringVar(&cfg.Mapping.S3Key, "mapping-key", "mapping.yaml", "mapping s3 object key")

	// внешние API
	fs.DurationVar(&cfg.Upstream.Timeout, "upstream-timeout", 30*time.Second, "upstream call timeout")
	fs.IntVar(&cfg.Upstream.RetryCount, "upstream-retries", 3, "upstream retry count")
	fs.DurationVar(&cfg.Upstream.RetryWait, "upstream-retry-wait", 2*time.Second, "upstream retry wait")

	fs.StringVar(&cfg.G2G.BaseURL, "g2g-url", "https://open-api.g2g.com", "g2g api url")
	fs.StringVar(&cfg.G2G.APIVersion, "g2g-version", "v2", "g2g api version")
	fs.StringVar(&cfg.G2G.AccountID, "g2g-account", "", "g2g account id")
	fs.StringVar(&cfg.G2G.APIKey, "g2g-key", "", "g2g api key")
	fs.StringVar(&cfg.G2G.SecretKey, "g2g-secret", "", "g2g api secret")

	fs.StringVar(&cfg.Lapak.BaseURL, "lapak-url", "https://www.lapakgaming.com", "lapakgaming api url")
	fs.StringVar(&cfg.Lapak.APIKey, "lapak-key", "", "lapakgaming api key")
	fs.StringVar(&cfg.Lapak.CallbackURL, "lapak-callback", "", "lapakgaming order callback url")
	lapakCountries := fs.String("lapak-countries", "id", "comma separated lapakgaming country codes")
	fs.StringVar(&cfg.Lapak.Currency, "lapak-currency", "IDR", "lapakgaming price currency")

	fs.StringVar(&cfg.Elite.BaseURL, "elite-url", "https://api.elitedias.com", "elitedias api url")
	fs.StringVar(&cfg.Elite.APIKey, "elite-key", "", "elitedias api key")
	fs.StringVar(&cfg.Elite.Origin, "elite-origin", "", "elitedias origin header")
	fs.StringVar(&cfg.Elite.Currency, "elite-currency", "SGD", "elitedias price currency")

	// трекеры
	fs.DurationVar(&cfg.Tracker.LapakInterval, "lapak-interval", 10*time.Minute, "lapakgaming poll interval")
	fs.IntVar(&cfg.Tracker.LapakMaxRetries, "lapak-retries", 3, "lapakgaming tracker retry bound")
	fs.DurationVar(&cfg.Tracker.EliteInterval, "elite-interval", 2*time.Minute, "elitedias poll interval")
	fs.DurationVar(&cfg.Tracker.EliteRestartWait, "elite-restart-wait", 30*time.Second, "elitedias tracker restart wait")

	// операторы
	fs.StringVar(&cfg.Auth.SecretKey, "admin-secret", "", "operator jwt secret")
	fs.DurationVar(&cfg.Auth.TokenTTL, "admin-token-ttl", 24*time.Hour, "operator token ttl")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	env := envReader{getenv: getenv}
	env.str("SERVER_ADDRESS", &cfg.Handler.ServerAddr)
	env.str("G2G_WEBHOOK_URL", &cfg.Handler.WebhookURL)
	env.str("G2G_WEBHOOK_SECRET_TOKEN", &cfg.Handler.WebhookSecret)
	env.duration("SHUTDOWN_TIMEOUT", &cfg.Handler.ShutdownTimeout)
	env.str("LOG_LEVEL", &cfg.Logger.LogLevel)
	env.str("LOG_ENCODING", &cfg.Logger.Encoding)
	env.str("STORE_BACKEND", &cfg.Store.Backend)
	env.str("DATABASE_URI", &cfg.Store.DBDsn)
	env.str("REDIS_ADDR", &cfg.Store.RedisAddr)
	env.str("REDIS_PASSWORD", &cfg.Store.RedisPassword)
	env.integer("REDIS_DB", &cfg.Store.RedisDB)
	env.str("REDIS_PREFIX", &cfg.Store.RedisPrefix)
	env.str("AUDIT_BACKEND", &cfg.Audit.Backend)
	env.str("KAFKA_BROKERS", kafkaBrokers)
	env.str("KAFKA_TOPIC", &cfg.Audit.KafkaTopic)
	env.str("MAPPING_SOURCE", &cfg.Mapping.Source)
	env.str("MAPPING_PATH", &cfg.Mapping.Path)
	env.str("MAPPING_S3_BUCKET", &cfg.Mapping.S3Bucket)
	env.str("MAPPING_S3_KEY", &cfg.Mapping.S3Key)
	env.duration("UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)
	env.integer("UPSTREAM_RETRIES", &cfg.Upstream.RetryCount)
	env.duration("UPSTREAM_RETRY_WAIT", &cfg.Upstream.RetryWait)
	env.str("G2G_BASE_URL", &cfg.G2G.BaseURL)
	env.str("G2G_API_VERSION", &cfg.G2G.APIVersion)
	env.str("G2G_ACCOUNT_ID", &cfg.G2G.AccountID)
	env.str("G2G_API_KEY", &cfg.G2G.APIKey)
	env.str("G2G_SECRET_KEY", &cfg.G2G.SecretKey)
	env.str("LPK_BASE_URL", &cfg.Lapak.BaseURL)
	env.str("LPK_API_KEY", &cfg.Lapak.APIKey)
	env.str("LPK_CALLBACK_URL", &cfg.Lapak.CallbackURL)
	env.str("LPK_COUNTRY_CODES", lapakCountries)
	env.str("LPK_CURRENCY", &cfg.Lapak.Currency)
	env.str("ELITE_BASE_URL", &cfg.Elite.BaseURL)
	env.str("ELITE_API_KEY", &cfg.Elite.APIKey)
	env.str("ELITE_ORIGIN", &cfg.Elite.Origin)
	env.str("ELITE_CURRENCY", &cfg.Elite.Currency)
	env.duration("LPK_POLL_INTERVAL", &cfg.Tracker.LapakInterval)
	env.integer("LPK_POLL_RETRIES", &cfg.Tracker.LapakMaxRetries)
	env.duration("ELITE_POLL_INTERVAL", &cfg.Tracker.EliteInterval)
	env.duration("ELITE_RESTART_WAIT", &cfg.Tracker.EliteRestartWait)
	env.str("ADMIN_SECRET", &cfg.Auth.SecretKey)
	env.duration("ADMIN_TOKEN_TTL", &cfg.Auth.TokenTTL)
	if env.err != nil {
		return Config{}, env.err
	}

	cfg.Audit.KafkaBrokers = splitList(*kafkaBrokers)
	cfg.Lapak.CountryCodes = splitList(*lapakCountries)
	// журнал по умолчанию в той же БД, что и заказы
	cfg.Audit.DBDsn = cfg.Store.DBDsn
	cfg.Handler.AccountID = cfg.G2G.AccountID
	return cfg, nil
}

type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) str(name string, dst *string) {
	if v := e.getenv(name); v != "" {
		*dst = v
	}
}

func (e *envReader) integer(name string, dst *int) {
	v := e.getenv(name)
	if v == "" || e.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("env %s: %w", name, err)
		return
	}
	*dst = n
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v := e.getenv(name)
	if v == "" || e.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("env %s: %w", name, err)
		return
	}
	*dst = d
}

func splitList(s string) []string {
	var list []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
