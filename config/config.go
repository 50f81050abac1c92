package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	Postgres  Postgres
	Redis     Redis
	API       API
	Cache     Cache
	Jobs      Jobs
	HTTP      HTTP
	Benchmark Benchmark
	Telegram  Telegram
}

type Postgres struct {
	Host            string        `env:"PG_HOST"`
	Port            int           `env:"PG_PORT"`
	DbName          string        `env:"PG_DB_NAME"`
	Password        string        `env:"PG_PASSWORD"`
	User            string        `env:"PG_USER"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime int           `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime int           `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`
	MigrationDir    string        `env:"PG_MIGRATION_DIR" envDefault:"migrations"`
	SSLMode         string        `env:"PG_SSL_MODE" envDefault:"disable"`
	ConnAttempts    int           `env:"PG_CONN_ATTEMPTS" envDefault:"10"`
	ConnRetryDelay  time.Duration `env:"PG_CONN_RETRY_DELAY" envDefault:"1s"`
}

type Redis struct {
	Host        string        `env:"REDIS_HOST"`
	Port        int           `env:"REDIS_PORT"`
	Password    string        `env:"REDIS_PASSWORD" envDefault:""`
	DB          int           `env:"REDIS_DB" envDefault:"0"`
	PingTimeout time.Duration `env:"REDIS_PING_TIMEOUT" envDefault:"5s"`
}

type API struct {
	Debug   bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	MoexApi MoexApi
}

type MoexApi struct {
	Url        string `env:"MOEX_API_URL" envDefault:"https://iss.moex.com"`
	ShareBoard string `env:"MOEX_SHARE_BOARD" envDefault:"TQBR"`
}

type Cache struct {
	PriceSeriesExpiration time.Duration `env:"CACHE_PRICE_SERIES_EXPIRATION" envDefault:"6h"`
}

type Jobs struct {
	SnapshotsCrontab    string        `env:"SNAPSHOTS_JOB_CRONTAB" envDefault:"0 */30 * * * *"`
	SnapshotsUserLimit  int           `env:"SNAPSHOTS_JOB_USER_LIMIT" envDefault:"100"`
	SnapshotsTimeBudget time.Duration `env:"SNAPSHOTS_JOB_TIME_BUDGET" envDefault:"20s"`
	SnapshotsRetention  int           `env:"SNAPSHOTS_RETENTION_DAYS" envDefault:"730"`
	PortCallTimeout     time.Duration `env:"PORT_CALL_TIMEOUT" envDefault:"5s"`
	UpsertChunkSize     int           `env:"SNAPSHOTS_UPSERT_CHUNK_SIZE" envDefault:"200"`
	CursorExpiration    time.Duration `env:"SNAPSHOTS_CURSOR_EXPIRATION" envDefault:"24h"`
	PriceLookbackDays   int           `env:"SNAPSHOTS_PRICE_LOOKBACK_DAYS" envDefault:"14"`
}

type HTTP struct {
	Addr               string        `env:"HTTP_ADDR" envDefault:":8080"`
	CronSecret         string        `env:"CRON_SECRET"`
	ReadTimeout        time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout       time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	BenchmarkRateLimit float64       `env:"HTTP_BENCHMARK_RATE_LIMIT" envDefault:"5"`
	BenchmarkRateBurst int           `env:"HTTP_BENCHMARK_RATE_BURST" envDefault:"10"`
}

type Benchmark struct {
	LookbackDays    int `env:"BENCHMARK_LOOKBACK_DAYS" envDefault:"14"`
	MaxLookbackDays int `env:"BENCHMARK_MAX_LOOKBACK_DAYS" envDefault:"365"`
}

// Telegram is used only for alerting; an empty token disables it.
type Telegram struct {
	Token       string `env:"TELEGRAM_ALERT_TOKEN" envDefault:""`
	AlertChatID int64  `env:"TELEGRAM_ALERT_CHAT_ID" envDefault:"0"`
	ApiURL      string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
