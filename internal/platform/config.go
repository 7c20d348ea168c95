// Package platform holds the configuration blocks and connection builders
// shared by the service binaries.
package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Load reads an optional .env file and then fills cfg from the environment.
// Variables already set in the environment win over the file.
func Load(cfg any, envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", f, err)
			}
			slog.Debug("No env file", "file", f)
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}
	return nil
}

type DbConfig struct {
	Port     uint16 `env:"PG_PORT" env-default:"5432"`
	Host     string `env:"PG_HOST" env-default:"localhost"`
	Name     string `env:"PG_NAME" env-default:"social_db"`
	User     string `env:"PG_USER" env-default:"social"`
	Password string `env:"PG_PASSWORD" env-default:"pwd"`
	// URL overrides the individual fields when set.
	URL string `env:"DATABASE_URL"`
	// ConnectTimeout bounds the startup ping.
	ConnectTimeout time.Duration `env:"PG_CONNECT_TIMEOUT" env-default:"10s"`
}

func (c DbConfig) ToDatabaseUrl() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}
	return u.String()
}

// RedisConfig configures the cache store. An empty Addr selects the
// in-process store.
type RedisConfig struct {
	Addr         string        `env:"REDIS_ADDR" env-default:""`
	Password     string        `env:"REDIS_PASSWORD"`
	DB           int           `env:"REDIS_DB" env-default:"0"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" env-default:"2s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" env-default:"500ms"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" env-default:"500ms"`
}

// Event bus transports.
const (
	BusRabbitMQ = "rabbitmq"
	BusMemory   = "memory"
)

// RabbitConfig configures the event bus. The in-process bus only connects
// components within one binary, so it must be asked for with EVENT_BUS=memory.
type RabbitConfig struct {
	Transport       string        `env:"EVENT_BUS" env-default:"rabbitmq"`
	URL             string        `env:"RABBITMQ_URL" env-default:""`
	Exchange        string        `env:"RABBITMQ_EXCHANGE" env-default:"social_events"`
	DialTimeout     time.Duration `env:"RABBITMQ_DIAL_TIMEOUT" env-default:"5s"`
	PublishTimeout  time.Duration `env:"RABBITMQ_PUBLISH_TIMEOUT" env-default:"5s"`
	RetryInterval   time.Duration `env:"RABBITMQ_RETRY_INTERVAL" env-default:"5s"`
	HandlerTimeout  time.Duration `env:"EVENT_HANDLER_TIMEOUT" env-default:"30s"`
	RedeliveryDelay time.Duration `env:"EVENT_REDELIVERY_DELAY" env-default:"1s"`
}

type MongoConfig struct {
	URI             string        `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database        string        `env:"MONGO_DATABASE" env-default:"social_search"`
	ConnectTimeout  time.Duration `env:"MONGO_CONNECT_TIMEOUT" env-default:"10s"`
	TombstoneWindow time.Duration `env:"SEARCH_TOMBSTONE_RETENTION" env-default:"168h"`
}

// S3Config configures the remote asset store. An empty Bucket selects the
// in-process store.
type S3Config struct {
	Endpoint        string `env:"AWS_S3_ENDPOINT" env-default:"http://localhost:9000"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:"minioadmin"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:"minioadmin"`
	BucketName      string `env:"AWS_S3_BUCKET" env-default:""`
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"true"`
	PublicBaseURL   string `env:"AWS_S3_PUBLIC_BASE_URL"`
	CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

type JWTConfig struct {
	Secret   string        `env:"JWT_SECRET" env-required:"true"`
	TokenTTL time.Duration `env:"JWT_TOKEN_TTL" env-default:"1h"`
}
