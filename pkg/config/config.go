package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT" env-default:"5432"`
		Host    string `env:"POSTGRES_HOST" env-default:"localhost"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Redis struct {
		Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" env-default:"0"`
	}
	Kafka struct {
		Brokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
		Topic   string `env:"KAFKA_TOPIC" env-default:"feed-changes"`
		GroupID string `env:"KAFKA_GROUP_ID" env-default:"feed-client"`
	}
	Realtime struct {
		Transport        string        `env:"REALTIME_TRANSPORT" env-default:"redis"`
		ReconnectInitial time.Duration `env:"REALTIME_RECONNECT_INITIAL" env-default:"500ms"`
		ReconnectMax     time.Duration `env:"REALTIME_RECONNECT_MAX" env-default:"30s"`
		ReconnectFactor  float64       `env:"REALTIME_RECONNECT_FACTOR" env-default:"2"`
	}
	Session struct {
		UserID string `env:"FEED_VIEWER_ID"`
	}
	Feed struct {
		TTL              time.Duration `env:"FEED_POST_TTL" env-default:"1h"`
		SweepInterval    time.Duration `env:"FEED_SWEEP_INTERVAL" env-default:"30s"`
		RequireLocation  bool          `env:"FEED_REQUIRE_LOCATION" env-default:"true"`
		CaptionMaxLength int           `env:"FEED_CAPTION_MAX_LENGTH" env-default:"200"`
		FetchBatchSize   int           `env:"FEED_FETCH_BATCH_SIZE" env-default:"50"`
		FetchWorkers     int           `env:"FEED_FETCH_WORKERS" env-default:"4"`
		ReactionRate     int           `env:"FEED_REACTION_RATE" env-default:"5"`
		ReactionPer      time.Duration `env:"FEED_REACTION_PER" env-default:"10s"`
		ReactionBurst    int           `env:"FEED_REACTION_BURST" env-default:"5"`
	}
	Media struct {
		Root          string `env:"MEDIA_ROOT" env-default:"./media"`
		BaseURL       string `env:"MEDIA_BASE_URL" env-default:"http://localhost:8080/media"`
		MaxImageBytes int64  `env:"MEDIA_MAX_IMAGE_BYTES" env-default:"10485760"`
		MaxVideoBytes int64  `env:"MEDIA_MAX_VIDEO_BYTES" env-default:"52428800"`
	}
	Settings struct {
		Path string `env:"SETTINGS_PATH" env-default:"./settings.yaml"`
	}
}

var (
	once    sync.Once
	cfg     *Config
	loadErr error
)

func New() (*Config, error) {
	once.Do(func() {
		cfg, loadErr = Load()
	})
	return cfg, loadErr
}

// Load reads the configuration from the environment without memoizing it.
func Load() (*Config, error) {
	c := &Config{}
	if err := cleanenv.ReadEnv(c); err != nil {
		help, _ := cleanenv.GetDescription(c, nil)
		return nil, fmt.Errorf("failed to read configuration: %w\n%s", err, help)
	}
	if c.Session.UserID == "" {
		return nil, fmt.Errorf("FEED_VIEWER_ID is required")
	}
	switch c.Realtime.Transport {
	case "redis", "kafka":
	default:
		return nil, fmt.Errorf("unsupported realtime transport %q", c.Realtime.Transport)
	}
	return c, nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("dbname=%s user=%s password=%s host=%s port=%d sslmode=%s",
		c.Postgres.Name, c.Postgres.User, c.Postgres.Pass, c.Postgres.Host, c.Postgres.Port, c.Postgres.SslMode,
	)
}

func (c *Config) KafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.Kafka.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
