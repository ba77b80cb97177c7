package config

import (
	"time"

	"github.com/Skotchmaster/ebee_shop/pkg/config"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	JWTSecret   []byte
	AuthHTTPURL string

	KafkaBrokers []string

	RedisAddr     string
	RedisPassword string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	MailProvider        string
	MailFrom            string
	PostmarkServerToken string
	SendgridAPIKey      string

	EffectTimeout  time.Duration
	EffectAttempts int

	CSRFEnabled bool
}

func Load() Config {
	return Config{
		ServiceName: config.EnvDefault("SERVICE_NAME", "ebee-shop"),
		ServerPort:  config.EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    config.EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    config.EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: config.EnvDefault("DATABASE_URL", ""),

		JWTSecret:   []byte(config.EnvDefault("JWT_SECRET", "")),
		AuthHTTPURL: config.EnvDefault("AUTH_URL", ""),

		KafkaBrokers: config.CSV(config.EnvDefault("KAFKA_BROKERS", "")),

		RedisAddr:     config.EnvDefault("REDIS_ADDR", ""),
		RedisPassword: config.EnvDefault("REDIS_PASSWORD", ""),

		ESURL:      config.EnvDefault("ES_URL", ""),
		ESUser:     config.EnvDefault("ES_USER", ""),
		ESPassword: config.EnvDefault("ES_PASSWORD", ""),
		ESIndex:    config.EnvDefault("ES_ORDERS_INDEX", "orders"),

		MailProvider:        config.EnvDefault("MAIL_PROVIDER", "log"),
		MailFrom:            config.EnvDefault("MAIL_FROM", "no-reply@ebee.shop"),
		PostmarkServerToken: config.EnvDefault("POSTMARK_SERVER_TOKEN", ""),
		SendgridAPIKey:      config.EnvDefault("SENDGRID_API_KEY", ""),

		EffectTimeout:  config.EnvDurationDefault("EFFECT_TIMEOUT", 5*time.Second),
		EffectAttempts: config.EnvIntDefault("EFFECT_ATTEMPTS", 2),

		CSRFEnabled: config.EnvBoolDefault("CSRF_ENABLED", false),
	}
}

func (c Config) Validate() error {
	pairs := []string{
		c.DatabaseURL, "DATABASE_URL",
		string(c.JWTSecret), "JWT_SECRET",
	}
	switch c.MailProvider {
	case "postmark":
		pairs = append(pairs, c.PostmarkServerToken, "POSTMARK_SERVER_TOKEN")
	case "sendgrid":
		pairs = append(pairs, c.SendgridAPIKey, "SENDGRID_API_KEY")
	}
	return config.Require(pairs...)
}
