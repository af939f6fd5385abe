package config // package config loads application configuration from environment variables

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	DBMigrate      bool   // apply the embedded schema on startup
	JWTSecret      string // secret used to verify identity tokens
	TriggerToken   string // shared secret for the internal lifecycle trigger
	RabbitURL      string // broker URL for violation notices (empty disables publishing)
	NotifyConsumer bool   // run the in-process notification consumer
	Log            LogConfig
}

// LogConfig selects the log encoder and level.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// Load reads an optional .env file and then the environment.  Missing
// required variables are reported together in one error.
func Load() (Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         must("DB_NAME"),
		DBMigrate:      envBool("DB_MIGRATE", false),
		JWTSecret:      must("JWT_SECRET"),
		TriggerToken:   os.Getenv("INTERNAL_TRIGGER_TOKEN"),
		RabbitURL:      rabbitURL(),
		NotifyConsumer: envBool("NOTIFY_CONSUMER_ENABLED", true),
		Log: LogConfig{
			Level:  envStr("LOG_LEVEL", "info"),
			Format: envStr("LOG_FORMAT", "json"),
		},
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %v", missing)
	}
	return cfg, nil
}

// rabbitURL honours RABBITMQ_URL and the older AMQP_URL name.
func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}
