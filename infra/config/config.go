package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/giovaniif/court-booking/domain/reservation"
)

type App struct {
	ServiceName     string `envconfig:"SERVICE_NAME" default:"court-booking"`
	HTTPAddr        string `envconfig:"HTTP_ADDR" default:":3134"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT_SECONDS" default:"10"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`

	// exact | overlap
	ConflictPolicy string `envconfig:"CONFLICT_POLICY" default:"exact"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"court-reservations"`

	// none | postgres | mongo
	JournalDriver   string `envconfig:"JOURNAL_DRIVER" default:"none"`
	PGDSN           string `envconfig:"PG_DSN"`
	PGJournalTable  string `envconfig:"PG_JOURNAL_TABLE" default:"reservation_journal"`
	MongoURI        string `envconfig:"MONGO_URI"`
	MongoDatabase   string `envconfig:"MONGO_DATABASE" default:"court_booking"`
	MongoCollection string `envconfig:"MONGO_COLLECTION" default:"journal"`

	LokiURL      string `envconfig:"LOKI_URL"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads an optional .env file, then the process environment.
func Load() (App, error) {
	_ = godotenv.Load(".env")
	var c App
	if err := envconfig.Process("", &c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func (c App) Validate() error {
	if _, err := reservation.ParseConflictPolicy(c.ConflictPolicy); err != nil {
		return err
	}
	switch c.JournalDriver {
	case "", "none":
	case "postgres":
		if c.PGDSN == "" {
			return fmt.Errorf("PG_DSN is required when JOURNAL_DRIVER=postgres")
		}
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when JOURNAL_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unknown journal driver %q", c.JournalDriver)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT_SECONDS must be positive")
	}
	return nil
}
