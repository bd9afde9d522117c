package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataDir      string
	DBPath       string
	ImageDir     string
	HomeCurrency string

	// Query
	ListLimit int

	// AMQP; an empty URL disables the ingest queue and event publishing
	AMQPURL         string
	AMQPExchange    string
	AMQPIngestQueue string
	AMQPEventsQueue string
}

func Load() *Config {
	dataDir := getEnv("RECEIPTS_DATA_DIR", "./data")

	cfg := &Config{
		Port: getEnv("PORT", "8082"),

		DataDir:      dataDir,
		DBPath:       getEnv("RECEIPTS_DB_PATH", filepath.Join(dataDir, "receipts.db")),
		ImageDir:     getEnv("RECEIPTS_IMAGE_DIR", filepath.Join(dataDir, "images")),
		HomeCurrency: strings.ToUpper(getEnv("RECEIPTS_HOME_CURRENCY", "CAD")),

		ListLimit: getEnvInt("RECEIPTS_LIST_LIMIT", 200),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "receipts"),
		AMQPIngestQueue: getEnv("AMQP_INGEST_QUEUE", "receipt_ingest"),
		AMQPEventsQueue: getEnv("AMQP_EVENTS_QUEUE", "receipt_events"),
	}

	return cfg
}

// EventsEnabled reports whether an AMQP broker is configured.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	} else {
		dir := filepath.Dir(c.DBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.ImageDir == "" {
		errors = append(errors, "image directory cannot be empty")
	}

	if len(c.HomeCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid home currency '%s': must be a 3-letter code", c.HomeCurrency))
	}

	if c.ListLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid list limit %d: must be at least 1", c.ListLimit))
	} else if c.ListLimit > 10000 {
		errors = append(errors, fmt.Sprintf("invalid list limit %d: must be at most 10000", c.ListLimit))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPIngestQueue == "" {
			errors = append(errors, "AMQP ingest queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPEventsQueue == "" {
			errors = append(errors, "AMQP events queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
