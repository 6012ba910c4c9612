package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Config struct {
	AppEnv   string     `env:"APP_ENV" validate:"oneof=dev prod"`
	LogLevel slog.Level `env:"LOG_LEVEL"`
	HTTPAddr string     `env:"HTTP_ADDR" validate:"required"`

	MQTTBroker   string `env:"MQTT_BROKER" validate:"required,hostname_rfc1123|ip"`
	MQTTPort     int    `env:"MQTT_PORT" validate:"min=1,max=65535"`
	MQTTTopic    string `env:"MQTT_TOPIC" validate:"required"`
	MQTTClientID string `env:"MQTT_CLIENT_ID" validate:"required"`

	// SnapshotInterval is the number of appended readings between two
	// persist-and-report cycles.
	SnapshotInterval int `env:"SNAPSHOT_INTERVAL" validate:"gt=0"`
	// ReportInterval enables an additional time-based report; zero disables it.
	ReportInterval time.Duration `env:"REPORT_INTERVAL" validate:"gte=0"`

	PersistenceBackend string `env:"PERSISTENCE_BACKEND" validate:"oneof=file sqlite"`
	DataFile           string `env:"DATA_FILE" validate:"required_if=PersistenceBackend file"`
	SQLitePath         string `env:"SQLITE_PATH" validate:"required_if=PersistenceBackend sqlite"`
	SQLiteLogQueries   bool   `env:"SQLITE_LOG_QUERIES"`

	Station StationConfig
}

// StationConfig drives the simulated station publisher.
type StationConfig struct {
	ID              string        `env:"STATION_ID" validate:"required"`
	PublishInterval time.Duration `env:"PUBLISH_INTERVAL" validate:"gt=0"`
	FaultRate       float64       `env:"FAULT_RATE" validate:"gte=0,lte=1"`
}

// LoadDotEnv loads variables from the given files (".env" when none) without
// overriding the process environment. Missing files are ignored.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// LoadFromEnv reads the configuration from the environment. clientPrefix is
// used to build a unique MQTT client id when MQTT_CLIENT_ID is unset.
func LoadFromEnv(clientPrefix string) (Config, error) {
	appEnv := getenv("APP_ENV", "dev")

	level, err := parseLogLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	mqttPortStr := getenv("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := getenv("MQTT_CLIENT_ID", "")
	if mqttClientID == "" {
		mqttClientID = clientPrefix + "-" + uuid.NewString()[:8]
	}

	intervalStr := getenv("SNAPSHOT_INTERVAL", "10")
	snapshotInterval, err := strconv.Atoi(intervalStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SNAPSHOT_INTERVAL %q: %w", intervalStr, err)
	}

	reportInterval, err := parseDuration("REPORT_INTERVAL", "0s")
	if err != nil {
		return Config{}, err
	}

	logQueriesStr := getenv("SQLITE_LOG_QUERIES", "false")
	logQueries, err := strconv.ParseBool(logQueriesStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SQLITE_LOG_QUERIES %q: %w", logQueriesStr, err)
	}

	publishInterval, err := parseDuration("PUBLISH_INTERVAL", "5s")
	if err != nil {
		return Config{}, err
	}

	faultRateStr := getenv("FAULT_RATE", "0.05")
	faultRate, err := strconv.ParseFloat(faultRateStr, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid FAULT_RATE %q: %w", faultRateStr, err)
	}

	cfg := Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		MQTTBroker:         getenv("MQTT_BROKER", "localhost"),
		MQTTPort:           mqttPort,
		MQTTTopic:          getenv("MQTT_TOPIC", "weather"),
		MQTTClientID:       mqttClientID,
		SnapshotInterval:   snapshotInterval,
		ReportInterval:     reportInterval,
		PersistenceBackend: strings.ToLower(getenv("PERSISTENCE_BACKEND", BackendFile)),
		DataFile:           getenv("DATA_FILE", "weather_data.json"),
		SQLitePath:         getenv("SQLITE_PATH", "weather_data.db"),
		SQLiteLogQueries:   logQueries,
		Station: StationConfig{
			ID:              getenv("STATION_ID", "WS-01"),
			PublishInterval: publishInterval,
			FaultRate:       faultRate,
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate reports the first invalid setting by its environment variable name.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	fe := verrs[0]
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return fmt.Errorf("invalid %s %v (must satisfy %s)", fe.Field(), fe.Value(), rule)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := getenv(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
