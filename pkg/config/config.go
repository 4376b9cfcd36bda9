package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Upstream  Upstream  `envPrefix:"UPSTREAM_"`
		Demux     Demux     `envPrefix:"DEMUX_"`
	}

	HTTP struct {
		Server Server `envPrefix:"SERVER_"`
	}

	Server struct {
		Port         string        `env:"PORT,required"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level string `env:"LEVEL,required"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-demultiplexer"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	// Upstream holds the settings shared by every http(s) tile source.
	Upstream struct {
		UserAgent  string        `env:"USER_AGENT" envDefault:"GuideHelper/1.0 (https://github.com/jaennil/guide_helper)"`
		Referer    string        `env:"REFERER" envDefault:"https://guidehelper.ru.tuna.am"`
		Timeout    time.Duration `env:"TIMEOUT" envDefault:"30s"`
		MaxRetries uint          `env:"MAX_RETRIES" envDefault:"3"`
	}

	// Demux describes the root tile source. URI is usually a demultiplexer://
	// URI whose sourceN values may reference the named Sources.
	Demux struct {
		URI     string            `env:"URI,required"`
		Sources map[string]string `env:"SOURCES" envSeparator:";" envKeyValSeparator:"="`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
