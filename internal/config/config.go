package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Announce       bool     `yaml:"announce"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// Download naming schemes for transcript artifacts.
const (
	NamingTimestamp = "timestamp"
	NamingFixed     = "fixed"
)

type SessionConfig struct {
	Language             string   `yaml:"language"`
	Languages            []string `yaml:"languages"`
	NoiseAdjust          bool     `yaml:"noise_adjust"`
	ListenTimeoutSeconds int      `yaml:"listen_timeout_seconds"`
	AllowedExtensions    []string `yaml:"allowed_extensions"`
	DownloadNaming       string   `yaml:"download_naming"`
	CalibrationMS        int      `yaml:"calibration_ms"`
	MaxUploadBytes       int64    `yaml:"max_upload_bytes"`
}

type CaptureConfig struct {
	Mode            string `yaml:"mode"` // mock, exec
	Command         string `yaml:"command"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	FrameDurationMS int    `yaml:"frame_duration_ms"`
}

type RecognizerConfig struct {
	Mode                  string `yaml:"mode"` // mock, google, exec
	Endpoint              string `yaml:"endpoint"`
	APIKey                string `yaml:"api_key"`
	Command               string `yaml:"command"`
	ModelPath             string `yaml:"model_path"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	MockText              string `yaml:"mock_text"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Session     SessionConfig    `yaml:"session"`
	Capture     CaptureConfig    `yaml:"capture"`
	Recognizer  RecognizerConfig `yaml:"recognizer"`
}

func Default() Config {
	return Config{
		RuntimeName: "scribed",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Announce:       false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Session: SessionConfig{
			Language:             "en-US",
			Languages:            []string{"en-US", "en-GB", "es-ES", "fr-FR", "de-DE", "it-IT", "hi-IN"},
			NoiseAdjust:          true,
			ListenTimeoutSeconds: 5,
			AllowedExtensions:    []string{"wav", "mp3", "m4a", "flac", "ogg"},
			DownloadNaming:       NamingTimestamp,
			CalibrationMS:        500,
			MaxUploadBytes:       10 << 20,
		},
		Capture: CaptureConfig{
			Mode:            "mock",
			SampleRate:      16000,
			Channels:        1,
			FrameDurationMS: 20,
		},
		Recognizer: RecognizerConfig{
			Mode:                  "mock",
			Endpoint:              "http://www.google.com/speech-api/v2/recognize",
			RequestTimeoutSeconds: 30,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "SCRIBED_RUNTIME_NAME")
	overrideString(&cfg.Environment, "SCRIBED_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SCRIBED_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SCRIBED_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SCRIBED_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SCRIBED_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SCRIBED_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "SCRIBED_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Announce, "SCRIBED_BUS_ANNOUNCE")
	overrideBool(&cfg.Bus.Embedded, "SCRIBED_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SCRIBED_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "SCRIBED_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SCRIBED_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SCRIBED_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SCRIBED_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SCRIBED_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SCRIBED_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Session.Language, "SCRIBED_SESSION_LANGUAGE")
	overrideStringSlice(&cfg.Session.Languages, "SCRIBED_SESSION_LANGUAGES")
	overrideBool(&cfg.Session.NoiseAdjust, "SCRIBED_SESSION_NOISE_ADJUST")
	overrideInt(&cfg.Session.ListenTimeoutSeconds, "SCRIBED_SESSION_LISTEN_TIMEOUT_SECONDS")
	overrideStringSlice(&cfg.Session.AllowedExtensions, "SCRIBED_SESSION_ALLOWED_EXTENSIONS")
	overrideString(&cfg.Session.DownloadNaming, "SCRIBED_SESSION_DOWNLOAD_NAMING")
	overrideInt(&cfg.Session.CalibrationMS, "SCRIBED_SESSION_CALIBRATION_MS")
	overrideInt64(&cfg.Session.MaxUploadBytes, "SCRIBED_SESSION_MAX_UPLOAD_BYTES")
	overrideString(&cfg.Capture.Mode, "SCRIBED_CAPTURE_MODE")
	overrideString(&cfg.Capture.Command, "SCRIBED_CAPTURE_COMMAND")
	overrideInt(&cfg.Capture.SampleRate, "SCRIBED_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "SCRIBED_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.FrameDurationMS, "SCRIBED_CAPTURE_FRAME_DURATION_MS")
	overrideString(&cfg.Recognizer.Mode, "SCRIBED_RECOGNIZER_MODE")
	overrideString(&cfg.Recognizer.Endpoint, "SCRIBED_RECOGNIZER_ENDPOINT")
	overrideString(&cfg.Recognizer.APIKey, "SCRIBED_RECOGNIZER_API_KEY")
	overrideString(&cfg.Recognizer.Command, "SCRIBED_RECOGNIZER_COMMAND")
	overrideString(&cfg.Recognizer.ModelPath, "SCRIBED_RECOGNIZER_MODEL_PATH")
	overrideInt(&cfg.Recognizer.RequestTimeoutSeconds, "SCRIBED_RECOGNIZER_REQUEST_TIMEOUT_SECONDS")
	overrideString(&cfg.Recognizer.MockText, "SCRIBED_RECOGNIZER_MOCK_TEXT")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Announce {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if len(cfg.Session.Languages) == 0 {
		return errors.New("session.languages must not be empty")
	}
	if !containsFold(cfg.Session.Languages, cfg.Session.Language) {
		return fmt.Errorf("session.language %q is not in session.languages", cfg.Session.Language)
	}
	if cfg.Session.ListenTimeoutSeconds < 1 || cfg.Session.ListenTimeoutSeconds > 10 {
		return errors.New("session.listen_timeout_seconds must be between 1 and 10")
	}
	if len(cfg.Session.AllowedExtensions) == 0 {
		return errors.New("session.allowed_extensions must not be empty")
	}
	switch cfg.Session.DownloadNaming {
	case NamingTimestamp, NamingFixed:
	default:
		return errors.New("session.download_naming must be one of timestamp|fixed")
	}
	if cfg.Session.CalibrationMS <= 0 {
		return errors.New("session.calibration_ms must be positive")
	}
	if cfg.Session.MaxUploadBytes <= 0 {
		return errors.New("session.max_upload_bytes must be positive")
	}
	switch cfg.Capture.Mode {
	case "mock", "exec":
	default:
		return errors.New("capture.mode must be one of mock|exec")
	}
	if cfg.Capture.Mode == "exec" && cfg.Capture.Command == "" {
		return errors.New("capture.command must be set when mode=exec")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.Channels <= 0 {
		return errors.New("capture.channels must be positive")
	}
	if cfg.Capture.FrameDurationMS <= 0 {
		return errors.New("capture.frame_duration_ms must be positive")
	}
	switch cfg.Recognizer.Mode {
	case "mock", "google", "exec":
	default:
		return errors.New("recognizer.mode must be one of mock|google|exec")
	}
	if cfg.Recognizer.Mode == "google" && cfg.Recognizer.Endpoint == "" {
		return errors.New("recognizer.endpoint must be set when mode=google")
	}
	if cfg.Recognizer.Mode == "exec" && cfg.Recognizer.Command == "" {
		return errors.New("recognizer.command must be set when mode=exec")
	}
	if cfg.Recognizer.RequestTimeoutSeconds <= 0 {
		return errors.New("recognizer.request_timeout_seconds must be positive")
	}
	return nil
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
