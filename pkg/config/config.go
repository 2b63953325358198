package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenAI     ProviderConfig   `mapstructure:"openai"`
	OpenRouter ProviderConfig   `mapstructure:"openrouter"`
	Generation GenerationConfig `mapstructure:"generation"`
	Client     ClientConfig     `mapstructure:"client"`
	Observer   ObserverConfig   `mapstructure:"observer"`
}

type ServerConfig struct {
	Addr          string        `mapstructure:"addr"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
	AuditTimeout  time.Duration `mapstructure:"audit_timeout"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Referrer string `mapstructure:"referrer"`
	Title    string `mapstructure:"title"`
}

type GenerationConfig struct {
	DefaultModel string  `mapstructure:"default_model"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	Temperature  float64 `mapstructure:"temperature"`
}

// ClientConfig configures the client side: where the relay sends requests
// and where the preference store lives.
type ClientConfig struct {
	EndpointURL    string        `mapstructure:"endpoint_url"`
	AnonKey        string        `mapstructure:"anon_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	StorePath      string        `mapstructure:"store_path"`
	PollAttempts   int           `mapstructure:"poll_attempts"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	StatusTTL      time.Duration `mapstructure:"status_ttl"`
}

type ObserverConfig struct {
	Schedule           string   `mapstructure:"schedule"`
	ContainerSelectors []string `mapstructure:"container_selectors"`
	ContentSelectors   []string `mapstructure:"content_selectors"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.lookup_timeout", 2*time.Second)
	v.SetDefault("server.audit_timeout", 3*time.Second)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "commentgen")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)

	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.title", "AI Comment Generator")

	v.SetDefault("generation.default_model", "gpt-4o-mini")
	v.SetDefault("generation.max_tokens", 150)
	v.SetDefault("generation.temperature", 0.7)

	v.SetDefault("client.endpoint_url", "http://localhost:8080/generate-comment")
	v.SetDefault("client.request_timeout", 30*time.Second)
	v.SetDefault("client.store_path", "commentgen.db")
	v.SetDefault("client.poll_attempts", 10)
	v.SetDefault("client.poll_interval", 100*time.Millisecond)
	v.SetDefault("client.status_ttl", 3*time.Second)

	v.SetDefault("observer.schedule", "@every 2s")
}

// LoadConfig reads path when it is non-empty and present, then applies
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if apiKey := v.GetString("OPENROUTER_API_KEY"); apiKey != "" {
		config.OpenRouter.APIKey = apiKey
	}
	if key := v.GetString("COMMENTGEN_ANON_KEY"); key != "" {
		config.Client.AnonKey = key
	}
	if endpoint := v.GetString("COMMENTGEN_ENDPOINT_URL"); endpoint != "" {
		config.Client.EndpointURL = endpoint
	}

	return &config, nil
}
