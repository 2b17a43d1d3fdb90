package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Listing  ListingConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type EmailConfig struct {
	// Provider is the HTTP delivery API; when APIKey is empty the SMTP
	// fallback is used instead (no webhook tracking in that case).
	Provider ProviderConfig `mapstructure:"provider"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	From     string         `mapstructure:"from"`

	// WebhookSecret signs provider callbacks. Empty means webhook ingestion
	// is refused: the endpoint fails closed rather than accepting
	// unverified events.
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type ProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ListingConfig struct {
	// CityName renders the city-wide location sentinel in broadcast titles.
	CityName        string `mapstructure:"city_name"`
	DefaultPageSize int    `mapstructure:"default_page_size"`
	MaxPageSize     int    `mapstructure:"max_page_size"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Listing.DefaultPageSize == 0 {
		config.Listing.DefaultPageSize = 20
	}
	if config.Listing.MaxPageSize == 0 {
		config.Listing.MaxPageSize = 100
	}

	return &config, nil
}
