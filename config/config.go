// config/config.go
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port            string `mapstructure:"port"`
	MaxUploadSizeMB int64  `mapstructure:"maxUploadSizeMB"`
}

type SubmitConfig struct {
	// TimeoutSeconds bounds the outbound report POST. The form contract
	// fixes the default at 60 seconds.
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type CORSConfig struct {
	// AllowedOrigins is a comma-separated list; empty means allow all.
	AllowedOrigins string `mapstructure:"allowedOrigins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Submit SubmitConfig `mapstructure:"submit"`
	CORS   CORSConfig   `mapstructure:"cors"`
	Log    LogConfig    `mapstructure:"log"`
}

// Origins returns the parsed allowed-origins list, empty for allow-all.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, part := range strings.Split(c.AllowedOrigins, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadConfig reads configuration from an optional config.yaml in path, with
// environment variables taking precedence. A missing file is not an error.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.maxUploadSizeMB", 32)
	viper.SetDefault("submit.timeoutSeconds", 60)
	viper.SetDefault("cors.allowedOrigins", "")
	viper.SetDefault("log.level", "info")

	viper.AutomaticEnv()
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.maxUploadSizeMB", "MAX_UPLOAD_SIZE_MB")
	viper.BindEnv("submit.timeoutSeconds", "SUBMIT_TIMEOUT_SECONDS")
	viper.BindEnv("cors.allowedOrigins", "CORS_ALLOWED_ORIGINS")
	viper.BindEnv("log.level", "LOG_LEVEL")

	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if config.Submit.TimeoutSeconds <= 0 {
		err = fmt.Errorf("submit.timeoutSeconds must be positive, got %d", config.Submit.TimeoutSeconds)
	}
	return
}
