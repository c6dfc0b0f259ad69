package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Path string
	}
	Server struct {
		Port      int
		JWTSecret string
	}
	Engine struct {
		ScheduleCadence     string        // cron spec for the schedule pipeline
		AlertCadence        string        // cron spec for the alert runner
		CollaboratorTimeout time.Duration // bound on any build/deliver/fetch call
	}
	Email struct {
		SMTPHost string
		SMTPPort int
		From     string
		Password string
	}
	Slack struct {
		Token   string
		Channel string
	}
}

// Load reads config.yaml from the working directory, falling back to
// defaults for anything missing.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("database.path", "data/adwatch.db")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.jwtsecret", "change-me")
	viper.SetDefault("engine.schedulecadence", "@every 5m")
	viper.SetDefault("engine.alertcadence", "@every 15m")
	viper.SetDefault("engine.collaboratortimeout", "30s")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}
