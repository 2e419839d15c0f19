package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"blogdesk/domain"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// loadConfig merges .env, an optional app.yaml and the process environment.
func loadConfig() (domain.Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file loaded")
	}

	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigType("yaml")
	v.SetConfigName("app")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", domain.ProEnv)
	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("api_timeout", 10*time.Second)
	v.SetDefault("templates_dir", "templates")
	v.SetDefault("assets_dir", "assets")
	v.SetDefault("address_listen", "")
	v.SetDefault("whitelist_host", "")

	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return domain.Config{}, fmt.Errorf("reading app.yaml: %w", err)
	}

	cfg := domain.Config{
		Environment:   v.GetString("env"),
		ListenAddress: v.GetString("address_listen"),
		WhitelistHost: v.GetString("whitelist_host"),
		APIURL:        v.GetString("api_url"),
		APITimeout:    v.GetDuration("api_timeout"),
		TemplatesDir:  v.GetString("templates_dir"),
		AssetsDir:     v.GetString("assets_dir"),
	}
	if cfg.Environment != domain.DevEnv && cfg.Environment != domain.ProEnv {
		return domain.Config{}, fmt.Errorf("unknown environment %q", cfg.Environment)
	}
	if cfg.IsDev() && cfg.ListenAddress == "" {
		cfg.ListenAddress = ":3000"
	}
	return cfg, nil
}
