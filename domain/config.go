package domain

import "time"

const (
	DevEnv = "dev"
	ProEnv = "pro"
)

type Config struct {
	Environment   string
	ListenAddress string
	WhitelistHost string
	APIURL        string
	APITimeout    time.Duration
	TemplatesDir  string
	AssetsDir     string
}

func (c Config) IsDev() bool {
	return c.Environment == DevEnv
}
