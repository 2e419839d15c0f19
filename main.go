package main

import (
	"log"

	"blogdesk/gateway"
	"blogdesk/handler"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.IsDev())
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	api, err := gateway.New(cfg.APIURL, cfg.APITimeout, logger)
	if err != nil {
		logger.Fatal("invalid backend url", zap.Error(err))
	}
	templates, err := handler.NewTemplateRegistry(cfg.TemplatesDir)
	if err != nil {
		logger.Fatal("loading templates", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.Renderer = templates

	h := handler.Handler{
		API:           api,
		Logger:        logger,
		SecureCookies: !cfg.IsDev(),
	}
	h.Register(e)
	e.Static("/static", cfg.AssetsDir)

	logger.Info("starting frontend",
		zap.String("env", cfg.Environment),
		zap.String("api", cfg.APIURL),
	)
	if cfg.ListenAddress != "" {
		logger.Fatal("server stopped", zap.Error(e.Start(cfg.ListenAddress)))
	}

	// Cache certificates to avoid issues with rate limits (https://letsencrypt.org/docs/rate-limits)
	e.AutoTLSManager.Cache = autocert.DirCache("/var/www/.cache")
	if cfg.WhitelistHost != "" {
		e.AutoTLSManager.HostPolicy = autocert.HostWhitelist(cfg.WhitelistHost)
	}
	e.Pre(middleware.HTTPSRedirect())
	logger.Fatal("server stopped", zap.Error(e.StartAutoTLS(":443")))
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
