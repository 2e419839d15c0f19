// Command devapi runs the development blog backend.
package main

import (
	"context"
	"log"
	"time"

	"blogdesk/devapi"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("devapi_listen", ":8080")
	v.SetDefault("devapi_db", "./devapi.db")
	v.SetDefault("devapi_uploads", "./uploads")
	v.SetDefault("jwt_secret", "unsecure")
	v.SetDefault("token_ttl", 30*time.Minute)
	v.SetDefault("admin_email", "admin@example.com")
	v.SetDefault("admin_pass", "Admin123")

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	store, err := devapi.OpenStore(v.GetString("devapi_db"))
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer store.Close()

	srv, err := devapi.New(context.Background(), store, devapi.Config{
		UploadsDir:    v.GetString("devapi_uploads"),
		Secret:        v.GetString("jwt_secret"),
		TokenTTL:      v.GetDuration("token_ttl"),
		AdminEmail:    v.GetString("admin_email"),
		AdminPassword: v.GetString("admin_pass"),
	}, logger)
	if err != nil {
		logger.Fatal("starting devapi", zap.Error(err))
	}

	addr := v.GetString("devapi_listen")
	logger.Info("devapi listening", zap.String("addr", addr))
	logger.Fatal("devapi stopped", zap.Error(srv.Routes().Start(addr)))
}
