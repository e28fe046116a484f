package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"pubcash-backend/pkg/config"
	"pubcash-backend/pkg/db"
	"pubcash-backend/pkg/logger"
	"pubcash-backend/pkg/mail"
	"pubcash-backend/pkg/redis"
	"pubcash-backend/pkg/task"
	"pubcash-backend/services/notification"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		mail.Module,
		task.Server,
		notification.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
