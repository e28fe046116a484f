package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"pubcash-backend/internal/httpapi"
	"pubcash-backend/internal/server"
	"pubcash-backend/pkg/config"
	"pubcash-backend/pkg/db"
	"pubcash-backend/pkg/health"
	"pubcash-backend/pkg/logger"
	"pubcash-backend/pkg/mail"
	"pubcash-backend/pkg/minio"
	"pubcash-backend/pkg/redis"
	"pubcash-backend/pkg/sequence"
	"pubcash-backend/pkg/task"
	"pubcash-backend/services/account"
	"pubcash-backend/services/admin"
	"pubcash-backend/services/auth"
	"pubcash-backend/services/media"
	"pubcash-backend/services/pack"
	"pubcash-backend/services/presence"
	"pubcash-backend/services/promotion"
	"pubcash-backend/services/wallet"
	"pubcash-backend/services/withdrawal"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		sequence.Module,
		minio.Client,
		mail.Module,
		health.Module,
		fx.Provide(provideSnowflakeNode),
		fx.Invoke(migrate, registerDBTelemetry),
		httpapi.Module,
		auth.Module,
		account.Module,
		wallet.Module,
		pack.Module,
		promotion.Module,
		withdrawal.Module,
		admin.Module,
		media.Module,
		presence.Module,
		server.ProvideHTTPServer,
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

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&account.Client{},
		&account.User{},
		&account.Admin{},
		&account.Recharge{},
		&wallet.Wallet{},
		&wallet.Entry{},
		&pack.Pack{},
		&promotion.Promotion{},
		&promotion.Interaction{},
		&promotion.RewardEntry{},
		&promotion.Comment{},
		&withdrawal.Withdrawal{},
	)
}

func registerDBTelemetry(cfg *config.Config, gdb *gorm.DB) error {
	if err := db.Otel(gdb); err != nil {
		return err
	}
	return db.Metric(gdb, cfg.Database.DBNAME)
}
