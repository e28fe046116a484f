package main

import (
	"log"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pubcash-backend/pkg/config"
	"pubcash-backend/pkg/db"
	"pubcash-backend/pkg/logger"
	"pubcash-backend/services/account"
	"pubcash-backend/services/pack"
)

// Seeds the rate card and the initial administrator account.
func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		fx.Provide(provideSnowflakeNode),
		fx.Invoke(seed),
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func seed(gdb *gorm.DB, node *snowflake.Node, shutdowner fx.Shutdowner) error {
	if err := gdb.AutoMigrate(&pack.Pack{}, &account.Admin{}); err != nil {
		return err
	}

	packs := []pack.Pack{
		{Name: "short", MinDurationSec: 0, MaxDurationSec: 30, RewardPerView: 25},
		{Name: "standard", MinDurationSec: 31, MaxDurationSec: 60, RewardPerView: 50},
		{Name: "extended", MinDurationSec: 61, MaxDurationSec: 180, RewardPerView: 100},
	}
	for i := range packs {
		packs[i].ID = node.Generate().String()
		packs[i].CreatedAt = time.Now()
	}
	if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&packs).Error; err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := account.Admin{
		ID:           node.Generate().String(),
		Name:         "Administrator",
		Email:        "admin@pubcash.local",
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&admin).Error; err != nil {
		return err
	}

	return shutdowner.Shutdown()
}
