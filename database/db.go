// Package database owns the shared gorm connection: opening it for the
// configured driver, migrating the schema and seeding the first admin.
package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/medreport/medreport/config"
	"github.com/medreport/medreport/database/model"
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/util/common"
	"github.com/medreport/medreport/util/crypto"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	db       *gorm.DB
	dbConfig *config.DatabaseConfig
)

func initModels() error {
	models := []any{
		&model.User{},
		&model.TestInfo{},
		&model.AuditLog{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			logger.Errorf("Error auto migrating model %T: %v", m, err)
			return err
		}
	}
	return nil
}

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Type {
	case config.DatabaseTypeSQLite:
		if err := cfg.EnsureDirectoryExists(); err != nil {
			return nil, err
		}
		return sqlite.Open(cfg.GetDSN()), nil
	case config.DatabaseTypePostgreSQL:
		return postgres.Open(cfg.GetDSN()), nil
	case config.DatabaseTypeMySQL:
		return mysql.Open(cfg.GetDSN()), nil
	}
	return nil, common.NewErrorf("unsupported database type: %s", cfg.Type)
}

// InitDB opens the database described by cfg and migrates the schema.
func InitDB(cfg *config.DatabaseConfig) error {
	if err := cfg.ValidateConfig(); err != nil {
		return err
	}
	dial, err := dialector(cfg)
	if err != nil {
		return err
	}

	var gormLogger gormlogger.Interface
	if config.IsDebug() {
		gormLogger = gormlogger.Default
	} else {
		gormLogger = gormlogger.Discard
	}

	c := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	conn, err := gorm.Open(dial, c)
	if err != nil {
		return fmt.Errorf("open %s database: %w", cfg.Type, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if cfg.IsSQLite() {
		// one writer at a time; WAL readers share the same connection
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.MaxConns)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	db = conn
	dbConfig = cfg
	return initModels()
}

// EnsureAdmin creates the seed admin when credentials are configured and no
// admin account exists yet.
func EnsureAdmin(seed config.AdminSeed) error {
	if seed.Email == "" || seed.Password == "" {
		return nil
	}
	var count int64
	if err := db.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return CreateAdmin(seed)
}

// CreateAdmin inserts an admin account with the given credentials.
func CreateAdmin(seed config.AdminSeed) error {
	hash, err := crypto.HashPasswordAsBcrypt(seed.Password)
	if err != nil {
		return err
	}
	name := seed.Name
	if name == "" {
		name = "Administrator"
	}
	admin := &model.User{
		Name:     name,
		Email:    seed.Email,
		Password: hash,
		Role:     model.RoleAdmin,
	}
	if err := db.Create(admin).Error; err != nil {
		return fmt.Errorf("create admin %s: %w", seed.Email, err)
	}
	logger.Infof("Seeded admin account %s", seed.Email)
	return nil
}

func CloseDB() error {
	if db == nil {
		return nil
	}
	if dbConfig != nil && dbConfig.IsSQLite() {
		if err := Checkpoint(); err != nil {
			logger.Warning("error executing checkpoint:", err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	err = sqlDB.Close()
	db = nil
	return err
}

func GetDB() *gorm.DB {
	return db
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func Checkpoint() error {
	// Update WAL
	return db.Exec("PRAGMA wal_checkpoint;").Error
}
