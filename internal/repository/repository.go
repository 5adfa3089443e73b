package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"collectivewatch/internal/model"
	"collectivewatch/pkg/log"

	"github.com/glebarez/sqlite"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Repository struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewRepository(
	logger *log.Logger,
	db *gorm.DB,
) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) DB(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// NewDB journal.enabled 关闭时返回 nil
func NewDB(conf *viper.Viper, l *log.Logger) (*gorm.DB, func(), error) {
	if !conf.GetBool("journal.enabled") {
		return nil, func() {}, nil
	}

	driver := conf.GetString("data.db.driver")
	dsn := conf.GetString("data.db.dsn")
	gormConf := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true, // disables implicit prepared statement usage
		})
	case "sqlite":
		if path, _, _ := strings.Cut(dsn, "?"); path != "" && !strings.HasPrefix(path, "file:") && path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, nil, err
			}
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, nil, fmt.Errorf("unknown db driver %q", driver)
	}

	db, err := gorm.Open(dialector, gormConf)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if conf.GetString("env") != "prod" {
		db = db.Debug()
	}

	// Connection Pool config
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if conf.GetBool("journal.auto_migrate") {
		if err := db.AutoMigrate(&model.ChangeRecord{}); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("migrate change journal: %w", err)
		}
		l.Info("change journal migrated", zap.String("driver", driver))
	}

	cleanup := func() {
		if err := sqlDB.Close(); err != nil {
			l.Error("close db failed", zap.Error(err))
		}
	}
	return db, cleanup, nil
}
