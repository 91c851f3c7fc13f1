package database

import (
	"errors"
	"fmt"
	"log/slog"

	"workday/config"
	"workday/internal/domain"
	"workday/internal/models"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error), // Only log errors, not every SQL query
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models. The unique index on
// attendance_records(user_id, date) is what keeps one row per user per day.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.AttendanceRecord{},
	)
}

// SeedAdmin creates the first company and its admin account when the
// users table is empty.
func SeedAdmin(db *gorm.DB, cfg *config.DatabaseConfig, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if cfg.SeedAdminEmail == "" || cfg.SeedAdminPass == "" {
		return errors.New("seed admin email and password are required on an empty database")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.SeedAdminPass), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		company := &models.Company{Name: cfg.SeedCompany}
		if err := tx.Create(company).Error; err != nil {
			return err
		}
		admin := &models.User{
			CompanyID:    company.ID,
			Email:        cfg.SeedAdminEmail,
			FullName:     "Administrator",
			PasswordHash: string(hash),
			Role:         domain.RoleAdmin,
		}
		if err := tx.Create(admin).Error; err != nil {
			return err
		}
		log.Info("seeded admin account", "email", admin.Email, "company_id", company.ID)
		return nil
	})
}
