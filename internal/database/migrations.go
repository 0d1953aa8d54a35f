package database

import (
	"errors"
	"time"

	"github.com/lakesideclinic/bookings/internal/booking"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationDeactivateInvalidWindows = "2026-07-28_deactivate_invalid_windows"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationDeactivateInvalidWindows, apply: deactivateInvalidWindows},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// deactivateInvalidWindows retires legacy rows imported with inverted or
// empty time windows; they can never be booked against and confused the
// overlap check on the old system.
func deactivateInvalidWindows(db *gorm.DB) error {
	return db.Model(&booking.Appointment{}).
		Where("start_ts >= end_ts").
		Where("active = ?", true).
		Update("active", false).Error
}
