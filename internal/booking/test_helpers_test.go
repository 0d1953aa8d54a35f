package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/lakesideclinic/bookings/internal/audit"
	"github.com/lakesideclinic/bookings/internal/users"
	"gorm.io/gorm"
)

const testClockSeconds = 1700000600

func int64Ptr(value int64) *int64 {
	return &value
}

func float64Ptr(value float64) *float64 {
	return &value
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:booking_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Appointment{}, &audit.Log{}, &audit.Notification{}, &users.UserMeta{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, recorder EventRecorder) *Service {
	t.Helper()

	directory, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct users service: %v", err)
	}

	if recorder == nil {
		recorder = newTestRecorder(t, db)
	}

	service, err := NewService(ServiceConfig{
		Database:  db,
		Clock:     func() time.Time { return time.Unix(testClockSeconds, 0).UTC() },
		Directory: directory,
		Recorder:  recorder,
		Logger:    nil,
	})
	if err != nil {
		t.Fatalf("failed to construct booking service: %v", err)
	}
	return service
}

func newTestRecorder(t *testing.T, db *gorm.DB) *audit.Recorder {
	t.Helper()

	recorder, err := audit.NewRecorder(audit.RecorderConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(testClockSeconds, 0).UTC() },
		IDProvider: audit.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct audit recorder: %v", err)
	}
	return recorder
}

type failingRecorder struct{}

func (failingRecorder) RecordBooking(context.Context, audit.BookingEvent) error {
	return errors.New("audit store unavailable")
}

func mustCreate(t *testing.T, service *Service, req CreateRequest) *Appointment {
	t.Helper()
	appointment, err := service.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	return appointment
}

func seedPhone(t *testing.T, db *gorm.DB, userID int64, phone string) {
	t.Helper()
	meta := users.UserMeta{UserID: userID, MetaKey: "mobile", MetaValue: phone}
	if err := db.Create(&meta).Error; err != nil {
		t.Fatalf("failed to seed user metadata: %v", err)
	}
}
