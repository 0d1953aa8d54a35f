package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// IDProvider issues identifiers for audit and notification rows.
type IDProvider interface {
	NewID() (string, error)
}

// BookingEvent captures everything the recorder needs to write one Log row
// and one Notification row for a booking lifecycle change.
type BookingEvent struct {
	// LogMessage is the audit log kind, e.g. "appointment_canceled_by_phone".
	LogMessage string
	// NotificationType is the fan-out kind, which may differ from the log
	// kind (phone cancellations log the phone variant but notify as a plain
	// cancellation).
	NotificationType string
	AppointmentID    int64
	ClinicianID      int64
	PatientID        int64
	// SubjectUserID is the uid recorded on the log row.
	SubjectUserID       int64
	LogPayload          map[string]any
	NotificationPayload map[string]any
}

// RecorderConfig describes the dependencies of the audit recorder.
type RecorderConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
}

// Recorder writes audit log and notification rows. Callers treat failures as
// advisory; the recorder itself never retries or reads back.
type Recorder struct {
	db    *gorm.DB
	clock func() time.Time
	ids   IDProvider
}

// NewRecorder constructs a Recorder.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{db: cfg.Database, clock: clock, ids: cfg.IDProvider}, nil
}

// RecordBooking writes the Log and Notification rows for a booking event.
// Recipient roles are fixed to doctor and patient; the read-by list starts
// empty.
func (r *Recorder) RecordBooking(ctx context.Context, event BookingEvent) error {
	now := r.clock().UTC().Unix()

	logID, err := r.ids.NewID()
	if err != nil {
		return fmt.Errorf("audit: generate log id: %w", err)
	}
	logPayload, err := marshalPayload(event.LogPayload)
	if err != nil {
		return fmt.Errorf("audit: encode log payload: %w", err)
	}
	logRow := Log{
		LogID:            logID,
		Message:          event.LogMessage,
		UserID:           event.SubjectUserID,
		PayloadJSON:      logPayload,
		CreatedAtSeconds: now,
	}
	if err := r.db.WithContext(ctx).Create(&logRow).Error; err != nil {
		return fmt.Errorf("audit: insert log: %w", err)
	}

	notificationID, err := r.ids.NewID()
	if err != nil {
		return fmt.Errorf("audit: generate notification id: %w", err)
	}
	notificationPayload, err := marshalPayload(event.NotificationPayload)
	if err != nil {
		return fmt.Errorf("audit: encode notification payload: %w", err)
	}
	roles, err := json.Marshal([]string{RoleDoctor, RolePatient})
	if err != nil {
		return fmt.Errorf("audit: encode recipient roles: %w", err)
	}
	recipientIDs, err := json.Marshal([]int64{event.ClinicianID, event.PatientID})
	if err != nil {
		return fmt.Errorf("audit: encode recipient ids: %w", err)
	}
	notificationRow := Notification{
		NotificationID:    notificationID,
		ItemID:            event.AppointmentID,
		Type:              event.NotificationType,
		NotifiedAtSeconds: now,
		AvailableTo:       string(roles),
		AvailableToIDs:    string(recipientIDs),
		ReadBy:            "[]",
		PayloadJSON:       notificationPayload,
	}
	if err := r.db.WithContext(ctx).Create(&notificationRow).Error; err != nil {
		return fmt.Errorf("audit: insert notification: %w", err)
	}

	return nil
}

func marshalPayload(payload map[string]any) (string, error) {
	if payload == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
