package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lakesideclinic/bookings/internal/audit"
	"github.com/lakesideclinic/bookings/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase  = errors.New("database handle is required")
	errMissingDirectory = errors.New("phone directory is required")
	noOpLogger          = zap.NewNop()
)

// ServiceError wraps an unexpected infrastructure failure with a dotted
// operation code for logs and diagnostics.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew    = "booking.service.new"
	opCreate        = "booking.create"
	opDelete        = "booking.delete"
	opCancelByPhone = "booking.cancel_by_phone"
	opList          = "booking.list"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// PhoneDirectory resolves phone numbers to patient ids.
type PhoneDirectory interface {
	PatientIDByPhone(ctx context.Context, phone string) (int64, error)
}

// EventRecorder persists audit log and notification rows for booking events.
type EventRecorder interface {
	RecordBooking(ctx context.Context, event audit.BookingEvent) error
}

// ServiceConfig describes the dependencies of the booking service.
type ServiceConfig struct {
	Database  *gorm.DB
	Clock     func() time.Time
	Directory PhoneDirectory
	Recorder  EventRecorder
	Logger    *zap.Logger
}

// Service orchestrates appointment creation, deletion, and cancellation.
type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	directory PhoneDirectory
	recorder  EventRecorder
	logger    *zap.Logger
}

// NewService constructs the booking service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Directory == nil {
		return nil, newServiceError(opServiceNew, "missing_directory", errMissingDirectory)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:        cfg.Database,
		clock:     clock,
		directory: cfg.Directory,
		recorder:  cfg.Recorder,
		logger:    logger,
	}, nil
}

// Create validates the request, checks the clinician/client pair for an
// active overlapping appointment, allocates the display id when absent, and
// persists the booking. The overlap check, allocation, and insert share one
// transaction so racing creations cannot both commit overlapping rows.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	cmd, err := validateCreate(req)
	if err != nil {
		return nil, err
	}

	appointment := &Appointment{
		StartTS:          cmd.StartTS,
		EndTS:            cmd.EndTS,
		ClinicianID:      cmd.ClinicianID,
		ClientID:         cmd.ClientID,
		PatientID:        cmd.PatientID,
		TreatmentID:      cmd.TreatmentID,
		Price:            cmd.Price,
		Paid:             false,
		Active:           true,
		Parent:           0,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		overlapping, err := hasOverlap(tx, cmd.ClinicianID, cmd.ClientID, cmd.StartTS, cmd.EndTS)
		if err != nil {
			s.logError(opCreate, "overlap_query_failed", err,
				zap.Int64("clinician_id", cmd.ClinicianID),
				zap.Int64("client_id", cmd.ClientID))
			return newServiceError(opCreate, "overlap_query_failed", err)
		}
		if overlapping {
			return ErrOverlap
		}

		appID := cmd.AppID
		if appID == 0 {
			appID, err = nextAppID(tx)
			if err != nil {
				s.logError(opCreate, "appid_query_failed", err)
				return newServiceError(opCreate, "appid_query_failed", err)
			}
		}
		appointment.AppID = appID

		if err := tx.Create(appointment).Error; err != nil {
			s.logError(opCreate, "insert_failed", err,
				zap.Int64("clinician_id", cmd.ClinicianID),
				zap.Int64("patient_id", cmd.PatientID))
			return newServiceError(opCreate, "insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.emitAudit(ctx, audit.BookingEvent{
		LogMessage:       audit.EventAppointmentCreated,
		NotificationType: audit.EventAppointmentCreated,
		AppointmentID:    appointment.ID,
		ClinicianID:      appointment.ClinicianID,
		PatientID:        appointment.PatientID,
		SubjectUserID:    appointment.PatientID,
		LogPayload: map[string]any{
			"appointment_id": appointment.ID,
			"clinician_id":   appointment.ClinicianID,
			"client_id":      appointment.ClientID,
			"start_ts":       appointment.StartTS,
			"end_ts":         appointment.EndTS,
		},
		NotificationPayload: map[string]any{
			"client_id": appointment.ClientID,
			"start_ts":  appointment.StartTS,
			"end_ts":    appointment.EndTS,
		},
	})

	return appointment, nil
}

// Delete marks the appointment inactive. Deleting an already-inactive row
// still succeeds; only a missing id is an error.
func (s *Service) Delete(ctx context.Context, id int64) (*Appointment, error) {
	var appointment Appointment
	err := s.db.WithContext(ctx).First(&appointment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logError(opDelete, "lookup_failed", err, zap.Int64("appointment_id", id))
		return nil, newServiceError(opDelete, "lookup_failed", err)
	}

	if err := s.deactivate(ctx, appointment.ID); err != nil {
		s.logError(opDelete, "update_failed", err, zap.Int64("appointment_id", appointment.ID))
		return nil, newServiceError(opDelete, "update_failed", err)
	}
	appointment.Active = false

	s.emitAudit(ctx, audit.BookingEvent{
		LogMessage:       audit.EventAppointmentDeleted,
		NotificationType: audit.EventAppointmentDeleted,
		AppointmentID:    appointment.ID,
		ClinicianID:      appointment.ClinicianID,
		PatientID:        appointment.PatientID,
		SubjectUserID:    appointment.PatientID,
		LogPayload: map[string]any{
			"appointment_id": appointment.ID,
		},
		NotificationPayload: map[string]any{
			"client_id": appointment.ClientID,
		},
	})

	return &appointment, nil
}

// CancelByPhone resolves the phone number to a patient and cancels the
// matching active appointment. An appointment that exists but belongs to a
// different patient reports the same not-found error as a missing one.
func (s *Service) CancelByPhone(ctx context.Context, phone string, appointmentID int64) (*Appointment, error) {
	if phone == "" || appointmentID == 0 {
		return nil, ErrMissingFields
	}

	patientID, err := s.directory.PatientIDByPhone(ctx, phone)
	if errors.Is(err, users.ErrNoMatch) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		s.logError(opCancelByPhone, "directory_lookup_failed", err)
		return nil, newServiceError(opCancelByPhone, "directory_lookup_failed", err)
	}

	var appointment Appointment
	err = s.db.WithContext(ctx).
		Where("id = ? AND patient_id = ? AND active = ?", appointmentID, patientID, true).
		Take(&appointment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		s.logError(opCancelByPhone, "lookup_failed", err, zap.Int64("appointment_id", appointmentID))
		return nil, newServiceError(opCancelByPhone, "lookup_failed", err)
	}

	if err := s.deactivate(ctx, appointment.ID); err != nil {
		s.logError(opCancelByPhone, "update_failed", err, zap.Int64("appointment_id", appointment.ID))
		return nil, newServiceError(opCancelByPhone, "update_failed", err)
	}
	appointment.Active = false

	s.emitAudit(ctx, audit.BookingEvent{
		LogMessage:       audit.EventAppointmentCanceledByPhone,
		NotificationType: audit.EventAppointmentCanceled,
		AppointmentID:    appointment.ID,
		ClinicianID:      appointment.ClinicianID,
		PatientID:        appointment.PatientID,
		SubjectUserID:    appointment.PatientID,
		LogPayload: map[string]any{
			"appointment_id": appointment.ID,
			"phone":          phone,
		},
		NotificationPayload: map[string]any{
			"client_id": appointment.ClientID,
			"phone":     phone,
		},
	})

	return &appointment, nil
}

// ListFilter narrows a listing to a clinician and/or client. Zero means no
// filter.
type ListFilter struct {
	ClinicianID int64
	ClientID    int64
}

// ListActive returns active appointments ordered by start time.
func (s *Service) ListActive(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	query := s.db.WithContext(ctx).Where("active = ?", true)
	if filter.ClinicianID != 0 {
		query = query.Where("clinician_id = ?", filter.ClinicianID)
	}
	if filter.ClientID != 0 {
		query = query.Where("client_id = ?", filter.ClientID)
	}

	var appointments []Appointment
	if err := query.Order("start_ts ASC").Find(&appointments).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, newServiceError(opList, "query_failed", err)
	}
	return appointments, nil
}

// hasOverlap reports whether any active appointment for the clinician/client
// pair intersects the half-open window [startTS, endTS). Boundary-touching
// windows do not overlap.
func hasOverlap(tx *gorm.DB, clinicianID, clientID, startTS, endTS int64) (bool, error) {
	var conflicts int64
	err := tx.Model(&Appointment{}).
		Where("clinician_id = ? AND client_id = ? AND active = ?", clinicianID, clientID, true).
		Where("start_ts < ? AND end_ts > ?", endTS, startTS).
		Count(&conflicts).Error
	if err != nil {
		return false, err
	}
	return conflicts > 0, nil
}

// nextAppID computes max(appid)+1, or 1 when the table is empty. The display
// sequence never fills gaps.
func nextAppID(tx *gorm.DB) (int64, error) {
	var maxAppID int64
	err := tx.Model(&Appointment{}).
		Select("COALESCE(MAX(appid), 0)").
		Scan(&maxAppID).Error
	if err != nil {
		return 0, err
	}
	return maxAppID + 1, nil
}

func (s *Service) deactivate(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).
		Model(&Appointment{}).
		Where("id = ?", id).
		Update("active", false).Error
}

// emitAudit is best-effort on every path: the booking row is the source of
// truth and a failed log or notification write never fails the request.
func (s *Service) emitAudit(ctx context.Context, event audit.BookingEvent) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordBooking(ctx, event); err != nil {
		s.logger.Warn("audit emission failed",
			zap.String("event", event.LogMessage),
			zap.Int64("appointment_id", event.AppointmentID),
			zap.Error(err))
	}
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("booking service error", attrs...)
}
