package booking

import (
	"errors"
	"math"
)

var (
	// ErrMissingFields indicates a creation request without one of the required fields.
	ErrMissingFields = errors.New("booking: missing fields")
	// ErrInvalidTimes indicates a negative or inverted appointment window.
	ErrInvalidTimes = errors.New("booking: invalid times")
	// ErrInvalidIDs indicates a negative participant identifier.
	ErrInvalidIDs = errors.New("booking: invalid ids")
	// ErrInvalidPrice indicates a negative or non-finite price.
	ErrInvalidPrice = errors.New("booking: invalid price")
	// ErrOverlap indicates an active appointment already occupies the window
	// for the clinician/client pair.
	ErrOverlap = errors.New("booking: overlapping appointment")
	// ErrNotFound indicates the appointment id does not exist.
	ErrNotFound = errors.New("booking: appointment not found")
	// ErrPatientNotFound indicates the phone number resolved to no patient.
	ErrPatientNotFound = errors.New("booking: patient not found")
	// ErrAppointmentNotFound indicates no active appointment matches both the
	// given id and the resolved patient.
	ErrAppointmentNotFound = errors.New("booking: active appointment not found")
)

// Appointment models a scheduled booking. Rows are never physically deleted;
// cancellation flips Active off and removes the row from overlap detection.
type Appointment struct {
	ID               int64   `gorm:"column:id;primaryKey;autoIncrement"`
	AppID            int64   `gorm:"column:appid;not null;index"`
	StartTS          int64   `gorm:"column:start_ts;not null;index:idx_appointments_pair,priority:3"`
	EndTS            int64   `gorm:"column:end_ts;not null"`
	ClinicianID      int64   `gorm:"column:clinician_id;not null;index:idx_appointments_pair,priority:1"`
	ClientID         int64   `gorm:"column:client_id;not null;index:idx_appointments_pair,priority:2"`
	PatientID        int64   `gorm:"column:patient_id;not null;index"`
	TreatmentID      int64   `gorm:"column:treatment_id;not null;default:0"`
	ClinicianName    string  `gorm:"column:clinician_name;size:190;not null;default:''"`
	ClientName       string  `gorm:"column:client_name;size:190;not null;default:''"`
	PatientName      string  `gorm:"column:patient_name;size:190;not null;default:''"`
	TreatmentName    string  `gorm:"column:treatment_name;size:190;not null;default:''"`
	Price            float64 `gorm:"column:price;not null;default:0"`
	Paid             bool    `gorm:"column:paid;not null;default:false"`
	Active           bool    `gorm:"column:active;not null;default:true"`
	Parent           int64   `gorm:"column:parent;not null;default:0"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Appointment) TableName() string {
	return "appointments"
}

// CreateRequest carries the raw creation payload. Pointer fields distinguish
// absent values from explicit zeros.
type CreateRequest struct {
	AppID       *int64   `json:"appid"`
	StartTS     *int64   `json:"start_ts"`
	EndTS       *int64   `json:"end_ts"`
	Price       *float64 `json:"price"`
	ClientID    *int64   `json:"cli"`
	ClinicianID *int64   `json:"doc"`
	TreatmentID *int64   `json:"treat"`
	PatientID   *int64   `json:"pat"`
}

// createCommand is a normalized creation request with defaults applied.
type createCommand struct {
	AppID       int64
	StartTS     int64
	EndTS       int64
	ClientID    int64
	ClinicianID int64
	TreatmentID int64
	PatientID   int64
	Price       float64
}

// validateCreate normalizes a raw request into a command or reports the first
// validation failure. It performs no I/O.
func validateCreate(req CreateRequest) (createCommand, error) {
	if req.StartTS == nil || req.EndTS == nil || req.ClientID == nil || req.ClinicianID == nil || req.PatientID == nil {
		return createCommand{}, ErrMissingFields
	}
	if *req.StartTS < 0 || *req.EndTS < 0 || *req.StartTS >= *req.EndTS {
		return createCommand{}, ErrInvalidTimes
	}
	if *req.ClientID < 0 || *req.ClinicianID < 0 || *req.PatientID < 0 {
		return createCommand{}, ErrInvalidIDs
	}

	cmd := createCommand{
		StartTS:     *req.StartTS,
		EndTS:       *req.EndTS,
		ClientID:    *req.ClientID,
		ClinicianID: *req.ClinicianID,
		PatientID:   *req.PatientID,
	}

	if req.Price != nil {
		price := *req.Price
		if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
			return createCommand{}, ErrInvalidPrice
		}
		cmd.Price = price
	}
	if req.TreatmentID != nil {
		cmd.TreatmentID = *req.TreatmentID
	}
	if req.AppID != nil {
		// Supplied display ids are trusted verbatim; the allocator only
		// fills in when absent.
		cmd.AppID = *req.AppID
	}

	return cmd, nil
}
