package audit

// Event kinds written to the audit log and notification fan-out.
const (
	EventAppointmentCreated         = "appointment_created"
	EventAppointmentDeleted         = "appointment_deleted"
	EventAppointmentCanceled        = "appointment_canceled"
	EventAppointmentCanceledByPhone = "appointment_canceled_by_phone"
)

// Recipient roles serialized into Notification.AvailableTo.
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// Log is an append-only audit record. Rows are never mutated or deleted.
type Log struct {
	LogID            string `gorm:"column:log_id;primaryKey;size:190;not null"`
	Message          string `gorm:"column:msg;size:190;not null;index"`
	UserID           int64  `gorm:"column:uid;not null;index"`
	PayloadJSON      string `gorm:"column:data;type:text;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Log) TableName() string {
	return "logs"
}

// Notification describes who should learn about an event. Delivery and the
// read-by bookkeeping belong to a separate subsystem; this core only inserts.
type Notification struct {
	NotificationID    string `gorm:"column:notification_id;primaryKey;size:190;not null"`
	ItemID            int64  `gorm:"column:itemid;not null;index"`
	Type              string `gorm:"column:type;size:190;not null"`
	NotifiedAtSeconds int64  `gorm:"column:not_datetime;not null"`
	AvailableTo       string `gorm:"column:availto;type:text;not null"`
	AvailableToIDs    string `gorm:"column:availtoid;type:text;not null"`
	ReadBy            string `gorm:"column:readby;type:text;not null"`
	PayloadJSON       string `gorm:"column:data;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}
