package users

// UserMeta is one key/value attribute attached to a user account. The
// booking core only reads it; account management lives elsewhere.
type UserMeta struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64  `gorm:"column:user_id;not null;index"`
	MetaKey   string `gorm:"column:meta_key;size:190;not null;index:idx_user_meta_kv,priority:1"`
	MetaValue string `gorm:"column:meta_value;size:190;not null;index:idx_user_meta_kv,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (UserMeta) TableName() string {
	return "user_meta"
}
