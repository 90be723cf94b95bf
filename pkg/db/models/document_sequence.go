package models

// DocumentSequence holds the last issued counter for a prefix and day.
type DocumentSequence struct {
	Prefix    string `gorm:"column:prefix;type:text;primaryKey"`
	Day       string `gorm:"column:day;type:text;primaryKey"`
	LastValue int64  `gorm:"column:last_value;not null;default:0"`
}
