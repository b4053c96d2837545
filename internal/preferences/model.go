package preferences

import "github.com/MarcoPoloResearchLab/huntsync/internal/notify"

const (
	valueTrue  = "true"
	valueFalse = "false"
)

// Record persists one preference.
type Record struct {
	Key              string `gorm:"column:name;primaryKey;size:64"`
	Value            string `gorm:"column:value;size:16;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName keeps the table name stable across struct renames.
func (Record) TableName() string {
	return "preferences"
}

// Keys lists the preferences the client knows about.
func Keys() []string {
	return []string{notify.PreferenceSounds, notify.PreferenceNative}
}

// Defaults returns the initial value of every known preference.
func Defaults() map[string]string {
	defaults := make(map[string]string, len(Keys()))
	for _, key := range Keys() {
		defaults[key] = valueFalse
	}
	return defaults
}

func isKnownKey(key string) bool {
	for _, known := range Keys() {
		if key == known {
			return true
		}
	}
	return false
}
