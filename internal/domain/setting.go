package domain

// Setting keys read by the background loops. Absence of a key means false.
const (
	SettingAutoPostingEnabled = "auto_posting_enabled"
	// Per-platform toggles are SettingAutoPostingPrefix + platform name.
	SettingAutoPostingPrefix = "auto_posting_"
)

// BoolSetting interprets a stored setting value. The dashboard writes
// "0"/"1" but "true"/"false" are accepted too.
func BoolSetting(value string) bool {
	switch value {
	case "1", "true", "TRUE", "True", "on":
		return true
	}
	return false
}
