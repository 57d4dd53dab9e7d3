package engine

// Settings is a read-only snapshot of the tunables the pipeline consults.
// A fresh snapshot is read once per request.
type Settings struct {
	// Turns OrphanReplacing into the hard OrphanReplacingEscalated.
	EscalateOrphanReplacing bool

	// Longest accepted request, in calendar days. Zero disables the check.
	MaxRequestDays int

	// Working minutes of a full day for people without their own value.
	DefaultDailyMinutes int
}

// DefaultSettings are used when no SettingsSource is injected.
func DefaultSettings() Settings {
	return Settings{
		MaxRequestDays:      366,
		DefaultDailyMinutes: 432,
	}
}

// SettingsSource hands out the current snapshot.
type SettingsSource interface {
	Current() Settings
}

// StaticSettings is a SettingsSource that never changes.
type StaticSettings Settings

func (s StaticSettings) Current() Settings { return Settings(s) }
