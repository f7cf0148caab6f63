package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// storage changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// GameChanged is true when any hot-reloadable game tuning field changed.
	GameChanged bool
	NewGame     GameConfig
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.GameChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// World and puzzle files are loaded once at startup, so path changes are
	// not applied on reload.
	og, ng := old.Game, new.Game
	og.WorldFile, ng.WorldFile = "", ""
	og.WorldConcept, ng.WorldConcept = "", ""
	og.PuzzleFile, ng.PuzzleFile = "", ""
	if og != ng {
		d.GameChanged = true
		d.NewGame = new.Game
	}

	return d
}
