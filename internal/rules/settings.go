package rules

import (
	"encoding/json"
	"os"

	"modeswitch/internal/logging"
)

// Settings control whether and how the engine runs.
type Settings struct {
	Enabled           bool `json:"enabled"`
	DryRun            bool `json:"dry_run"`
	StopOnError       bool `json:"stop_on_error"`
	BackupBeforeWrite bool `json:"backup_before_write"`
}

// DefaultSettings is the record assumed when none is stored.
func DefaultSettings() Settings {
	return Settings{
		Enabled:           true,
		DryRun:            false,
		StopOnError:       false,
		BackupBeforeWrite: true,
	}
}

// LoadSettings reads the settings record at path. Missing or corrupt
// storage yields the defaults; corruption is logged, never returned.
func LoadSettings(path string, log *logging.Logger) Settings {
	if log == nil {
		log = logging.NullLogger
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("settings unreadable, using defaults: %v", err)
		}
		return DefaultSettings()
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		log.Warn("settings corrupt, using defaults: %v", err)
		return DefaultSettings()
	}

	def := DefaultSettings()
	return Settings{
		Enabled:           fieldBool(fields["enabled"], def.Enabled),
		DryRun:            fieldBool(fields["dry_run"], def.DryRun),
		StopOnError:       fieldBool(fields["stop_on_error"], def.StopOnError),
		BackupBeforeWrite: fieldBool(fields["backup_before_write"], def.BackupBeforeWrite),
	}
}

// SaveSettings writes the full four-flag record to path all-or-nothing.
func SaveSettings(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, append(data, '\n'))
}
