package rules

import (
	"os"
	"path/filepath"

	"modeswitch/internal/logging"
)

// Persisted document names inside a service directory.
const (
	TasksFileName    = "tasks.json"
	SettingsFileName = "settings.json"
)

// Report summarizes one engine run. Total counts every rule in the
// document, including rules skipped after a stop-on-error halt or when
// the engine is disabled.
type Report struct {
	Total     int
	Succeeded int
	Failed    int
	DryRun    bool
}

// Attempted returns how many rules were actually applied or failed.
func (r Report) Attempted() int { return r.Succeeded + r.Failed }

// Skipped returns how many rules were never attempted.
func (r Report) Skipped() int { return r.Total - r.Attempted() }

// ExecuteAll runs the ordered rule list. Rules apply left to right, each
// seeing the previous rule's output; a later failure never rolls back an
// earlier completed write. With the engine disabled and force unset,
// nothing is attempted and every rule counts as skipped.
func ExecuteAll(ruleList []Rule, settings Settings, baseDir string, vars map[string]string, force bool, log *logging.Logger) Report {
	if log == nil {
		log = logging.NullLogger
	}

	report := Report{Total: len(ruleList), DryRun: settings.DryRun}
	if len(ruleList) == 0 {
		return report
	}

	if !force && !settings.Enabled {
		log.Info("batch edit disabled, skipping %d rules", len(ruleList))
		return report
	}

	log.Info("running %d edit rules (dry_run=%t stop_on_error=%t backup=%t)",
		len(ruleList), settings.DryRun, settings.StopOnError, settings.BackupBeforeWrite)

	opts := ApplyOptions{DryRun: settings.DryRun, Backup: settings.BackupBeforeWrite}

	for i, rule := range ruleList {
		effective := ExpandRule(rule, vars)
		path, err := Apply(effective, baseDir, opts)
		if err != nil {
			report.Failed++
			log.Error("edit %d failed: %v", i+1, err)
			if settings.StopOnError {
				log.Warn("stop_on_error set, halting after edit %d", i+1)
				break
			}
			continue
		}
		report.Succeeded++
		log.Info("edit %d applied: %s", i+1, path)
	}

	return report
}

// Service binds the engine to one data directory holding the task and
// settings documents, plus the base directory targets resolve against.
// It is the surface the batch-edit plugin drives.
type Service struct {
	// Dir holds tasks.json and settings.json.
	Dir string

	// BaseDir anchors rule target paths.
	BaseDir string

	Log *logging.Logger

	// Vars supplies the live template variables; nil means no expansion.
	Vars func() map[string]string
}

// TasksPath returns the task document location.
func (s *Service) TasksPath() string { return filepath.Join(s.Dir, TasksFileName) }

// SettingsPath returns the settings record location.
func (s *Service) SettingsPath() string { return filepath.Join(s.Dir, SettingsFileName) }

// Settings loads the current settings record.
func (s *Service) Settings() Settings {
	return LoadSettings(s.SettingsPath(), s.Log)
}

// SaveSettings persists the record and returns its path.
func (s *Service) SaveSettings(settings Settings) (string, error) {
	path := s.SettingsPath()
	if err := SaveSettings(path, settings); err != nil {
		return "", err
	}
	return path, nil
}

// RawTasks returns the persisted task document bytes, or the empty
// document rendering when none exists.
func (s *Service) RawTasks() ([]byte, error) {
	data, err := os.ReadFile(s.TasksPath())
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDocumentJSON(), nil
		}
		return nil, err
	}
	return data, nil
}

// Document loads and validates the persisted task document. A missing
// file is an empty document, not an error.
func (s *Service) Document() (*Document, error) {
	data, err := os.ReadFile(s.TasksPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{}, nil
		}
		return nil, err
	}
	return ParseDocument(data)
}

// SaveTasks validates raw document JSON and persists it. Validation runs
// in full before anything is written, so a rejected document leaves the
// previous one untouched. Returns the path and the rule count.
func (s *Service) SaveTasks(data []byte) (string, int, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return "", 0, err
	}

	path := s.TasksPath()
	if err := SaveDocument(path, doc); err != nil {
		return "", 0, err
	}
	return path, len(doc.Edits), nil
}

// SaveGrouped validates a grouped editor payload, flattens it, and
// persists the resulting document. Returns the path, the task (file
// group) count, and the flat rule count.
func (s *Service) SaveGrouped(payload []byte) (string, int, int, error) {
	taskCount, doc, err := ParseVisualPayload(payload)
	if err != nil {
		return "", 0, 0, err
	}

	path := s.TasksPath()
	if err := SaveDocument(path, doc); err != nil {
		return "", 0, 0, err
	}
	return path, taskCount, len(doc.Edits), nil
}

// EditorTasks returns the grouped view of the persisted document for the
// visual editor.
func (s *Service) EditorTasks() ([]Task, error) {
	data, err := s.RawTasks()
	if err != nil {
		return nil, err
	}
	return GroupTasks(data)
}

// Execute runs the persisted document with the stored settings.
func (s *Service) Execute(force bool) (Report, error) {
	doc, err := s.Document()
	if err != nil {
		return Report{}, err
	}

	if len(doc.Edits) == 0 {
		if s.Log != nil {
			s.Log.Info("no edit tasks configured")
		}
		return Report{}, nil
	}

	var vars map[string]string
	if s.Vars != nil {
		vars = s.Vars()
	}

	return ExecuteAll(doc.Edits, s.Settings(), s.BaseDir, vars, force, s.Log), nil
}
