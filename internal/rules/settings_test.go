package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettingsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	got := LoadSettings(path, nil)
	if got != DefaultSettings() {
		t.Errorf("LoadSettings() = %+v, want defaults", got)
	}
}

func TestLoadSettingsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	got := LoadSettings(path, nil)
	if got != DefaultSettings() {
		t.Errorf("LoadSettings() on corrupt file = %+v, want defaults", got)
	}
}

func TestLoadSettingsLenientValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	src := `{"enabled": "no", "dry_run": 1, "stop_on_error": "true", "backup_before_write": "garbage"}`
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	got := LoadSettings(path, nil)
	if got.Enabled {
		t.Error(`enabled "no" parsed as true`)
	}
	if !got.DryRun {
		t.Error("dry_run 1 parsed as false")
	}
	if !got.StopOnError {
		t.Error(`stop_on_error "true" parsed as false`)
	}
	if !got.BackupBeforeWrite {
		t.Error("unrecognized backup_before_write must keep its default")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	want := Settings{Enabled: false, DryRun: true, StopOnError: true, BackupBeforeWrite: false}

	if err := SaveSettings(path, want); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	if got := LoadSettings(path, nil); got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}
