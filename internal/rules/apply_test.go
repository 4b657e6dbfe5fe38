package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTarget(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readTarget(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestApplyAnchorInclusive(t *testing.T) {
	dir := t.TempDir()
	path := writeTarget(t, dir, "target.txt", "AxxxBxxxC")

	rule := Rule{File: "target.txt", Mode: ModeAnchor, From: "A", To: "B", New: "-", Inclusive: true}
	got, err := Apply(rule, dir, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got != path {
		t.Errorf("Apply() path = %q, want %q", got, path)
	}
	if content := readTarget(t, path); content != "-xxxC" {
		t.Errorf("content = %q, want %q", content, "-xxxC")
	}
}

func TestApplyAnchorExclusive(t *testing.T) {
	dir := t.TempDir()
	path := writeTarget(t, dir, "target.txt", "AxxxBxxxC")

	rule := Rule{File: "target.txt", Mode: ModeAnchor, From: "A", To: "B", New: "-", Inclusive: false}
	if _, err := Apply(rule, dir, ApplyOptions{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if content := readTarget(t, path); content != "A-BxxxC" {
		t.Errorf("content = %q, want %q", content, "A-BxxxC")
	}
}

func TestApplyAnchorToAfterFrom(t *testing.T) {
	dir := t.TempDir()
	path := writeTarget(t, dir, "target.txt", "B first A then B again")

	// The to marker before from must be ignored; only the B after A counts.
	rule := Rule{File: "target.txt", Mode: ModeAnchor, From: "A", To: "B", New: "X", Inclusive: true}
	if _, err := Apply(rule, dir, ApplyOptions{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if content := readTarget(t, path); content != "B first X again" {
		t.Errorf("content = %q, want %q", content, "B first X again")
	}
}

func TestApplyAnchorMarkerMissing(t *testing.T) {
	dir := t.TempDir()
	writeTarget(t, dir, "target.txt", "nothing to see")

	rule := Rule{File: "target.txt", Mode: ModeAnchor, From: "missing", To: "also", New: "x", Inclusive: true}
	_, err := Apply(rule, dir, ApplyOptions{})
	if err == nil {
		t.Fatal("Apply() expected error for missing from marker")
	}
	if _, ok := err.(*ApplyError); !ok {
		t.Errorf("error type = %T, want *ApplyError", err)
	}
}

func TestApplyRegexCounts(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  string
	}{
		{"unlimited", 0, "ZZ cZ"},
		{"first only", 1, "Za caa"},
		{"first two", 2, "ZZ caa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeTarget(t, dir, "target.txt", "aaa caa")

			rule := Rule{File: "target.txt", Mode: ModeRegex, Pattern: "aa?", Replacement: "Z", MaxCount: tt.count}
			if _, err := Apply(rule, dir, ApplyOptions{}); err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if content := readTarget(t, path); content != tt.want {
				t.Errorf("content = %q, want %q", content, tt.want)
			}
		})
	}
}

func TestApplyRegexGroupReference(t *testing.T) {
	dir := t.TempDir()
	path := writeTarget(t, dir, "conf.ini", "width=1024\nheight=768\n")

	rule := Rule{
		File:        "conf.ini",
		Mode:        ModeRegex,
		Pattern:     `(?m)^(width)=\d+$`,
		Replacement: "${1}=1920",
	}
	if _, err := Apply(rule, dir, ApplyOptions{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if content := readTarget(t, path); content != "width=1920\nheight=768\n" {
		t.Errorf("content = %q", content)
	}
}

func TestApplyRegexNoMatchFails(t *testing.T) {
	dir := t.TempDir()
	path := writeTarget(t, dir, "target.txt", "hello world")

	rule := Rule{File: "target.txt", Mode: ModeRegex, Pattern: "zzz", Replacement: "x"}
	_, err := Apply(rule, dir, ApplyOptions{})
	if err == nil {
		t.Fatal("Apply() expected error for zero matches")
	}
	if content := readTarget(t, path); content != "hello world" {
		t.Errorf("failed apply modified the file: %q", content)
	}
}

func TestApplyMissingTarget(t *testing.T) {
	dir := t.TempDir()

	rule := Rule{File: "absent.txt", Mode: ModeAnchor, From: "a", To: "b", New: "", Inclusive: true}
	_, err := Apply(rule, dir, ApplyOptions{})
	ae, ok := err.(*ApplyError)
	if !ok {
		t.Fatalf("error = %v (%T), want *ApplyError", err, err)
	}
	if !ae.NotFound {
		t.Error("ApplyError.NotFound = false, want true")
	}
}

func TestApplyLineRange(t *testing.T) {
	dir := t.TempDir()
	path := writeTarget(t, dir, "target.txt", "key=1\nkey=2\nkey=3\n")

	rule := Rule{
		File:        "target.txt",
		Mode:        ModeRegex,
		Range:       &LineRange{Start: 2, End: 2},
		Pattern:     `key=\d`,
		Replacement: "key=9",
	}
	if _, err := Apply(rule, dir, ApplyOptions{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if content := readTarget(t, path); content != "key=1\nkey=9\nkey=3\n" {
		t.Errorf("content = %q", content)
	}
}

func TestApplyLineRangeOutOfBounds(t *testing.T) {
	dir := t.TempDir()
	writeTarget(t, dir, "target.txt", "one\ntwo\n")

	rule := Rule{
		File:      "target.txt",
		Mode:      ModeAnchor,
		Range:     &LineRange{Start: 2, End: 10},
		From:      "t", To: "o", New: "x", Inclusive: true,
	}
	_, err := Apply(rule, dir, ApplyOptions{})
	if err == nil {
		t.Fatal("Apply() expected out-of-bounds error")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("error type = %T, want *ValidationError", err)
	}
}

func TestApplyNormalizesNewlines(t *testing.T) {
	dir := t.TempDir()
	path := writeTarget(t, dir, "target.txt", "one\r\ntwo\rthree\n")

	rule := Rule{File: "target.txt", Mode: ModeAnchor, From: "two", To: "three", New: "mid", Inclusive: true}
	if _, err := Apply(rule, dir, ApplyOptions{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	content := readTarget(t, path)
	if strings.Contains(content, "\r") {
		t.Errorf("output still contains CR: %q", content)
	}
	if content != "one\nmid\n" {
		t.Errorf("content = %q, want %q", content, "one\nmid\n")
	}
}

func TestApplyDryRun(t *testing.T) {
	dir := t.TempDir()
	path := writeTarget(t, dir, "target.txt", "AxB")

	rule := Rule{File: "target.txt", Mode: ModeAnchor, From: "A", To: "B", New: "-", Inclusive: true}
	got, err := Apply(rule, dir, ApplyOptions{DryRun: true, Backup: true})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got != path+DryRunMarker {
		t.Errorf("Apply() path = %q, want dry-run marker suffix", got)
	}
	if content := readTarget(t, path); content != "AxB" {
		t.Errorf("dry run modified the file: %q", content)
	}
	if _, err := os.Stat(path + ".bak"); !os.IsNotExist(err) {
		t.Error("dry run created a backup file")
	}
}

func TestApplyBackup(t *testing.T) {
	dir := t.TempDir()
	path := writeTarget(t, dir, "target.txt", "AxB")

	rule := Rule{File: "target.txt", Mode: ModeAnchor, From: "A", To: "B", New: "-", Inclusive: true}
	if _, err := Apply(rule, dir, ApplyOptions{Backup: true}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if bak := readTarget(t, path+".bak"); bak != "AxB" {
		t.Errorf("backup = %q, want original content", bak)
	}
	if content := readTarget(t, path); content != "-" {
		t.Errorf("content = %q, want %q", content, "-")
	}
}
