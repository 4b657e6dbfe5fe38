package rules

import "testing"

func TestCompilePatternFlags(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		flags   string
		input   string
		match   bool
	}{
		{"no flags", "abc", "", "xabcx", true},
		{"case sensitive", "abc", "", "ABC", false},
		{"i flag", "abc", "i", "ABC", true},
		{"m flag", "^two$", "m", "one\ntwo\n", true},
		{"s flag", "a.b", "s", "a\nb", true},
		{"dot excludes newline", "a.b", "", "a\nb", false},
		{"separators ignored", "abc", "i, m", "ABC", true},
		{"upper flag letters", "abc", "I", "ABC", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := CompilePattern(tt.pattern, tt.flags)
			if err != nil {
				t.Fatalf("CompilePattern() error = %v", err)
			}
			if got := re.MatchString(tt.input); got != tt.match {
				t.Errorf("MatchString(%q) = %v, want %v", tt.input, got, tt.match)
			}
		})
	}
}

func TestCompilePatternVerbose(t *testing.T) {
	pattern := `
		width   # the key
		\s* = \s*
		(\d+)
	`
	re, err := CompilePattern(pattern, "x")
	if err != nil {
		t.Fatalf("CompilePattern() error = %v", err)
	}
	if !re.MatchString("width = 1920") {
		t.Error("verbose pattern did not match")
	}
	if re.MatchString("wi dth = 1920") {
		t.Error("verbose mode must not make literal spaces significant")
	}
}

func TestCompilePatternVerboseKeepsClassWhitespace(t *testing.T) {
	re, err := CompilePattern(`a[ ]b`, "x")
	if err != nil {
		t.Fatalf("CompilePattern() error = %v", err)
	}
	if !re.MatchString("a b") {
		t.Error("space inside a character class must survive verbose stripping")
	}
}

func TestCompilePatternVerboseKeepsEscapedSpace(t *testing.T) {
	re, err := CompilePattern(`a\ b`, "x")
	if err != nil {
		t.Fatalf("CompilePattern() error = %v", err)
	}
	if !re.MatchString("a b") {
		t.Error("escaped space must survive verbose stripping")
	}
}

func TestCompilePatternRejects(t *testing.T) {
	if _, err := CompilePattern("a", "g"); err == nil {
		t.Error("CompilePattern() accepted unknown flag g")
	}
	if _, err := CompilePattern("(", ""); err == nil {
		t.Error("CompilePattern() accepted invalid pattern")
	}
	if _, err := CompilePattern("(", ""); err != nil {
		if _, ok := err.(*ValidationError); !ok {
			t.Errorf("error type = %T, want *ValidationError", err)
		}
	}
}

func TestReplaceAllLimits(t *testing.T) {
	re, err := CompilePattern(`\d`, "")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		max   int
		want  string
		count int
	}{
		{0, "x#x#x#", 3},
		{1, "x#x2x3", 1},
		{2, "x#x#x3", 2},
		{5, "x#x#x#", 3},
	}

	for _, tt := range tests {
		got, n := replaceAll(re, "x1x2x3", "#", tt.max)
		if got != tt.want || n != tt.count {
			t.Errorf("replaceAll(max=%d) = %q, %d; want %q, %d", tt.max, got, n, tt.want, tt.count)
		}
	}
}

func TestReplaceAllNoMatch(t *testing.T) {
	re, err := CompilePattern("zzz", "")
	if err != nil {
		t.Fatal(err)
	}
	got, n := replaceAll(re, "abc", "#", 0)
	if got != "abc" || n != 0 {
		t.Errorf("replaceAll() = %q, %d; want unchanged text and 0", got, n)
	}
}
