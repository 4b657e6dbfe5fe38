package monitor

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcScanner checks process presence by scanning /proc. Matching is by
// executable base name, case-insensitive, so "Game.exe" and "game.exe"
// are the same process.
type ProcScanner struct {
	// Root defaults to /proc; tests point it elsewhere.
	Root string
}

func (p *ProcScanner) root() string {
	if p.Root != "" {
		return p.Root
	}
	return "/proc"
}

// Running reports whether any process with the given name exists.
func (p *ProcScanner) Running(name string) (bool, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return false, nil
	}

	entries, err := os.ReadDir(p.root())
	if err != nil {
		return false, err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}

		comm, err := os.ReadFile(filepath.Join(p.root(), e.Name(), "comm"))
		if err != nil {
			// The process may have exited mid-scan.
			continue
		}
		if strings.ToLower(strings.TrimSpace(string(comm))) == want {
			return true, nil
		}
	}
	return false, nil
}
