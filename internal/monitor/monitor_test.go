package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modeswitch/internal/config"
)

// fakeProcs is a scripted process table.
type fakeProcs struct {
	running map[string]bool
}

func (f *fakeProcs) Running(name string) (bool, error) {
	return f.running[name], nil
}

// recordingSwitcher captures applied resolutions.
type recordingSwitcher struct {
	applied []config.Resolution
}

func (r *recordingSwitcher) Apply(res config.Resolution) error {
	r.applied = append(r.applied, res)
	return nil
}

func newTestMonitor() (*Monitor, *fakeProcs, *recordingSwitcher) {
	store := config.NewStore(config.Default())
	procs := &fakeProcs{running: make(map[string]bool)}
	sw := &recordingSwitcher{}
	return New(store, sw, procs, nil), procs, sw
}

func TestMonitorCycle(t *testing.T) {
	m, procs, sw := newTestMonitor()
	cfg := config.Default()

	m.Tick()
	if m.State() != StateIdle {
		t.Fatalf("state = %s, want idle", m.State())
	}

	procs.running[cfg.LauncherProcess] = true
	m.Tick()
	if m.State() != StateLaunched {
		t.Fatalf("state = %s, want launched", m.State())
	}
	if len(sw.applied) != 0 {
		t.Fatalf("launcher alone switched resolution: %v", sw.applied)
	}

	procs.running[cfg.GameProcess] = true
	m.Tick()
	if m.State() != StateInGame {
		t.Fatalf("state = %s, want in-game", m.State())
	}
	if len(sw.applied) != 1 || sw.applied[0] != cfg.Enabled {
		t.Fatalf("applied = %v, want enabled profile", sw.applied)
	}

	// Steady state applies nothing new.
	m.Tick()
	if len(sw.applied) != 1 {
		t.Fatalf("steady state re-applied: %v", sw.applied)
	}

	procs.running[cfg.GameProcess] = false
	procs.running[cfg.LauncherProcess] = false
	m.Tick()
	if m.State() != StateIdle {
		t.Fatalf("state = %s, want idle", m.State())
	}
	if len(sw.applied) != 2 || sw.applied[1] != cfg.Default {
		t.Fatalf("applied = %v, want default restored", sw.applied)
	}
}

func TestMonitorCallbacks(t *testing.T) {
	m, procs, _ := newTestMonitor()
	cfg := config.Default()

	var events []string
	m.OnEnable = func() { events = append(events, "enable") }
	m.OnRestore = func() { events = append(events, "restore") }

	procs.running[cfg.GameProcess] = true
	m.Tick()
	procs.running[cfg.GameProcess] = false
	m.Tick()

	if len(events) != 2 || events[0] != "enable" || events[1] != "restore" {
		t.Errorf("events = %v", events)
	}
}

func TestMonitorGameWithoutLauncher(t *testing.T) {
	m, procs, sw := newTestMonitor()
	cfg := config.Default()

	// The game alone still triggers the switch.
	procs.running[cfg.GameProcess] = true
	m.Tick()
	if m.State() != StateInGame || len(sw.applied) != 1 {
		t.Errorf("state = %s, applied = %v", m.State(), sw.applied)
	}
}

func TestCommandSwitcherSubstitution(t *testing.T) {
	out := filepath.Join(t.TempDir(), "mode.txt")
	sw := &CommandSwitcher{
		Command: "sh",
		Args:    []string{"-c", "printf %s '{width}x{height}@{refresh}' > " + out},
	}

	if err := sw.Apply(config.Resolution{Width: 1280, Height: 720, Refresh: 144}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "1280x720@144" {
		t.Errorf("command output = %q, want %q", got, "1280x720@144")
	}
}

func TestCommandSwitcherFailure(t *testing.T) {
	sw := &CommandSwitcher{Command: "sh", Args: []string{"-c", "echo broken >&2; exit 3"}}
	err := sw.Apply(config.Resolution{})
	if err == nil {
		t.Fatal("Apply() error = nil, want failure")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("Apply() error = %v, want command output included", err)
	}
}

func TestProcScanner(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "1234"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "1234", "comm"), []byte("Game.exe\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// Non-numeric entries are not processes.
	if err := os.MkdirAll(filepath.Join(root, "sys"), 0755); err != nil {
		t.Fatal(err)
	}

	p := &ProcScanner{Root: root}

	got, err := p.Running("game.exe")
	if err != nil {
		t.Fatalf("Running() error = %v", err)
	}
	if !got {
		t.Error("Running(game.exe) = false, want case-insensitive match")
	}

	got, err = p.Running("other")
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("Running(other) = true, want false")
	}

	if got, _ := p.Running("  "); got {
		t.Error("Running(blank) = true, want false")
	}
}
