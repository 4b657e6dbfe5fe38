package monitor

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"modeswitch/internal/config"
	"modeswitch/internal/logging"
)

// LogSwitcher records resolution changes without touching the display.
// It is the default when no switch command is configured.
type LogSwitcher struct {
	Log *logging.Logger
}

func (s *LogSwitcher) Apply(res config.Resolution) error {
	log := s.Log
	if log == nil {
		log = logging.NullLogger
	}
	log.Info("resolution -> %s", res)
	return nil
}

// CommandSwitcher shells out to an external display tool. The template
// placeholders {width}, {height}, and {refresh} in Args are replaced per
// call.
type CommandSwitcher struct {
	Command string
	Args    []string
}

func (s *CommandSwitcher) Apply(res config.Resolution) error {
	args := make([]string, len(s.Args))
	repl := strings.NewReplacer(
		"{width}", strconv.Itoa(res.Width),
		"{height}", strconv.Itoa(res.Height),
		"{refresh}", strconv.Itoa(res.Refresh),
	)
	for i, a := range s.Args {
		args[i] = repl.Replace(a)
	}

	out, err := exec.Command(s.Command, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %v (%s)", s.Command, err, strings.TrimSpace(string(out)))
	}
	return nil
}
