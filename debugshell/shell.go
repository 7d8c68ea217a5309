// Package debugshell implements the interactive step debugger: a REPL that
// breaks only at tick boundaries, since nothing in the simulator may suspend
// mid-tick.
package debugshell

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/sarchlab/nmpsim/proc"
)

// Inspector is the narrow view of the running simulation the shell can
// report on.
type Inspector interface {
	Tick() uint64
	CoreByID(id int) (*proc.Core, bool)
	CacheLevelReport(level string) (string, bool)
}

// Shell drives an interactive session over Inspector. step advances the
// simulation by exactly n ticks (or until it converges); runToEnd advances
// it all the way to completion, for the "continue" command.
type Shell struct {
	inspector Inspector
	step      func(n uint64)
	runToEnd  func()

	line *liner.State

	every    uint64
	sinceRun uint64
	quit     bool
	freeRun  bool
}

// New builds a Shell. every is the tick cadence at which Break drops into
// the REPL (0 or 1 means break every tick) until a "continue" command is
// issued.
func New(inspector Inspector, step func(n uint64), runToEnd func(), every uint64) *Shell {
	if every == 0 {
		every = 1
	}
	return &Shell{inspector: inspector, step: step, runToEnd: runToEnd, every: every}
}

// Open starts the line-editing session. Callers must Close it when done.
func (s *Shell) Open() {
	s.line = liner.NewLiner()
	s.line.SetCtrlCAborts(true)
	s.line.SetCompleter(s.completer)
}

// Close releases the terminal line editor.
func (s *Shell) Close() { s.line.Close() }

// Quit reports whether the operator asked to end the session.
func (s *Shell) Quit() bool { return s.quit }

// Break advances the simulation by one tick and, once every configured
// number of ticks, drops into the REPL. Once "continue" runs the simulation
// to completion, Break becomes a no-op (the run is already over).
func (s *Shell) Break() {
	if s.freeRun {
		return
	}
	s.step(1)
	s.sinceRun++
	if s.sinceRun < s.every {
		return
	}
	s.sinceRun = 0
	s.repl()
}

func (s *Shell) repl() {
	for {
		prompt := fmt.Sprintf("nmpsim[%d]> ", s.inspector.Tick())
		line, err := s.line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				s.quit = true
				return
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.line.AppendHistory(line)

		fields := strings.Fields(line)
		switch fields[0] {
		case "step":
			n := uint64(1)
			if len(fields) > 1 {
				if v, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
					n = v
				}
			}
			if n > 1 {
				s.step(n - 1) // Break already advanced the current tick
			}
			return
		case "continue":
			s.freeRun = true
			s.runToEnd()
			return
		case "inspect":
			s.inspect(fields[1:])
		case "quit":
			s.quit = true
			return
		default:
			fmt.Printf("unknown command %q (try: step [n], continue, inspect core <id>, inspect cache <level>, quit)\n", fields[0])
		}
	}
}

func (s *Shell) inspect(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: inspect core <id> | inspect cache <level>")
		return
	}
	switch args[0] {
	case "core":
		id, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Printf("invalid core id %q\n", args[1])
			return
		}
		c, ok := s.inspector.CoreByID(id)
		if !ok {
			fmt.Printf("no core %d\n", id)
			return
		}
		fmt.Printf("core %d: retired=%d idle=%d moreReqs=%v lockCore=%v\n",
			c.ID, c.Stats.Retired, c.Stats.IdleCycles, c.MoreReqs, c.LockCore)
	case "cache":
		report, ok := s.inspector.CacheLevelReport(args[1])
		if !ok {
			fmt.Printf("no cache level %q\n", args[1])
			return
		}
		fmt.Println(report)
	default:
		fmt.Printf("unknown inspect target %q\n", args[0])
	}
}

func (s *Shell) completer(line string) []string {
	candidates := []string{"step", "continue", "inspect core ", "inspect cache ", "quit"}
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}
