// Package corearch holds the architecture-description pieces a Core consults
// but does not own the lifecycle of: the opcode-to-bubble-cycle table loaded
// once at startup and shared, read-only, across every core.
package corearch

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CycleTable maps an opcode to the number of bubble cycles a Core spends
// executing it before issuing the opcode's memory operands, if any. An
// opcode absent from the table costs zero bubble cycles rather than failing.
type CycleTable struct {
	cycles map[string]int
}

// NewCycleTable builds an empty table; every lookup costs zero cycles.
func NewCycleTable() *CycleTable {
	return &CycleTable{cycles: make(map[string]int)}
}

// LoadCycleTable reads a "opcode,cycles" CSV file (one pair per line,
// optional header row ignored) into a CycleTable.
func LoadCycleTable(path string) (*CycleTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corearch: open cycle table %s: %w", path, err)
	}
	defer f.Close()

	t := NewCycleTable()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			continue
		}
		opcode := strings.TrimSpace(fields[0])
		cycles, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			continue // header row or malformed line — skip rather than fail the whole table
		}
		t.cycles[opcode] = cycles
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("corearch: read cycle table %s: %w", path, err)
	}
	return t, nil
}

// BubbleCycles returns the configured bubble-cycle count for opcode, or 0 if
// the opcode is not in the table.
func (t *CycleTable) BubbleCycles(opcode string) int {
	return t.cycles[opcode]
}
