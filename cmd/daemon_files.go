package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
)

// daemonFiles manages the pid file and the JSON state file written next to
// it. The pid file holds only the pid so shell tooling can read it.
type daemonFiles struct {
	pid string
}

func (f daemonFiles) statePath() string { return f.pid + ".json" }

// claim fails when a live daemon owns the pid file and clears stale files.
func (f daemonFiles) claim() error {
	st, err := f.read()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err == nil && processAlive(st.PID) {
		return fmt.Errorf("daemon already running (pid %d)", st.PID)
	}
	f.clear()
	return nil
}

func (f daemonFiles) write(st daemonRuntimeState) error {
	if err := os.MkdirAll(filepath.Dir(f.pid), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	if err := os.WriteFile(f.pid, []byte(strconv.Itoa(st.PID)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.statePath(), append(data, '\n'), 0o600)
}

// read returns the recorded state. The pid file is authoritative; a missing
// or corrupt state file only loses the extra fields.
func (f daemonFiles) read() (daemonRuntimeState, error) {
	var st daemonRuntimeState
	data, err := os.ReadFile(f.pid) //nolint:gosec // daemon pid path is configured by the local user
	if err != nil {
		return st, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return st, fmt.Errorf("invalid pid in %s", f.pid)
	}

	if raw, err := os.ReadFile(f.statePath()); err == nil { //nolint:gosec // next to the pid file
		_ = json.Unmarshal(raw, &st)
	}
	st.PID = pid
	return st, nil
}

func (f daemonFiles) clear() {
	_ = os.Remove(f.pid)
	_ = os.Remove(f.statePath())
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
