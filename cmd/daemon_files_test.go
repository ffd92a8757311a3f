package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDaemonFilesRoundTrip(t *testing.T) {
	files := daemonFiles{pid: filepath.Join(t.TempDir(), "run", "reelstatsd.pid")}

	if _, err := files.read(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read on empty dir: err = %v, want ErrNotExist", err)
	}
	if err := files.claim(); err != nil {
		t.Fatalf("claim: %v", err)
	}

	want := daemonRuntimeState{PID: os.Getpid(), Addr: "127.0.0.1:9999", StartedAt: time.Now().UTC().Truncate(time.Second), Store: "sqlite"}
	if err := files.write(want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := files.read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.PID != want.PID || got.Addr != want.Addr || got.Store != want.Store || !got.StartedAt.Equal(want.StartedAt) {
		t.Fatalf("read = %+v, want %+v", got, want)
	}

	// This process is alive, so the files are owned.
	if err := files.claim(); err == nil {
		t.Fatal("claim should fail while the recorded pid is alive")
	}

	files.clear()
	if _, err := os.Stat(files.statePath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("state file not removed: %v", err)
	}
}

func TestDaemonFilesPIDWithoutState(t *testing.T) {
	files := daemonFiles{pid: filepath.Join(t.TempDir(), "reelstatsd.pid")}
	if err := os.WriteFile(files.pid, []byte("4242\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := files.read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if st.PID != 4242 || st.Addr != "" {
		t.Fatalf("read = %+v", st)
	}
}

func TestDaemonFilesInvalidPID(t *testing.T) {
	files := daemonFiles{pid: filepath.Join(t.TempDir(), "reelstatsd.pid")}
	if err := os.WriteFile(files.pid, []byte("nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := files.read(); err == nil {
		t.Fatal("expected invalid pid error")
	}
	// A corrupt pid file is treated as stale.
	if err := files.claim(); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := os.Stat(files.pid); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("corrupt pid file should be cleared")
	}
}

func TestWithoutDetach(t *testing.T) {
	got := withoutDetach([]string{"daemon", "--detach", "--addr", ":1", "--detach=true"})
	if len(got) != 3 || got[0] != "daemon" || got[1] != "--addr" || got[2] != ":1" {
		t.Fatalf("withoutDetach = %q", got)
	}
}
