package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/reelstats/internal/config"
	"github.com/theirongolddev/reelstats/internal/daemon"
	"github.com/theirongolddev/reelstats/internal/logger"
	"github.com/theirongolddev/reelstats/internal/tmdb"
)

type daemonRuntimeState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	Store     string    `json:"store"`
}

var (
	flagDaemonAddr         string
	flagDaemonInterval     time.Duration
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the statistics API with cache warming and a TMDB proxy",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func init() {
	defaultPID := filepath.Join(config.DataDir(), "reelstatsd.pid")
	defaultLog := filepath.Join(config.DataDir(), "reelstatsd.log")

	daemonCmd.PersistentFlags().StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default from config)")
	daemonCmd.PersistentFlags().DurationVar(&flagDaemonInterval, "interval", 0, "Cache warm interval (default from config)")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonPIDFile, "pid-file", defaultPID, "PID file path")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonLogFile, "log-file", defaultLog, "Log file path for detached mode")
	daemonCmd.PersistentFlags().IntVar(&flagDaemonEventsBuffer, "events-buffer", 200, "Max in-memory events retained")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(_ *cobra.Command, _ []string) error {
	switch {
	case flagDaemonDetach && flagDaemonChild:
		return errors.New("--detach and --child are mutually exclusive")
	case flagDaemonDetach:
		return startDaemonDetached()
	default:
		return runDaemonForeground()
	}
}

// startDaemonDetached re-executes the binary as a background child that
// logs to the daemon log file.
func startDaemonDetached() error {
	files := daemonFiles{pid: flagDaemonPIDFile}
	if err := files.claim(); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	for _, dir := range []string{filepath.Dir(flagDaemonPIDFile), filepath.Dir(flagDaemonLogFile)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	//nolint:gosec // daemon log path is configured by the local user
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	args := append(withoutDetach(os.Args[1:]), "--child")
	child := exec.Command(exe, args...) //nolint:gosec // exe/args come from current process invocation
	child.Stdout, child.Stderr = logf, logf
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	cfg, _ := config.Load()
	fmt.Printf("  Started daemon (pid %d)\n", child.Process.Pid)
	fmt.Printf("  Stats API: http://%s/v1/status\n", daemonAddr(cfg))
	fmt.Printf("  PID file:  %s\n", flagDaemonPIDFile)
	fmt.Printf("  Log:       %s\n", flagDaemonLogFile)
	return nil
}

func runDaemonForeground() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	interval := flagDaemonInterval
	if interval == 0 {
		if interval, err = cfg.Daemon.Interval(); err != nil {
			return err
		}
	}

	files := daemonFiles{pid: flagDaemonPIDFile}
	if err := files.claim(); err != nil {
		return err
	}
	addr := daemonAddr(cfg)
	if err := files.write(daemonRuntimeState{
		PID:       os.Getpid(),
		Addr:      addr,
		StartedAt: time.Now(),
		Store:     cfg.Store.Driver,
	}); err != nil {
		return err
	}
	defer files.clear()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := daemon.New(daemon.Config{
		Addr:         addr,
		Interval:     interval,
		EventsBuffer: flagDaemonEventsBuffer,
		Language:     cfg.General.Language,
		Engine:       a.engine,
		Users:        warmUsers(cfg, a),
		Proxy:        tmdb.NewProxy(a.provider, a.cache, a.log.Named("proxy")),
		Logger:       a.log,
	})

	fmt.Printf("  reelstats daemon listening on http://%s\n", addr)
	fmt.Printf("  Warming stats every %s (%s store, %s cache)\n", interval, cfg.Store.Driver, cfg.Cache.Backend)
	fmt.Printf("  Stop with: reelstats daemon stop --pid-file %s\n", flagDaemonPIDFile)

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// warmUsers returns the configured warm list, falling back to every user
// with tracked titles.
func warmUsers(cfg config.Config, a *app) func(context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		if len(cfg.Daemon.WarmUsers) > 0 {
			return cfg.Daemon.WarmUsers, nil
		}
		return a.repo.Users(ctx)
	}
}

// daemonAddr prefers --addr over the configured address.
func daemonAddr(cfg config.Config) string {
	if flagDaemonAddr != "" {
		return flagDaemonAddr
	}
	return cfg.Daemon.Addr
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	files := daemonFiles{pid: flagDaemonPIDFile}
	st, err := files.read()
	if err != nil {
		fmt.Println("  Daemon: not running")
		return nil
	}
	if !processAlive(st.PID) {
		fmt.Printf("  Daemon: stale pid file (pid %d not alive)\n", st.PID)
		return nil
	}

	if st.Addr == "" {
		cfg, _ := config.Load()
		st.Addr = daemonAddr(cfg)
	}
	fmt.Printf("  Daemon PID: %d (%s store, up %s)\n", st.PID, orNotSet(st.Store), time.Since(st.StartedAt).Round(time.Second))
	fmt.Printf("  Address:    http://%s\n", st.Addr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	status, err := fetchDaemonStatus(ctx, st.Addr)
	if err != nil {
		fmt.Printf("  API: %v\n", err)
		return nil
	}

	if status.LastWarmAt.IsZero() {
		fmt.Println("  Last warm:  pending")
	} else {
		fmt.Printf("  Last warm:  %s (%d passes)\n", status.LastWarmAt.Local().Format(time.RFC3339), status.WarmCount)
	}
	for _, u := range status.Users {
		fmt.Printf("    %-16s %8.1fh total %8.1fh this month\n", u.UserID, u.TotalHours, u.MonthHours)
	}
	if status.LastError != "" {
		fmt.Printf("  Last error: %s\n", status.LastError)
	}
	return nil
}

func fetchDaemonStatus(ctx context.Context, addr string) (daemon.Status, error) {
	var st daemon.Status
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/v1/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, fmt.Errorf("unreachable (%w)", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("malformed status: %w", err)
	}
	return st, nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	files := daemonFiles{pid: flagDaemonPIDFile}
	st, err := files.read()
	if err != nil || !processAlive(st.PID) {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(8 * time.Second)
	for {
		select {
		case <-ticker.C:
			if !processAlive(st.PID) {
				files.clear()
				fmt.Printf("  Stopped daemon (pid %d)\n", st.PID)
				return nil
			}
		case <-timeout:
			return fmt.Errorf("daemon (pid %d) did not exit in time", st.PID)
		}
	}
}

func withoutDetach(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a != "--detach" && !strings.HasPrefix(a, "--detach=") {
			out = append(out, a)
		}
	}
	return out
}
