package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/popgate/internal/browser"
	"github.com/mattjoyce/popgate/internal/config"
	"github.com/mattjoyce/popgate/internal/dedupe"
	"github.com/mattjoyce/popgate/internal/dispatch"
	"github.com/mattjoyce/popgate/internal/events"
	"github.com/mattjoyce/popgate/internal/history"
	"github.com/mattjoyce/popgate/internal/ingress"
	"github.com/mattjoyce/popgate/internal/lock"
	"github.com/mattjoyce/popgate/internal/log"
	"github.com/mattjoyce/popgate/internal/policy"
	"github.com/mattjoyce/popgate/internal/queue"
	"github.com/mattjoyce/popgate/internal/stats"
	"github.com/mattjoyce/popgate/internal/tui/watch"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		return runStart(args)
	case "open":
		return runOpen(args)
	case "stats":
		return runStats(args)
	case "history":
		return runHistory(args)
	case "reset":
		return runReset(args)
	case "watch":
		return runWatch(args)
	case "config":
		return runConfigNoun(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

// --- start ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolvedPath, exitCode := loadConfigForCLI(*configPath)
	if exitCode != 0 {
		return exitCode
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("popgate starting", "version", version, "config", resolvedPath)

	pidLockPath := pidLockPathFor(cfg)
	pidLock, err := lock.AcquirePIDLock(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	pol, err := policy.FromConfig(cfg.Policy)
	if err != nil {
		logger.Error("invalid launch policy", "error", err)
		return 1
	}
	provider := policy.NewProvider(pol)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hist *history.Store
	if cfg.History.IsEnabled() {
		hist, err = history.Open(ctx, cfg.History.Path)
		if err != nil {
			logger.Error("failed to open history database", "path", cfg.History.Path, "error", err)
			return 1
		}
		defer hist.Close()
		logger.Info("history database opened", "path", cfg.History.Path)
	}

	q := queue.New(cfg.Service.QueueMax)
	ded := dedupe.NewStore()
	state := dispatch.NewPlacementState()
	counters := stats.New()
	hub := events.NewHub(256)
	launcher := browser.NewLauncher()

	var recorder dispatch.HistoryRecorder
	if hist != nil {
		recorder = hist
	}
	worker := dispatch.NewWorker(q, provider, state, launcher, counters, hub, recorder)

	server := ingress.New(
		cfg.Server.Listen,
		q, ded, provider, state, counters, hub,
		log.WithComponent("ingress"),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	go func() {
		if err := worker.Run(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("dispatch: %w", err)
		}
	}()

	go func() {
		if err := server.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("ingress: %w", err)
		}
	}()

	logger.Info("popgate running (press Ctrl+C to stop)", "listen", cfg.Server.Listen)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("popgate stopped")
	return 0
}

func pidLockPathFor(cfg *config.Config) string {
	dir := filepath.Dir(cfg.History.Path)
	if dir == "" || dir == "." {
		dir = "./data"
	}
	return filepath.Join(dir, "popgate.lock")
}

// --- open ---

func runOpen(args []string) int {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:5588", "Daemon base URL")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: popgate open [--url BASE] <target-url>")
		return 1
	}
	target := fs.Arg(0)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*baseURL + "/open?u=" + url.QueryEscape(target))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed (is the daemon running?): %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	var body struct {
		OK     bool   `json:"ok"`
		Status string `json:"status"`
		Error  string `json:"error"`
		Target string `json:"target"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintf(os.Stderr, "Bad response: %v\n", err)
		return 1
	}

	if !body.OK {
		fmt.Fprintf(os.Stderr, "Rejected (%d): %s\n", resp.StatusCode, body.Error)
		return 1
	}
	fmt.Printf("%s: %s\n", body.Status, body.Target)
	return 0
}

// --- stats ---

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:5588", "Daemon base URL")
	jsonOut := fs.Bool("json", false, "Output raw JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*baseURL + "/stats")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed (is the daemon running?): %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	var snap struct {
		Enqueued        int64  `json:"enqueued"`
		Processed       int64  `json:"processed"`
		Failed          int64  `json:"failed"`
		Suppressed      int64  `json:"suppressed"`
		LastError       string `json:"last_error"`
		QueueSize       int    `json:"queue_size"`
		DedupeWindowS   int    `json:"dedupe_window_s"`
		Mode            string `json:"mode"`
		FirstWindowDone bool   `json:"first_window_done"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		fmt.Fprintf(os.Stderr, "Bad response: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(snap, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("enqueued:          %d\n", snap.Enqueued)
	fmt.Printf("launched:          %d\n", snap.Processed)
	fmt.Printf("suppressed:        %d\n", snap.Suppressed)
	fmt.Printf("failed:            %d\n", snap.Failed)
	fmt.Printf("queue size:        %d\n", snap.QueueSize)
	fmt.Printf("dedupe window:     %ds\n", snap.DedupeWindowS)
	fmt.Printf("mode:              %s\n", snap.Mode)
	fmt.Printf("first window done: %t\n", snap.FirstWindowDone)
	if snap.LastError != "" {
		fmt.Printf("last error:        %s\n", snap.LastError)
	}
	return 0
}

// --- history ---

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	limit := fs.Int("n", 20, "Number of entries to show")
	jsonOut := fs.Bool("json", false, "Output raw JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, _, exitCode := loadConfigForCLI(*configPath)
	if exitCode != 0 {
		return exitCode
	}
	if !cfg.History.IsEnabled() {
		fmt.Fprintln(os.Stderr, "History is disabled in the configuration")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hist, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history database: %v\n", err)
		return 1
	}
	defer hist.Close()

	entries, err := hist.Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read history: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(entries) == 0 {
		fmt.Println("No pops recorded yet")
		return 0
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-8s %-12s %s",
			e.CompletedAt.Local().Format("2006-01-02 15:04:05"),
			e.Status, e.Action, e.URL)
		if e.Error != "" {
			line += "  (" + e.Error + ")"
		}
		fmt.Println(line)
	}
	return 0
}

// --- reset ---

func runReset(args []string) int {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:5588", "Daemon base URL")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(*baseURL+"/reset-first-window", "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed (is the daemon running?): %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Reset failed: HTTP %d\n", resp.StatusCode)
		return 1
	}
	fmt.Println("First-window placement reset; the next pop opens a window")
	return 0
}

// --- watch ---

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:5588", "Daemon base URL")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := watch.New(*baseURL)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

// --- config ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigHelp()
		return 1
	}
	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "show":
		return runConfigShow(args[1:])
	case "help", "--help", "-h":
		printConfigHelp()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n\n", args[0])
		printConfigHelp()
		return 1
	}
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, resolvedPath, exitCode := loadConfigForCLI(*configPath)
	if exitCode != 0 {
		return exitCode
	}
	if _, err := policy.FromConfig(cfg.Policy); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid launch policy: %v\n", err)
		return 1
	}

	fmt.Printf("OK: %s\n", resolvedPath)
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("config show", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output as JSON instead of YAML")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, _, exitCode := loadConfigForCLI(*configPath)
	if exitCode != 0 {
		return exitCode
	}

	if *jsonOut {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render config: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

// loadConfigForCLI resolves and loads the configuration, discovering the
// path when none is given. A non-zero exit code means the caller returns it.
func loadConfigForCLI(configPath string) (*config.Config, string, int) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return nil, "", 1
		}
		configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, "", 1
	}
	return cfg, configPath, 0
}

// --- version ---

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: popgate version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("popgate %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// --- help ---

func printUsage() {
	fmt.Print(`popgate - Local screen-pop dispatcher

Serializes screen-pop requests from dialers and CRMs into a single
browser-launch pipeline: dedupe, bounded queue, one pop at a time.

Usage:
  popgate <command> [flags]

Commands:
  start             Run the dispatcher daemon in foreground
  open <url>        Send a pop to the running daemon
  stats             Show daemon counters
  history           Show recently dispatched pops
  reset             Reset first-window placement
  watch             Real-time monitoring TUI
  config check      Validate the configuration
  config show       Show the resolved configuration
  version           Show version information
  help              Show this help message

Common flags:
  --config PATH     Configuration file (default: discovered)
  --url BASE        Daemon base URL (default: http://127.0.0.1:5588)
`)
}

func printConfigHelp() {
	fmt.Println("Usage: popgate config <check|show> [flags]")
	fmt.Println()
	fmt.Println("  check   Validate configuration syntax and launch policy")
	fmt.Println("  show    Print the fully resolved configuration")
}
