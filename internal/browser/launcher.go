// Package browser turns placement decisions into external browser process
// invocations. Launches are fire-and-forget: once a process is spawned the
// launcher does not supervise it.
package browser

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/mattjoyce/popgate/internal/log"
	"github.com/mattjoyce/popgate/internal/policy"
)

// Action names the concrete browser invocation that was performed.
type Action string

const (
	ActionNewTab     Action = "new-tab"
	ActionNewWindow  Action = "new-window"
	ActionAppWindow  Action = "app-window"
	ActionSystemOpen Action = "system-open"
)

// defaultProfileDir is created lazily in the working directory when
// separate_profile is on and no explicit profile dir is configured.
const defaultProfileDir = ".popgate-profile"

// focusDelay gives the spawned window a moment to appear before the
// best-effort no-activate pass.
const focusDelay = 250 * time.Millisecond

// Launcher spawns browser processes according to the launch policy.
type Launcher struct {
	logger *slog.Logger
	focus  FocusSuppressor

	// injectable for tests
	resolve func(policy.Browser) (string, bool)
	spawn   func(exe string, args []string) (pid int, err error)
	sysOpen func(url string) error
}

// NewLauncher creates a Launcher with platform defaults.
func NewLauncher() *Launcher {
	return &Launcher{
		logger:  log.WithComponent("browser"),
		focus:   newFocusSuppressor(),
		resolve: ResolveExecutable,
		spawn:   spawnProcess,
		sysOpen: openWithSystemHandler,
	}
}

// OpenTab opens url in a new tab of the pop browser. Falls back to the OS
// default handler when no executable resolves; a spawn error after
// resolution is a failure.
func (l *Launcher) OpenTab(url string, pol policy.LaunchPolicy) (Action, error) {
	exe, ok := l.resolve(pol.Browser)
	if !ok {
		if err := l.sysOpen(url); err != nil {
			return ActionSystemOpen, fmt.Errorf("system open: %w", err)
		}
		return ActionSystemOpen, nil
	}

	profile, err := l.profileDir(pol)
	if err != nil {
		return ActionNewTab, fmt.Errorf("profile dir: %w", err)
	}

	args := newTabArgs(profile, url)
	if _, err := l.spawn(exe, args); err != nil {
		return ActionNewTab, fmt.Errorf("spawn %s: %w", exe, err)
	}

	l.logger.Debug("opened tab", "exe", exe, "url", url)
	return ActionNewTab, nil
}

// OpenWindow opens url in a new window (or chromeless app window when the
// policy asks for one), applying fullscreen or explicit sizing.
func (l *Launcher) OpenWindow(url string, pol policy.LaunchPolicy) (Action, error) {
	exe, ok := l.resolve(pol.Browser)
	if !ok {
		if err := l.sysOpen(url); err != nil {
			return ActionSystemOpen, fmt.Errorf("system open: %w", err)
		}
		return ActionSystemOpen, nil
	}

	profile, err := l.profileDir(pol)
	if err != nil {
		return ActionNewWindow, fmt.Errorf("profile dir: %w", err)
	}

	action := ActionNewWindow
	if pol.AppWindow {
		action = ActionAppWindow
	}

	args := newWindowArgs(pol, profile, url)
	pid, err := l.spawn(exe, args)
	if err != nil {
		return action, fmt.Errorf("spawn %s: %w", exe, err)
	}

	if pol.NoActivate {
		// Best-effort: failure or unavailability never surfaces.
		go func() {
			time.Sleep(focusDelay)
			_ = l.focus.ShowWithoutActivating(pid)
		}()
	}

	l.logger.Debug("opened window", "exe", exe, "url", url, "app_window", pol.AppWindow)
	return action, nil
}

// profileDir ensures the dedicated user-data dir exists when the policy
// isolates the pop browser from the operator's main profile.
func (l *Launcher) profileDir(pol policy.LaunchPolicy) (string, error) {
	if !pol.SeparateProfile {
		return "", nil
	}
	dir := pol.ProfileDir
	if dir == "" {
		dir = defaultProfileDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// newTabArgs builds the argument list for a new-tab invocation.
func newTabArgs(profileDir, url string) []string {
	args := []string{"--new-tab"}
	if profileDir != "" {
		args = append(args, "--user-data-dir="+profileDir)
	}
	return append(args, url)
}

// newWindowArgs builds the argument list for a new-window or app-window
// invocation. App mode embeds the URL in the --app flag; sizing is
// best-effort and some app-mode builds ignore it.
func newWindowArgs(pol policy.LaunchPolicy, profileDir, url string) []string {
	args := []string{"--disable-first-run-ui", "--no-default-browser-check"}

	if pol.AppWindow {
		args = append(args, "--app="+url)
		args = appendSizing(args, pol)
		if profileDir != "" {
			args = append(args, "--user-data-dir="+profileDir)
		}
		return args
	}

	args = append(args, "--new-window")
	args = appendSizing(args, pol)
	if profileDir != "" {
		args = append(args, "--user-data-dir="+profileDir)
	}
	return append(args, url)
}

func appendSizing(args []string, pol policy.LaunchPolicy) []string {
	if pol.Fullscreen {
		return append(args, "--start-fullscreen")
	}
	if pol.WindowWidth > 0 && pol.WindowHeight > 0 {
		return append(args, fmt.Sprintf("--window-size=%d,%d", pol.WindowWidth, pol.WindowHeight))
	}
	return args
}

// spawnProcess starts the process detached from our stdio and releases the
// handle immediately; the browser outlives us and is never waited on.
func spawnProcess(exe string, args []string) (int, error) {
	cmd := exec.Command(exe, args...)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}
