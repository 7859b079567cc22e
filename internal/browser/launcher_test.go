package browser

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mattjoyce/popgate/internal/policy"
)

func testLauncher() (*Launcher, *launchRecorder) {
	rec := &launchRecorder{}
	l := NewLauncher()
	l.resolve = func(policy.Browser) (string, bool) { return "/opt/browser", true }
	l.spawn = rec.spawn
	l.sysOpen = rec.sysOpen
	return l, rec
}

type launchRecorder struct {
	spawnExe   string
	spawnArgs  []string
	spawnErr   error
	sysOpened  string
	sysOpenErr error
}

func (r *launchRecorder) spawn(exe string, args []string) (int, error) {
	r.spawnExe = exe
	r.spawnArgs = args
	if r.spawnErr != nil {
		return 0, r.spawnErr
	}
	return 4242, nil
}

func (r *launchRecorder) sysOpen(url string) error {
	r.sysOpened = url
	return r.sysOpenErr
}

func TestNewTabArgs(t *testing.T) {
	got := newTabArgs("", "https://a.test/x")
	want := []string{"--new-tab", "https://a.test/x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}

	got = newTabArgs(".popgate-profile", "https://a.test/x")
	want = []string{"--new-tab", "--user-data-dir=.popgate-profile", "https://a.test/x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args with profile = %v, want %v", got, want)
	}
}

func TestNewWindowArgs(t *testing.T) {
	tests := []struct {
		name string
		pol  policy.LaunchPolicy
		want []string
	}{
		{
			name: "standard window with size",
			pol:  policy.LaunchPolicy{WindowWidth: 1400, WindowHeight: 900},
			want: []string{
				"--disable-first-run-ui", "--no-default-browser-check",
				"--new-window", "--window-size=1400,900", "https://a.test/x",
			},
		},
		{
			name: "fullscreen beats size",
			pol:  policy.LaunchPolicy{Fullscreen: true, WindowWidth: 1400, WindowHeight: 900},
			want: []string{
				"--disable-first-run-ui", "--no-default-browser-check",
				"--new-window", "--start-fullscreen", "https://a.test/x",
			},
		},
		{
			name: "app window embeds url in flag",
			pol:  policy.LaunchPolicy{AppWindow: true, WindowWidth: 1280, WindowHeight: 800},
			want: []string{
				"--disable-first-run-ui", "--no-default-browser-check",
				"--app=https://a.test/x", "--window-size=1280,800",
			},
		},
		{
			name: "profile dir before url",
			pol:  policy.LaunchPolicy{SeparateProfile: true, ProfileDir: "p"},
			want: []string{
				"--disable-first-run-ui", "--no-default-browser-check",
				"--new-window", "--user-data-dir=p", "https://a.test/x",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := ""
			if tt.pol.SeparateProfile {
				profile = tt.pol.ProfileDir
			}
			got := newWindowArgs(tt.pol, profile, "https://a.test/x")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("args = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpenTabSpawnsResolvedBrowser(t *testing.T) {
	l, rec := testLauncher()

	action, err := l.OpenTab("https://a.test/x", policy.LaunchPolicy{})
	if err != nil {
		t.Fatalf("OpenTab: %v", err)
	}
	if action != ActionNewTab {
		t.Errorf("action = %q, want %q", action, ActionNewTab)
	}
	if rec.spawnExe != "/opt/browser" {
		t.Errorf("spawned %q", rec.spawnExe)
	}
	if rec.sysOpened != "" {
		t.Errorf("unexpected system open of %q", rec.sysOpened)
	}
}

func TestOpenTabFallsBackToSystemHandler(t *testing.T) {
	l, rec := testLauncher()
	l.resolve = func(policy.Browser) (string, bool) { return "", false }

	action, err := l.OpenTab("https://a.test/x", policy.LaunchPolicy{Browser: policy.BrowserSystem})
	if err != nil {
		t.Fatalf("OpenTab: %v", err)
	}
	if action != ActionSystemOpen {
		t.Errorf("action = %q, want %q", action, ActionSystemOpen)
	}
	if rec.sysOpened != "https://a.test/x" {
		t.Errorf("sysOpened = %q", rec.sysOpened)
	}
}

func TestOpenWindowSpawnError(t *testing.T) {
	l, rec := testLauncher()
	rec.spawnErr = errors.New("exec format error")

	action, err := l.OpenWindow("https://a.test/x", policy.LaunchPolicy{})
	if err == nil {
		t.Fatal("expected spawn error")
	}
	if action != ActionNewWindow {
		t.Errorf("action = %q", action)
	}
	// No fallback once an executable resolved: the failure is reported.
	if rec.sysOpened != "" {
		t.Errorf("unexpected system open of %q", rec.sysOpened)
	}
}

func TestOpenWindowAppMode(t *testing.T) {
	l, rec := testLauncher()

	action, err := l.OpenWindow("https://a.test/x", policy.LaunchPolicy{AppWindow: true})
	if err != nil {
		t.Fatalf("OpenWindow: %v", err)
	}
	if action != ActionAppWindow {
		t.Errorf("action = %q, want %q", action, ActionAppWindow)
	}
	found := false
	for _, a := range rec.spawnArgs {
		if a == "--app=https://a.test/x" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing --app flag in %v", rec.spawnArgs)
	}
}

func TestProfileDirCreatedLazily(t *testing.T) {
	l, _ := testLauncher()
	dir := filepath.Join(t.TempDir(), "profile")

	got, err := l.profileDir(policy.LaunchPolicy{SeparateProfile: true, ProfileDir: dir})
	if err != nil {
		t.Fatalf("profileDir: %v", err)
	}
	if got != dir {
		t.Errorf("dir = %q, want %q", got, dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("profile dir not created: %v", err)
	}

	got, err = l.profileDir(policy.LaunchPolicy{SeparateProfile: false})
	if err != nil || got != "" {
		t.Errorf("disabled profile: dir = %q, err = %v", got, err)
	}
}

func TestFindExecutable(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "fakebrowser")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok := findExecutable([]string{filepath.Join(dir, "missing"), exe})
	if !ok || got != exe {
		t.Errorf("findExecutable = %q, %v", got, ok)
	}

	if _, ok := findExecutable([]string{filepath.Join(dir, "nope")}); ok {
		t.Error("expected no executable")
	}
}

func TestResolveExecutableSystem(t *testing.T) {
	if _, ok := resolveExecutableOn(policy.BrowserSystem, "linux"); ok {
		t.Error("system choice must not resolve an executable")
	}
}

func TestCandidateLists(t *testing.T) {
	for _, goos := range []string{"windows", "darwin", "linux"} {
		if len(chromeCandidates(goos)) == 0 {
			t.Errorf("no chrome candidates for %s", goos)
		}
		if len(edgeCandidates(goos)) == 0 {
			t.Errorf("no edge candidates for %s", goos)
		}
	}
}
