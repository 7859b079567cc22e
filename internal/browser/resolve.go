package browser

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/mattjoyce/popgate/internal/policy"
)

// chromeCandidates returns well-known Chrome locations for the given OS,
// most specific first. Bare names are resolved via PATH.
func chromeCandidates(goos string) []string {
	switch goos {
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			"chrome.exe",
		}
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"google-chrome",
		}
	default:
		return []string{"google-chrome", "chromium", "chromium-browser"}
	}
}

// edgeCandidates returns well-known Edge locations for the given OS.
func edgeCandidates(goos string) []string {
	switch goos {
	case "windows":
		return []string{
			`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
			`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
			"msedge.exe",
		}
	case "darwin":
		return []string{
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
			"msedge",
		}
	default:
		return []string{"microsoft-edge", "msedge", "edge"}
	}
}

// findExecutable returns the first candidate that exists on disk, then
// falls back to a PATH lookup of each candidate's base name.
func findExecutable(candidates []string) (string, bool) {
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	for _, c := range candidates {
		if exe, err := exec.LookPath(filepath.Base(c)); err == nil {
			return exe, true
		}
	}
	return "", false
}

// ResolveExecutable maps a browser choice to a concrete executable path.
// Returns ok=false for BrowserSystem (the OS handler is used instead) and
// when no candidate is installed.
func ResolveExecutable(choice policy.Browser) (string, bool) {
	return resolveExecutableOn(choice, runtime.GOOS)
}

func resolveExecutableOn(choice policy.Browser, goos string) (string, bool) {
	switch choice {
	case policy.BrowserChrome:
		return findExecutable(chromeCandidates(goos))
	case policy.BrowserEdge:
		return findExecutable(edgeCandidates(goos))
	case policy.BrowserAuto:
		if exe, ok := findExecutable(chromeCandidates(goos)); ok {
			return exe, true
		}
		return findExecutable(edgeCandidates(goos))
	default:
		// system: defer to the OS-registered handler
		return "", false
	}
}
