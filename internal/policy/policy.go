// Package policy holds the runtime browser-launch policy and its
// thread-safe provider. The tray/CLI side mutates it infrequently; the
// ingress and dispatch paths read it on every request.
package policy

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/popgate/internal/config"
)

// Browser selects which executable family the launcher resolves.
type Browser string

const (
	BrowserAuto   Browser = "auto"
	BrowserChrome Browser = "chrome"
	BrowserEdge   Browser = "edge"
	BrowserSystem Browser = "system"
)

// Mode governs window/tab placement for dispatched pops.
type Mode string

const (
	ModeNewTab              Mode = "new-tab"
	ModeNewWindow           Mode = "new-window"
	ModeFirstWindowThenTabs Mode = "first-window-then-tabs"
)

// LaunchPolicy is the full launch configuration consulted per pop.
type LaunchPolicy struct {
	Browser         Browser
	Mode            Mode
	Fullscreen      bool
	WindowWidth     int
	WindowHeight    int
	Allowlist       []string
	DedupeWindow    time.Duration
	SeparateProfile bool
	AppWindow       bool
	NoActivate      bool
	ProfileDir      string
}

// FromConfig builds a LaunchPolicy from the validated YAML config.
func FromConfig(pc config.PolicyConfig) (LaunchPolicy, error) {
	width, height, err := config.ParseWindowSize(pc.WindowSize)
	if err != nil {
		return LaunchPolicy{}, fmt.Errorf("window size: %w", err)
	}

	return LaunchPolicy{
		Browser:         Browser(pc.Browser),
		Mode:            Mode(pc.Mode),
		Fullscreen:      pc.Fullscreen,
		WindowWidth:     width,
		WindowHeight:    height,
		Allowlist:       append([]string(nil), pc.Allowlist...),
		DedupeWindow:    time.Duration(pc.DedupeSeconds()) * time.Second,
		SeparateProfile: pc.SeparateProfileEnabled(),
		AppWindow:       pc.AppWindow,
		NoActivate:      pc.NoActivateEnabled(),
		ProfileDir:      pc.ProfileDir,
	}, nil
}

// AllowsURL reports whether the target URL's hostname passes the allowlist.
// An empty allowlist allows every host; otherwise the hostname must end
// with one of the configured suffixes.
func (p LaunchPolicy) AllowsURL(target string) bool {
	if len(p.Allowlist) == 0 {
		return true
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	for _, suffix := range p.Allowlist {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// Provider hands out consistent snapshots of the launch policy. Reads are
// frequent (every request and every dispatch); writes happen only when an
// external collaborator reconfigures the service.
type Provider struct {
	mu     sync.RWMutex
	policy LaunchPolicy
}

// NewProvider creates a Provider seeded with the given policy.
func NewProvider(p LaunchPolicy) *Provider {
	return &Provider{policy: p}
}

// Current returns a snapshot of the policy. The Allowlist slice is shared;
// callers must treat it as read-only.
func (pr *Provider) Current() LaunchPolicy {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.policy
}

// Update applies fn to the policy under the write lock.
func (pr *Provider) Update(fn func(*LaunchPolicy)) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	fn(&pr.policy)
}
