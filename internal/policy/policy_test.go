package policy

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/popgate/internal/config"
)

func TestFromConfig(t *testing.T) {
	dedupe := 30
	pc := config.PolicyConfig{
		Browser:       "edge",
		Mode:          "first-window-then-tabs",
		Fullscreen:    true,
		WindowSize:    "1600x900",
		Allowlist:     []string{"crm.example.com"},
		DedupeWindowS: &dedupe,
		AppWindow:     true,
	}

	p, err := FromConfig(pc)
	require.NoError(t, err)

	assert.Equal(t, BrowserEdge, p.Browser)
	assert.Equal(t, ModeFirstWindowThenTabs, p.Mode)
	assert.Equal(t, 1600, p.WindowWidth)
	assert.Equal(t, 900, p.WindowHeight)
	assert.Equal(t, 30*time.Second, p.DedupeWindow)
	assert.True(t, p.AppWindow)
	assert.True(t, p.SeparateProfile, "separate profile defaults to on")
	assert.True(t, p.NoActivate, "no-activate defaults to on")
}

func TestFromConfigDefaults(t *testing.T) {
	off := false
	zero := 0
	p, err := FromConfig(config.PolicyConfig{
		Browser:         "auto",
		Mode:            "new-tab",
		WindowSize:      "1400x900",
		DedupeWindowS:   &zero,
		SeparateProfile: &off,
		NoActivate:      &off,
	})
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), p.DedupeWindow)
	assert.False(t, p.SeparateProfile)
	assert.False(t, p.NoActivate)
}

func TestFromConfigBadSize(t *testing.T) {
	_, err := FromConfig(config.PolicyConfig{WindowSize: "big"})
	assert.Error(t, err)
}

func TestAllowsURL(t *testing.T) {
	tests := []struct {
		name      string
		allowlist []string
		target    string
		want      bool
	}{
		{"empty allowlist allows all", nil, "https://anything.test/x", true},
		{"suffix match", []string{"example.com"}, "https://crm.example.com/case/1", true},
		{"exact match", []string{"example.com"}, "https://example.com/", true},
		{"no match", []string{"example.com"}, "https://evil.test/phish", false},
		{"match independent of path", []string{"example.com"}, "https://evil.test/phish?u=example.com", false},
		{"unparseable", []string{"example.com"}, "https://%zz", false},
		{"multiple suffixes", []string{"a.test", "b.test"}, "http://x.b.test/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := LaunchPolicy{Allowlist: tt.allowlist}
			assert.Equal(t, tt.want, p.AllowsURL(tt.target))
		})
	}
}

func TestProviderConcurrentAccess(t *testing.T) {
	pr := NewProvider(LaunchPolicy{Mode: ModeNewTab})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = pr.Current()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				pr.Update(func(p *LaunchPolicy) { p.Fullscreen = !p.Fullscreen })
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, ModeNewTab, pr.Current().Mode)
}

func TestProviderUpdate(t *testing.T) {
	pr := NewProvider(LaunchPolicy{Mode: ModeNewTab})
	pr.Update(func(p *LaunchPolicy) { p.Mode = ModeNewWindow })
	assert.Equal(t, ModeNewWindow, pr.Current().Mode)
}
