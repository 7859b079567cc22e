package ingress

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mattjoyce/popgate/internal/events"
	"github.com/mattjoyce/popgate/internal/queue"
)

// handleOpen handles GET /open?u=<percent-encoded-absolute-URL>.
// Validation order: parameter present, http(s) scheme, allowlist. A URL
// that clears all three is either suppressed by the dedupe window or
// enqueued without blocking.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("u"))
	if raw == "" {
		s.respondError(w, http.StatusBadRequest, "missing query parameter u")
		return
	}

	target := decodeTarget(raw)

	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		s.respondError(w, http.StatusBadRequest, "u must be an absolute http(s) URL")
		return
	}

	pol := s.policies.Current()
	if !pol.AllowsURL(target) {
		s.respondError(w, http.StatusForbidden, "host not allowed by allowlist")
		return
	}

	if s.dedupe.ShouldSuppress(target, pol.DedupeWindow) {
		s.counters.IncSuppressed()
		s.hub.Publish(events.TypePopSuppressed, map[string]string{"url": target})
		s.respondJSON(w, http.StatusAccepted, OpenResponse{
			OK:              true,
			Status:          "suppressed",
			Target:          target,
			Mode:            string(pol.Mode),
			FirstWindowDone: s.state.FirstWindowDone(),
		})
		return
	}

	job := queue.NewJob(target)
	if err := s.queue.TryEnqueue(job); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			s.respondError(w, http.StatusTooManyRequests, "queue full, try again shortly")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to enqueue")
		return
	}

	s.counters.IncEnqueued()
	s.hub.Publish(events.TypePopQueued, map[string]string{"job_id": job.ID, "url": target})

	s.respondJSON(w, http.StatusAccepted, OpenResponse{
		OK:              true,
		Status:          "queued",
		Target:          target,
		Mode:            string(pol.Mode),
		FirstWindowDone: s.state.FirstWindowDone(),
	})
}

// handleStats handles GET /stats. Pure read, no mutation.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	pol := s.policies.Current()

	s.respondJSON(w, http.StatusOK, StatsResponse{
		Snapshot:        s.counters.Snapshot(),
		QueueSize:       s.queue.Depth(),
		DedupeWindowS:   int(pol.DedupeWindow.Seconds()),
		Mode:            string(pol.Mode),
		FirstWindowDone: s.state.FirstWindowDone(),
	})
}

// handleReset handles POST /reset-first-window. This is the external reset
// action that returns placement to the no-window-yet state.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.state.Reset()
	s.hub.Publish(events.TypePlacementReset, nil)
	s.logger.Info("placement state reset")

	s.respondJSON(w, http.StatusOK, ResetResponse{OK: true, FirstWindowDone: false})
}

// handleIndex renders a small human-readable status page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	pol := s.policies.Current()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html>
  <body style="font-family:system-ui">
    <h3>popgate running</h3>
    <p><b>Browser:</b> %s &nbsp; <b>Mode:</b> %s</p>
    <p><b>Fullscreen:</b> %t &nbsp; <b>Size:</b> %dx%d</p>
    <p><b>Separate profile:</b> %t &nbsp; <b>App window:</b> %t</p>
    <p><b>Dedupe window:</b> %.0f s (0 = off)</p>
    <p><b>First window done:</b> %t</p>
    <p>GET /open?u=...</p>
  </body>
</html>
`,
		pol.Browser, pol.Mode,
		pol.Fullscreen, pol.WindowWidth, pol.WindowHeight,
		pol.SeparateProfile, pol.AppWindow,
		pol.DedupeWindow.Seconds(),
		s.state.FirstWindowDone(),
	)
}

// decodeTarget applies the second percent-decode pass. The HTTP framework
// already decoded the query parameter once; upstream systems sometimes
// double-encode, so one more pass is tolerated. Never more than that, and
// undecodable input is passed through as-is.
func decodeTarget(raw string) string {
	if !strings.Contains(raw, "%") {
		return raw
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}
